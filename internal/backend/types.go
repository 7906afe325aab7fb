package backend

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"roadedit/internal/geom"
)

// Task is the geometry of one vectorization task as served by GET /maps/{id}.
type Task struct {
	ID       string
	BBox     []float64
	Features *geojson.FeatureCollection
}

// Bounds returns the task's bbox when the backend supplied a valid one.
func (t *Task) Bounds() (geom.BBox, bool) {
	if t == nil || len(t.BBox) == 0 {
		return geom.BBox{}, false
	}
	b, err := geom.FromSlice(t.BBox)
	if err != nil {
		return geom.BBox{}, false
	}
	return b, true
}

// The backend stores whatever the postprocessing worker produced, so the
// collection "type" may be missing and features may omit "type" too.
type mapResponse struct {
	BBox     []float64    `json:"bbox"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	ID         any                `json:"id,omitempty"`
	Geometry   *geojson.Geometry  `json:"geometry"`
	Properties geojson.Properties `json:"properties"`
}

func decodeTask(id string, data []byte) (*Task, error) {
	var resp mapResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode map %s: %w", id, err)
	}
	fc := geojson.NewFeatureCollection()
	for _, rf := range resp.Features {
		if rf.Geometry == nil || rf.Geometry.Geometry() == nil {
			continue
		}
		f := geojson.NewFeature(rf.Geometry.Geometry())
		f.ID = rf.ID
		if rf.Properties != nil {
			f.Properties = rf.Properties
		}
		fc.Append(f)
	}
	return &Task{ID: id, BBox: resp.BBox, Features: fc}, nil
}

// TaskRow is one line of GET /tasks/: a parent task joined with at most one
// child (vectorization) task.
type TaskRow struct {
	TaskID         string `json:"task_id"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	ChildID        string `json:"child_id,omitempty"`
	ChildStatus    string `json:"child_status,omitempty"`
	ChildCreatedAt string `json:"child_created_at,omitempty"`
}

// EditTarget is the task whose geometry the editor should open: the child
// when one exists, otherwise the parent.
func (r TaskRow) EditTarget() string {
	if r.ChildID != "" {
		return r.ChildID
	}
	return r.TaskID
}

// Job is a queued backend job as returned by POST /vec-by-task/{id}.
type Job struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)
