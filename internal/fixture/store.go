// Package fixture is an offline stand-in for the task backend: it serves a
// directory of GeoJSON files through the same HTTP endpoints.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/backend"
	"roadedit/internal/geom"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrNotFinished = errors.New("task not finished")
)

type task struct {
	id       string
	status   string
	created  time.Time
	parent   string
	bbox     []float64
	features json.RawMessage
}

// Store holds tasks in memory. Saved geometry is written back to dir when
// one is set.
type Store struct {
	mu    sync.Mutex
	dir   string
	tasks map[string]*task
	order []string
	now   func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, tasks: map[string]*task{}, now: time.Now}
}

// LoadDir registers every .geojson/.json file in dir as a finished task
// named after the file.
func LoadDir(dir string) (*Store, error) {
	s := NewStore(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".geojson" && ext != ".json") {
			continue
		}
		fc, err := geom.LoadFeatures(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := s.Put(id, fc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put adds or replaces a finished task. A collection bbox is kept; without
// one the feature bounds are used.
func (s *Store) Put(id string, fc *geojson.FeatureCollection) error {
	raw, err := json.Marshal(fc.Features)
	if err != nil {
		return err
	}
	var bbox []float64
	if len(fc.BBox) == 4 {
		bbox = []float64(fc.BBox)
	} else if b, ok := geom.Bounds(fc); ok {
		bbox = b.Slice()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(&task{id: id, status: backend.StatusSuccess, created: s.now(), bbox: bbox, features: raw})
	return nil
}

func (s *Store) put(t *task) {
	if _, ok := s.tasks[t.id]; !ok {
		s.order = append(s.order, t.id)
	}
	s.tasks[t.id] = t
}

// SetStatus overrides a task's status.
func (s *Store) SetStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	t.status = status
	return nil
}

// MapDoc is the body of GET /maps/{id}.
type MapDoc struct {
	BBox     []float64       `json:"bbox,omitempty"`
	Features json.RawMessage `json:"features"`
}

// Map returns the GET /maps/{id} document.
func (s *Store) Map(id string) (MapDoc, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return MapDoc{}, "", ErrUnknownTask
	}
	return MapDoc{BBox: t.bbox, Features: t.features}, t.status, nil
}

// Save replaces a task's geometry with a posted FeatureCollection.
func (s *Store) Save(id string, body []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fc.Features)
	if err != nil {
		return err
	}
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		t = &task{id: id, status: backend.StatusSuccess, created: s.now()}
		s.put(t)
	}
	t.features = raw
	if len(fc.BBox) == 4 {
		t.bbox = []float64(fc.BBox)
	}
	s.mu.Unlock()

	if s.dir == "" {
		return nil
	}
	return os.WriteFile(filepath.Join(s.dir, id+".geojson"), body, 0o644)
}

// Rows lists parent tasks newest first, one row per child.
func (s *Store) Rows() []backend.TaskRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	children := map[string][]*task{}
	var parents []*task
	for _, id := range s.order {
		t := s.tasks[id]
		if t.parent != "" {
			children[t.parent] = append(children[t.parent], t)
		} else {
			parents = append(parents, t)
		}
	}
	slices.SortStableFunc(parents, func(a, b *task) int { return b.created.Compare(a.created) })

	var rows []backend.TaskRow
	for _, p := range parents {
		row := backend.TaskRow{TaskID: p.id, Status: p.status, CreatedAt: p.created.Format(time.RFC3339)}
		if len(children[p.id]) == 0 {
			rows = append(rows, row)
			continue
		}
		for _, c := range children[p.id] {
			r := row
			r.ChildID, r.ChildStatus, r.ChildCreatedAt = c.id, c.status, c.created.Format(time.RFC3339)
			rows = append(rows, r)
		}
	}
	return rows
}

// Refresh advances a pending task to SUCCESS, the way a worker would.
func (s *Store) Refresh(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return "", ErrUnknownTask
	}
	if t.status == backend.StatusPending {
		t.status = backend.StatusSuccess
	}
	return t.status, nil
}

// Vectorize creates a pending child task carrying the parent's geometry.
func (s *Store) Vectorize(id string) (backend.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tasks[id]
	if !ok {
		return backend.Job{}, ErrUnknownTask
	}
	if p.status != backend.StatusSuccess {
		return backend.Job{}, ErrNotFinished
	}
	child := &task{
		id:       uuid.NewString(),
		status:   backend.StatusPending,
		created:  s.now(),
		parent:   p.id,
		bbox:     slices.Clone(p.bbox),
		features: slices.Clone(p.features),
	}
	s.put(child)
	return backend.Job{TaskID: child.id, Status: child.status}, nil
}

// Predict queues a pending segmentation task for b. It finishes on the
// next status refresh with no roads.
func (s *Store) Predict(b geom.BBox) backend.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &task{
		id:       uuid.NewString(),
		status:   backend.StatusPending,
		created:  s.now(),
		bbox:     b.Slice(),
		features: json.RawMessage("[]"),
	}
	s.put(t)
	return backend.Job{TaskID: t.id, Status: t.status}
}
