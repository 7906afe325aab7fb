package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/geojson"

	"roadedit/internal/backend"
	"roadedit/internal/geom"
	"roadedit/internal/imagery"
	"roadedit/internal/logging"
)

type TaskFetcher interface {
	FetchTask(ctx context.Context, taskID string) (*backend.Task, error)
}

type ImageryFetcher interface {
	Background(ctx context.Context, b geom.BBox) (*imagery.Scene, error)
}

// BBoxFallback decides what to center on when a task carries no bbox.
type BBoxFallback string

const (
	FallbackDefault BBoxFallback = "default"
	FallbackNone    BBoxFallback = "none"
)

var DefaultBBox = geom.BBox{MinX: 30.5, MinY: 50.4, MaxX: 30.6, MaxY: 50.5}

// LoadResult is everything the network phase of a load produced.
type LoadResult struct {
	TaskID   string
	Features *geojson.FeatureCollection

	// BBox is set when HasBBox is true. BBoxKnown marks a bbox supplied by
	// the task itself, as opposed to a fallback.
	BBox      geom.BBox
	HasBBox   bool
	BBoxKnown bool

	Background *imagery.Scene
}

// Loader fetches a task's geometry and background imagery. It never touches
// the engine or the surface.
type Loader struct {
	tasks    TaskFetcher
	imagery  ImageryFetcher
	fallback BBoxFallback
	defBBox  geom.BBox
	logger   *slog.Logger
}

type LoaderOption func(*Loader)

func WithFallback(f BBoxFallback, def geom.BBox) LoaderOption {
	return func(l *Loader) {
		l.fallback = f
		if def.Valid() {
			l.defBBox = def
		}
	}
}

func WithLoaderLogger(lg *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader builds a loader. img may be nil to skip background imagery.
func NewLoader(tasks TaskFetcher, img ImageryFetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		tasks:    tasks,
		imagery:  img,
		fallback: FallbackDefault,
		defBBox:  DefaultBBox,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fetch loads taskID. A geometry failure is returned; an imagery failure is
// logged and leaves Background nil.
func (l *Loader) Fetch(ctx context.Context, taskID string) (*LoadResult, error) {
	task, err := l.tasks.FetchTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	res := &LoadResult{TaskID: taskID, Features: task.Features}
	if res.Features == nil {
		res.Features = geojson.NewFeatureCollection()
	}

	if b, ok := task.Bounds(); ok {
		res.BBox, res.HasBBox, res.BBoxKnown = b, true, true
	} else if l.fallback == FallbackDefault {
		res.BBox, res.HasBBox = l.defBBox, true
		l.logger.Info("task has no bbox, using default", "task_id", taskID, "bbox", l.defBBox)
	} else if b, ok := geom.Bounds(res.Features); ok {
		res.BBox, res.HasBBox = b, true
	}

	if res.HasBBox && l.imagery != nil {
		scene, err := l.imagery.Background(ctx, res.BBox)
		if err != nil {
			l.logger.Warn("background imagery unavailable", "task_id", taskID, "err", err)
		} else {
			res.Background = scene
		}
	}
	return res, nil
}
