package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadedit/internal/backend"
	"roadedit/internal/geom"
)

func TestLoader_FetchWithBBoxAndImagery(t *testing.T) {
	tasks := &fakeTasks{task: &backend.Task{ID: "t1", BBox: []float64{30.50, 50.40, 30.60, 50.50}, Features: roads()}}
	img := &fakeImagery{scene: testScene()}

	res, err := NewLoader(tasks, img).Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, res.HasBBox)
	assert.True(t, res.BBoxKnown)
	assert.Equal(t, geom.BBox{MinX: 30.50, MinY: 50.40, MaxX: 30.60, MaxY: 50.50}, res.BBox)
	assert.Len(t, res.Features.Features, 2)
	assert.NotNil(t, res.Background)
}

func TestLoader_ImageryFailureIsNotFatal(t *testing.T) {
	tasks := &fakeTasks{task: &backend.Task{ID: "t1", BBox: []float64{30.50, 50.40, 30.60, 50.50}, Features: roads()}}
	img := &fakeImagery{err: errImageryDown}

	res, err := NewLoader(tasks, img).Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, res.Background)
	assert.Equal(t, 1, img.calls)
	assert.Len(t, res.Features.Features, 2)
}

func TestLoader_GeometryFailureIsFatal(t *testing.T) {
	tasks := &fakeTasks{err: backend.ErrNotFound}
	img := &fakeImagery{scene: testScene()}

	_, err := NewLoader(tasks, img).Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.Zero(t, img.calls)
}

func TestLoader_DefaultFallback(t *testing.T) {
	tasks := &fakeTasks{task: &backend.Task{ID: "t1", Features: roads()}}

	res, err := NewLoader(tasks, nil).Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, res.HasBBox)
	assert.False(t, res.BBoxKnown)
	assert.Equal(t, DefaultBBox, res.BBox)
}

func TestLoader_ConfiguredDefaultFallback(t *testing.T) {
	def := geom.BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}
	tasks := &fakeTasks{task: &backend.Task{ID: "t1"}}

	res, err := NewLoader(tasks, nil, WithFallback(FallbackDefault, def)).Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, def, res.BBox)
	assert.NotNil(t, res.Features)
}

func TestLoader_NoFallbackUsesFeatureBounds(t *testing.T) {
	tasks := &fakeTasks{task: &backend.Task{ID: "t1", Features: roads()}}
	img := &fakeImagery{scene: testScene()}

	res, err := NewLoader(tasks, img, WithFallback(FallbackNone, geom.BBox{})).Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, res.HasBBox)
	assert.False(t, res.BBoxKnown)
	assert.InDelta(t, 30.51, res.BBox.MinX, 1e-9)
	assert.InDelta(t, 50.45, res.BBox.MaxY, 1e-9)
}

func TestLoader_NoFallbackNoFeatures(t *testing.T) {
	tasks := &fakeTasks{task: &backend.Task{ID: "t1"}}
	img := &fakeImagery{scene: testScene()}

	res, err := NewLoader(tasks, img, WithFallback(FallbackNone, geom.BBox{})).Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, res.HasBBox)
	assert.Zero(t, img.calls)
}
