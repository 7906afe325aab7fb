package session

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectVertices(t *testing.T) {
	fc := roads()
	fc.Append(geojson.NewFeature(orb.Point{1, 1}))
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))

	pts := ProjectVertices(fc)
	require.Len(t, pts.Features, 5)
	want := []orb.Point{{30.51, 50.41}, {30.52, 50.42}, {30.53, 50.43}, {30.54, 50.44}, {30.55, 50.45}}
	for i, f := range pts.Features {
		assert.Equal(t, want[i], f.Geometry)
		assert.Empty(t, f.Properties)
	}
}

func TestProjectVertices_Empty(t *testing.T) {
	assert.Empty(t, ProjectVertices(nil).Features)
	assert.Empty(t, ProjectVertices(geojson.NewFeatureCollection()).Features)
}

func TestProjectVertices_Idempotent(t *testing.T) {
	fc := roads()
	first, err := json.Marshal(ProjectVertices(fc))
	require.NoError(t, err)
	second, err := json.Marshal(ProjectVertices(fc))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestProjector_RefreshWritesSource(t *testing.T) {
	eng := newFakeEngine()
	eng.features = roads()
	surf := newFakeSurface()
	require.NoError(t, surf.AddSource(SourceHelper, geojsonSource()))

	NewProjector(eng, surf, SourceHelper, nil).Refresh()
	assert.Len(t, surf.data[SourceHelper].Features, 5)
}

func TestProjector_MissingSourceIsLogged(t *testing.T) {
	eng := newFakeEngine()
	surf := newFakeSurface()
	assert.NotPanics(t, func() { NewProjector(eng, surf, SourceHelper, nil).Refresh() })
	assert.Zero(t, surf.setData)
}
