package fixture

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadedit/internal/backend"
)

func sampleRoads() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{30.51, 50.41}, {30.52, 50.42}}))
	return fc
}

func newTestServer(t *testing.T, store *Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(store).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(sampleRoads())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kyiv.geojson"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	doc, status, err := s.Map("kyiv")
	require.NoError(t, err)
	assert.Equal(t, backend.StatusSuccess, status)
	assert.Equal(t, []float64{30.51, 50.41, 30.52, 50.42}, doc.BBox)
}

func TestGetMap(t *testing.T) {
	store := NewStore("")
	require.NoError(t, store.Put("t1", sampleRoads()))
	srv := newTestServer(t, store)

	resp, body := do(t, http.MethodGet, srv.URL+"/maps/t1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"bbox"`)
	assert.Contains(t, body, `"LineString"`)

	resp, _ = do(t, http.MethodGet, srv.URL+"/maps/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, store.SetStatus("t1", backend.StatusPending))
	resp, _ = do(t, http.MethodGet, srv.URL+"/maps/t1", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSaveMap_WritesBack(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Put("t1", sampleRoads()))
	srv := newTestServer(t, store)

	payload := `{"type":"FeatureCollection","bbox":[1,2,3,4],"features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},"properties":{}}]}`
	resp, body := do(t, http.MethodPost, srv.URL+"/load-map-db/t1", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	doc, _, err := store.Map("t1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, doc.BBox)
	written, err := os.ReadFile(filepath.Join(dir, "t1.geojson"))
	require.NoError(t, err)
	assert.Equal(t, payload, string(written))

	resp, _ = do(t, http.MethodPost, srv.URL+"/load-map-db/t1", "not json")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestVectorizeAndRefresh(t *testing.T) {
	store := NewStore("")
	require.NoError(t, store.Put("parent", sampleRoads()))
	srv := newTestServer(t, store)

	resp, body := do(t, http.MethodPost, srv.URL+"/vec-by-task/parent", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var job backend.Job
	require.NoError(t, json.Unmarshal([]byte(body), &job))
	assert.Equal(t, backend.StatusPending, job.Status)

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, job.TaskID, rows[0].ChildID)
	assert.Equal(t, job.TaskID, rows[0].EditTarget())

	resp, _ = do(t, http.MethodGet, srv.URL+"/maps/"+job.TaskID, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body = do(t, http.MethodPut, srv.URL+"/status/"+job.TaskID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"SUCCESS"}`, body)

	resp, _ = do(t, http.MethodPost, srv.URL+"/vec-by-task/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, store.SetStatus("parent", backend.StatusFailure))
	resp, _ = do(t, http.MethodPost, srv.URL+"/vec-by-task/parent", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImageryIndexAndMetrics(t *testing.T) {
	srv := newTestServer(t, NewStore(""))

	resp, body := do(t, http.MethodGet, srv.URL+"/meta?bbox=1,2,3,4", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"results":[]}`, body)

	_, body = do(t, http.MethodGet, srv.URL+"/tasks/", "")
	assert.JSONEq(t, `[]`, body)

	_, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Contains(t, body, `roadedit_fixture_requests_total{code="200",route="/meta"} 1`)
}

func TestPredictByCoord(t *testing.T) {
	store := NewStore("")
	srv := newTestServer(t, store)

	resp, body := do(t, http.MethodPost, srv.URL+"/predict-by-coord/?bbox=30.5&bbox=50.4&bbox=30.6&bbox=50.5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		TaskID string    `json:"task_id"`
		Status string    `json:"status"`
		BBox   []float64 `json:"bbox"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.NotEmpty(t, got.TaskID)
	assert.Equal(t, backend.StatusPending, got.Status)
	assert.Equal(t, []float64{30.5, 50.4, 30.6, 50.5}, got.BBox)

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, got.TaskID, rows[0].TaskID)
	assert.Equal(t, backend.StatusPending, rows[0].Status)

	resp, _ = do(t, http.MethodGet, srv.URL+"/maps/"+got.TaskID, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, err := store.Refresh(got.TaskID)
	require.NoError(t, err)
	doc, status, err := store.Map(got.TaskID)
	require.NoError(t, err)
	assert.Equal(t, backend.StatusSuccess, status)
	assert.Equal(t, []float64{30.5, 50.4, 30.6, 50.5}, doc.BBox)

	for _, q := range []string{"", "?bbox=30.5&bbox=50.4&bbox=30.6", "?bbox=30.6&bbox=50.4&bbox=30.5&bbox=50.5", "?bbox=x&bbox=1&bbox=2&bbox=3"} {
		resp, _ = do(t, http.MethodPost, srv.URL+"/predict-by-coord/"+q, "")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, q)
	}
	assert.Len(t, store.Rows(), 1)
}
