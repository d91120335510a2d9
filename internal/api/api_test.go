package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"swarmwatch/internal/db"
	"swarmwatch/internal/model"
	"swarmwatch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	t.Cleanup(func() { db.Close(database) })

	st := store.New(database)
	srv := httptest.NewServer(NewServer(st, zap.NewNop().Sugar()).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func postReceived(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/received", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestReceivedInsertAndDuplicate(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"url":"http://x","license":"CC-BY","magnet_link":"magnet:?xt=urn:btih:ABC123","received_at":100,"source_peer":"peer-1"}`

	resp, decoded := postReceived(t, srv, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["inserted"])
	assert.Equal(t, "abc123", decoded["infohash"])

	// Same infohash again: expected outcome, still 200
	resp, decoded = postReceived(t, srv, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decoded["inserted"])
}

func TestReceivedInvalidLocator(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, decoded := postReceived(t, srv, `{"url":"http://x","license":"CC-BY","magnet_link":"magnet:?dn=no-hash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_locator", decoded["error"])
}

func TestLatestEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.Append(&model.Sample{Infohash: "aaa", TS: 100, TotalPeers: 1, Status: "healthy"}))
	require.NoError(t, st.Append(&model.Sample{Infohash: "aaa", TS: 200, TotalPeers: 9, Status: "healthy"}))
	require.NoError(t, st.Append(&model.Sample{Infohash: "bbb", TS: 150, TotalPeers: 4, Status: "healthy"}))

	resp, err := http.Get(srv.URL + "/v1/swarms/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []sampleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)
	assert.Equal(t, "aaa", views[0].Infohash)
	assert.Equal(t, int64(200), views[0].TS)
	assert.Equal(t, 9, views[0].TotalPeers)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.Append(&model.Sample{Infohash: "aaa", TS: 100, TotalPeers: 1, Status: "no_peers"}))
	require.NoError(t, st.Append(&model.Sample{Infohash: "aaa", TS: 200, TotalPeers: 3, Status: "healthy"}))

	resp, err := http.Get(srv.URL + "/v1/swarms/aaa/history?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []sampleView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, int64(200), views[0].TS)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
