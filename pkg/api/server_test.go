package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/metrics"
	"github.com/ssargent/shapebin/pkg/storage"
)

const testAPIKey = "test-key"

type reading struct {
	Sensor string
	Value  float64
}

func setupTestServer(t *testing.T) (*Server, *storage.BlobStore) {
	t.Helper()
	store, err := storage.NewBlobStore(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	server := NewServer(store, ServerConfig{APIKey: testAPIKey}, metrics.New(), nil)
	return server, store
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte, key string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	resp := APIResponse{Data: data}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestServer_Health(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	rr := doRequest(t, h, "GET", "/api/v1/health", nil, testAPIKey)
	assert.Equal(t, http.StatusOK, rr.Code)

	var data map[string]string
	resp := decodeResponse(t, rr, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", data["status"])
}

func TestServer_Auth(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	tests := []struct {
		name string
		key  string
		want int
		msg  string
	}{
		{name: "missing key", key: "", want: http.StatusUnauthorized, msg: "Missing X-API-Key header"},
		{name: "wrong key", key: "nope", want: http.StatusUnauthorized, msg: "Invalid API key"},
		{name: "valid key", key: testAPIKey, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, "GET", "/api/v1/health", nil, tt.key)
			assert.Equal(t, tt.want, rr.Code)
			if tt.msg != "" {
				resp := decodeResponse(t, rr, nil)
				assert.False(t, resp.Success)
				assert.Equal(t, tt.msg, resp.Error)
			}
		})
	}
}

func TestServer_AuthDisabled(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	defer store.Close()

	h := NewServer(store, ServerConfig{}, metrics.New(), nil).Routes()
	rr := doRequest(t, h, "GET", "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_BlobLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	blob, err := codec.Encode(reading{Sensor: "t1", Value: 20.5})
	require.NoError(t, err)

	rr := doRequest(t, h, "POST", "/api/v1/blobs", blob, testAPIKey)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created BlobResponse
	resp := decodeResponse(t, rr, &created)
	require.True(t, resp.Success)
	assert.Equal(t, len(blob), created.Size)
	assert.Equal(t, "Object", created.Header.Root)
	assert.Equal(t, "/api/v1/blobs/"+created.ID, rr.Header().Get("Location"))

	rr = doRequest(t, h, "GET", "/api/v1/blobs/"+created.ID, nil, testAPIKey)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	got, err := codec.DecodeObject[reading](rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, reading{Sensor: "t1", Value: 20.5}, got)

	rr = doRequest(t, h, "GET", "/api/v1/blobs/"+created.ID+"/header", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary codec.Summary
	decodeResponse(t, rr, &summary)
	require.Len(t, summary.Fields, 2)
	assert.Equal(t, "Sensor", summary.Fields[0].Name)

	rr = doRequest(t, h, "GET", "/api/v1/blobs", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		IDs   []string `json:"ids"`
		Count int      `json:"count"`
	}
	decodeResponse(t, rr, &list)
	assert.Equal(t, []string{created.ID}, list.IDs)

	rr = doRequest(t, h, "GET", "/api/v1/stats", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats StatsResponse
	decodeResponse(t, rr, &stats)
	assert.Equal(t, StatsResponse{Blobs: 1, Bytes: int64(len(blob))}, stats)

	rr = doRequest(t, h, "DELETE", "/api/v1/blobs/"+created.ID, nil, testAPIKey)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, "GET", "/api/v1/blobs/"+created.ID, nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, "DELETE", "/api/v1/blobs/"+created.ID, nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_RejectsMalformedBlobs(t *testing.T) {
	server, store := setupTestServer(t)
	h := server.Routes()

	tests := []struct {
		name string
		path string
		body []byte
		want int
	}{
		{name: "garbage put", path: "/api/v1/blobs", body: []byte{0xFF, 0x00}, want: http.StatusBadRequest},
		{name: "empty put", path: "/api/v1/blobs", body: []byte{}, want: http.StatusBadRequest},
		{name: "garbage inspect", path: "/api/v1/inspect", body: []byte{0x40}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, "POST", tt.path, tt.body, testAPIKey)
			assert.Equal(t, tt.want, rr.Code)
			resp := decodeResponse(t, rr, nil)
			assert.False(t, resp.Success)
		})
	}

	st, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Blobs)
}

func TestServer_Inspect(t *testing.T) {
	server, store := setupTestServer(t)
	h := server.Routes()

	blob, err := codec.EncodeSeq([]reading{{"a", 1}, {"b", 2}})
	require.NoError(t, err)

	rr := doRequest(t, h, "POST", "/api/v1/inspect", blob, testAPIKey)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary codec.Summary
	decodeResponse(t, rr, &summary)
	assert.Equal(t, "Array", summary.Root)

	st, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Blobs)
}

func TestServer_InvalidID(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	rr := doRequest(t, h, "GET", "/api/v1/blobs/not-an-id", nil, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, "GET", "/api/v1/blobs/"+ksuid.New().String()+"/header", nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_BodyTooLarge(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	defer store.Close()

	h := NewServer(store, ServerConfig{MaxBlobSize: 8}, metrics.New(), nil).Routes()
	rr := doRequest(t, h, "POST", "/api/v1/blobs", bytes.Repeat([]byte{1}, 64), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

type failingStore struct {
	IBlobStore
}

func (failingStore) List() ([]ksuid.KSUID, error) {
	return nil, fmt.Errorf("disk on fire")
}

func TestServer_InternalError(t *testing.T) {
	h := NewServer(failingStore{}, ServerConfig{}, metrics.New(), nil).Routes()

	rr := doRequest(t, h, "GET", "/api/v1/blobs", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeResponse(t, rr, nil)
	assert.Equal(t, "Failed to list blobs", resp.Error)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	doRequest(t, h, "GET", "/api/v1/health", nil, testAPIKey)

	rr := doRequest(t, h, "GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "shapebin_http_requests_total"))
}

func TestServer_Swagger(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	rr := doRequest(t, h, "GET", "/swagger/index.html", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "swagger-ui")

	rr = doRequest(t, h, "GET", "/swagger/swagger.json", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "/api/v1", doc["basePath"])
	assert.Contains(t, doc["paths"], "/blobs/{id}/header")

	rr = doRequest(t, h, "GET", "/swagger/swagger.yaml", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "basePath: /api/v1")

	rr = doRequest(t, h, "GET", "/swagger/other", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_CORS(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Routes()

	req := httptest.NewRequest("OPTIONS", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartServer_Shutdown(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	defer store.Close()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	starter := NewServerStarter(nil, metrics.New())

	done := make(chan error, 1)
	go func() {
		done <- starter.StartServer(ctx, store, ServerConfig{Bind: "127.0.0.1", Port: port})
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
