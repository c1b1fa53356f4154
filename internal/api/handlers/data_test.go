package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/pkg/cloudsync"
	"github.com/equicloud/equicloud/pkg/codec"
)

func defaultLimits() DataLimits {
	return DataLimits{
		MaxValueBytes:          testMaxValue,
		MaxDatastoreValueBytes: testMaxValue,
		MaxTotalBytes:          testMaxTotal,
		DatastoreEnabled:       true,
	}
}

func putData(t *testing.T, h *DataHandler, userID, key string, body []byte) map[string]interface{} {
	t.Helper()
	req := authedRequest(t, http.MethodPut, "/v2/data/"+key, userID, body)
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := serveData(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestDataPutGetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())

	resp := putData(t, h, "user-1", "cfg/main", []byte("hello"))
	assert.Equal(t, float64(1), resp["version"])
	assert.Equal(t, "2cf24dba5fb0a30e", resp["checksum"])

	resp = putData(t, h, "user-1", "cfg/main", []byte("world"))
	assert.Equal(t, float64(2), resp["version"])

	req := authedRequest(t, http.MethodGet, "/v2/data/cfg/main", "user-1", nil)
	rec := serveData(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "world", rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get("X-Version"))
	assert.Equal(t, codec.Checksum([]byte("world")), rec.Header().Get("ETag"))
}

func TestDataConditionalGet(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())
	putData(t, h, "user-1", "k", []byte("value"))

	req := authedRequest(t, http.MethodGet, "/v2/data/k", "user-1", nil)
	req.Header.Set("If-None-Match", codec.Checksum([]byte("value")))
	rec := serveData(h, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestDataGetMissing(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())

	req := authedRequest(t, http.MethodGet, "/v2/data/absent", "user-1", nil)
	rec := serveData(h, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDataInvalidKey(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())

	req := authedRequest(t, http.MethodGet, "/v2/data/bad%20key", "user-1", nil)
	rec := serveData(h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid characters")
}

func TestDataDatastoreDisabled(t *testing.T) {
	env := newTestEnv(t)
	limits := defaultLimits()
	limits.DatastoreEnabled = false
	h := NewDataHandler(env.data, limits)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := authedRequest(t, method, "/v2/data/dataStore/save1", "user-1", []byte("v"))
		req.Header.Set("Content-Type", "application/octet-stream")
		rec := serveData(h, req)
		require.Equal(t, http.StatusForbidden, rec.Code, method)
		assert.JSONEq(t, `{"error":"DataStore sync is disabled"}`, rec.Body.String())
	}
}

func TestDataPutWrongContentType(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())

	req := authedRequest(t, http.MethodPut, "/v2/data/k", "user-1", []byte("v"))
	req.Header.Set("Content-Type", "text/plain")
	rec := serveData(h, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestDataPutOversize(t *testing.T) {
	env := newTestEnv(t)
	limits := defaultLimits()
	limits.MaxValueBytes = 1024
	h := NewDataHandler(env.data, limits)

	req := authedRequest(t, http.MethodPut, "/v2/data/big", "user-1", make([]byte, 1025))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := serveData(h, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "Value exceeds 0MB limit")
}

func TestDataPutQuota(t *testing.T) {
	env := newTestEnv(t)
	limits := defaultLimits()
	limits.MaxTotalBytes = 100
	h := NewDataHandler(env.data, limits)

	putData(t, h, "user-1", "a", make([]byte, 60))

	req := authedRequest(t, http.MethodPut, "/v2/data/b", "user-1", make([]byte, 50))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := serveData(h, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Total storage limit exceeded"}`, rec.Body.String())

	// Replacing the existing key frees its old size first.
	putData(t, h, "user-1", "a", make([]byte, 80))
}

func TestDataDelete(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())
	putData(t, h, "user-1", "k", []byte("v"))

	req := authedRequest(t, http.MethodDelete, "/v2/data/k", "user-1", nil)
	rec := serveData(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = authedRequest(t, http.MethodGet, "/v2/data/k", "user-1", nil)
	rec = serveData(h, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManifest(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())
	putData(t, h, "user-1", "a", []byte("12345"))
	putData(t, h, "user-1", "dataStore/save", []byte("1234567890"))

	req := authedRequest(t, http.MethodGet, "/v2/manifest", "user-1", nil)
	rec := serveData(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries   []cloudsync.ManifestEntry `json:"entries"`
		TotalSize int64                     `json:"total_size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(15), resp.TotalSize)
}

func TestManifestHidesDatastoreWhenDisabled(t *testing.T) {
	env := newTestEnv(t)
	h := NewDataHandler(env.data, defaultLimits())
	putData(t, h, "user-1", "a", []byte("12345"))
	putData(t, h, "user-1", "dataStore/save", []byte("1234567890"))

	limits := defaultLimits()
	limits.DatastoreEnabled = false
	hidden := NewDataHandler(env.data, limits)

	req := authedRequest(t, http.MethodGet, "/v2/manifest", "user-1", nil)
	rec := serveData(hidden, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries   []cloudsync.ManifestEntry `json:"entries"`
		TotalSize int64                     `json:"total_size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "a", resp.Entries[0].Key)
	assert.Equal(t, int64(5), resp.TotalSize)
}
