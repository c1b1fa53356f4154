package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/pkg/cloudsync/deltasync"
	"github.com/equicloud/equicloud/pkg/codec"
)

func TestSyncRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	h := NewSyncHandler(env.engine)

	value := []byte("payload")
	body, err := json.Marshal(deltasync.Request{
		Uploads: []deltasync.Upload{
			{Key: "k", Value: value, Checksum: codec.Checksum(value)},
		},
	})
	require.NoError(t, err)

	req := authedRequest(t, http.MethodPost, "/v2/sync", "user-1", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp deltasync.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Uploaded, 1)
	assert.Equal(t, int64(1), resp.Uploaded[0].Version)
	assert.Empty(t, resp.Errors)

	// The value landed and round-trips through the binary surface.
	entry, err := env.data.Get(testCtx, "user-1", "k")
	require.NoError(t, err)
	assert.Equal(t, value, entry.Value)
}

func TestSyncBase64ValueWireForm(t *testing.T) {
	env := newTestEnv(t)
	h := NewSyncHandler(env.engine)

	// "AAAA" is base64 for three zero bytes.
	zeros := []byte{0, 0, 0}
	body := `{"client_manifest":[],"uploads":[{"key":"k","value":"AAAA","checksum":"` +
		codec.Checksum(zeros) + `"}]}`

	req := authedRequest(t, http.MethodPost, "/v2/sync", "user-1", []byte(body))
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp deltasync.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Uploaded, 1)
	assert.Empty(t, resp.Errors)
}

func TestSyncChecksumMismatchReported(t *testing.T) {
	env := newTestEnv(t)
	h := NewSyncHandler(env.engine)

	body := `{"client_manifest":[],"uploads":[{"key":"k","value":"AAAA","checksum":"deadbeefdeadbeef"}]}`
	req := authedRequest(t, http.MethodPost, "/v2/sync", "user-1", []byte(body))
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "per-key failures keep the 200 status")
	var resp deltasync.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, deltasync.Failure{Key: "k", Error: "Checksum mismatch"}, resp.Errors[0])
}

func TestSyncMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	h := NewSyncHandler(env.engine)

	req := authedRequest(t, http.MethodPost, "/v2/sync", "user-1", []byte("{not json"))
	rec := httptest.NewRecorder()
	h.Sync(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailManifest = assert.AnError
	h := NewSyncHandler(env.engine)

	req := authedRequest(t, http.MethodPost, "/v2/sync", "user-1", []byte(`{"client_manifest":[]}`))
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Database error"}`, rec.Body.String())
}
