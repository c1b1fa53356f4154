package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/internal/api/middleware"
	"github.com/equicloud/equicloud/pkg/cloudsync/data"
	"github.com/equicloud/equicloud/pkg/cloudsync/deltasync"
	"github.com/equicloud/equicloud/pkg/cloudsync/settings"
	"github.com/equicloud/equicloud/pkg/cloudsync/store/memory"
	"github.com/equicloud/equicloud/pkg/codec"
)

const (
	testMaxValue = 1 << 20
	testMaxTotal = int64(60 << 20)
)

// testEnv wires the full handler stack over an in-memory store.
type testEnv struct {
	store    *memory.MemoryStore
	settings *settings.Service
	data     *data.Service
	engine   *deltasync.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	c, err := codec.New(true, 3)
	require.NoError(t, err)
	dataSvc := data.New(st, c, testMaxValue)
	return &testEnv{
		store:    st,
		settings: settings.New(st),
		data:     dataSvc,
		engine:   deltasync.New(dataSvc, testMaxValue, testMaxTotal),
	}
}

// authedRequest builds a request carrying an authenticated user id, as
// the auth middleware would leave it.
func authedRequest(t *testing.T, method, target, userID string, body []byte) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

// serveData routes a request through a chi router so wildcard URL
// params resolve the way they do in production.
func serveData(h *DataHandler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/v2/manifest", h.Manifest)
	r.Get("/v2/data/*", h.Get)
	r.Put("/v2/data/*", h.Put)
	r.Delete("/v2/data/*", h.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

var testCtx = context.Background()
