package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/store"
	"github.com/roach88/tallybridge/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type backendFixture struct {
	router *gin.Engine
	store  *store.Store
	svc    *ingest.Service
}

func newBackend(t *testing.T, opts ...Option) backendFixture {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	st, err := store.Open(filepath.Join(t.TempDir(), "backend.db"),
		store.WithClock(clock.Now),
		store.WithTokenGenerator(store.NewFixedTokenGenerator("tok-a", "tok-b", "tok-c")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	schema, err := ingest.DefaultSchema()
	require.NoError(t, err)
	svc := ingest.NewService(st, schema, ingest.WithClock(clock.Now), ingest.WithLogger(quietLogger()))

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return backendFixture{router: NewBackendRouter(svc, st, opts...), store: st, svc: svc}
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func formRequest(path, token string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func jsonRequest(method, path, token, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
