package syncagent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tallybridge/internal/api"
	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// liveBackend runs the real ingestion API over HTTP with client "c1"
// registered under token "tok-c1".
type liveBackend struct {
	url   string
	store *store.Store
}

func newLiveBackend(t *testing.T) liveBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "backend.db"),
		store.WithTokenGenerator(store.NewFixedTokenGenerator("tok-c1")))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	schema, err := ingest.DefaultSchema()
	require.NoError(t, err)
	svc := ingest.NewService(st, schema, ingest.WithLogger(quietLogger()))
	_, err = svc.Register(context.Background(), "c1", "Acme")
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewBackendRouter(svc, st, api.WithLogger(quietLogger())))
	t.Cleanup(srv.Close)
	return liveBackend{url: srv.URL, store: st}
}

func (lb liveBackend) client(token string) *Backend {
	return NewBackend(lb.url+"/", "c1", token, 5*time.Second)
}

// fakeUploader records calls. uploadErr, when set, fails every upload.
type fakeUploader struct {
	uploads   []string
	reports   []bool
	syncTimes []time.Time
	uploadErr error
}

func (f *fakeUploader) Upload(_ context.Context, dataType model.DataType, payload string) (ingest.UploadResult, error) {
	if f.uploadErr != nil {
		return ingest.UploadResult{}, f.uploadErr
	}
	if dataType != model.DataTypeXML {
		return ingest.UploadResult{}, fmt.Errorf("unexpected data type %q", dataType)
	}
	f.uploads = append(f.uploads, payload)
	return ingest.UploadResult{TaskID: int64(len(f.uploads)), Status: model.TaskPending}, nil
}

func (f *fakeUploader) ReportSync(_ context.Context, lastSync time.Time, ok bool) error {
	f.reports = append(f.reports, ok)
	f.syncTimes = append(f.syncTimes, lastSync)
	return nil
}

func writeRequests(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".xml"), []byte(body), 0o600))
	}
	return dir
}
