package delivery

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/store"
	"github.com/roach88/tallybridge/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestFront(q Queue, term *testutil.FakeTerminal) *Front {
	return NewFront(q, term, term, WithFrontLogger(quietLogger()))
}

func newTestWorker(q Queue, term *testutil.FakeTerminal, opts ...WorkerOption) *Worker {
	base := []WorkerOption{WithSendRate(rate.Inf), WithLogger(quietLogger())}
	return NewWorker(q, term, term, append(base, opts...)...)
}

func enqueueAll(t *testing.T, q Queue, payloads ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		id, err := q.Enqueue(context.Background(), p, model.DefaultKind)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func pendingPayloads(t *testing.T, q Queue) []string {
	t.Helper()
	items, err := q.ListPending(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Payload)
	}
	return out
}
