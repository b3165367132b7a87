package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tallybridge/internal/store"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}

	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// seedQueue creates a queue database holding payloads, all pending.
func seedQueue(t *testing.T, payloads ...string) (string, []int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := store.Open(path)
	require.NoError(t, err)
	defer q.Close()

	ids := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		id, err := q.Enqueue(context.Background(), p, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return path, ids
}

func pendingPayloads(t *testing.T, path string) []string {
	t.Helper()
	q, err := store.Open(path)
	require.NoError(t, err)
	defer q.Close()

	items, err := q.ListPending(context.Background())
	require.NoError(t, err)
	out := []string{}
	for _, it := range items {
		out = append(out, it.Payload)
	}
	return out
}

// fakeTally is an HTTP terminal that acknowledges every document.
type fakeTally struct {
	*httptest.Server
	mu       sync.Mutex
	received []string
}

func newFakeTally(t *testing.T) *fakeTally {
	t.Helper()
	ft := &fakeTally{}
	ft.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ft.mu.Lock()
		ft.received = append(ft.received, string(body))
		ft.mu.Unlock()
		io.WriteString(w, "<RESPONSE>ok</RESPONSE>")
	}))
	t.Cleanup(ft.Close)
	return ft
}

func (ft *fakeTally) Received() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]string(nil), ft.received...)
}

// closedURL returns an http URL whose port refuses connections.
func closedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
