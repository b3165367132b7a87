package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tallybridge/internal/testutil"
)

// createTestStore opens a store in a fresh temp directory with a stepping
// clock, so every timestamp it writes is distinct and ordered.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, _ := createTestStoreAt(t, filepath.Join(t.TempDir(), "test.db"), opts...)
	return s
}

func createTestStoreAt(t *testing.T, path string, opts ...Option) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
