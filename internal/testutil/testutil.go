// Package testutil provides shared test helpers for building managers on throwaway storage.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/quire/internal/export"
	"github.com/starford/quire/internal/kv"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/store"
)

// Clock returns a deterministic clock that advances one minute per call.
func Clock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		t := cur
		cur = cur.Add(time.Minute)
		return t
	}
}

// Logger discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestManager creates a manager over an in-memory provider with its export
// root in a temp directory. The provider is returned for blob inspection.
func TestManager(t *testing.T, opts ...noteservice.Option) (*noteservice.Manager, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	logger := Logger()
	base := []noteservice.Option{
		noteservice.WithLogger(logger),
		noteservice.WithExporter(export.New(t.TempDir(), logger)),
		noteservice.WithClock(Clock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))),
	}
	return noteservice.New(store.New(mem), append(base, opts...)...), mem
}

// TestSQLiteStore opens a SQLite-backed store in a temp directory.
func TestSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := kv.OpenSQLite(t.TempDir() + "/quire-test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}
