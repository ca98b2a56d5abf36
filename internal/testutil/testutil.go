// Package testutil provides shared test helpers for data directories, stores and pipelines.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/jotter/internal/action"
	"github.com/starford/jotter/internal/crypto"
	"github.com/starford/jotter/internal/pipeline"
	"github.com/starford/jotter/internal/storage"
	"github.com/starford/jotter/internal/store"
)

// CheapKDF keeps key derivation fast in tests.
func CheapKDF() crypto.Option {
	return crypto.WithParams(crypto.Params{Time: 1, Memory: 64, Threads: 1})
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a store over a fresh data directory. It is not started.
func TestStore(t *testing.T, opts ...store.Option) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	return OpenStore(t, dir, opts...), dir
}

// OpenStore creates a store over an existing data directory. It is not started.
func OpenStore(t *testing.T, dir string, opts ...store.Option) *store.Store {
	t.Helper()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]store.Option{store.WithCodecOptions(CheapKDF())}, opts...)
	return store.New(fs, opts...)
}

// RunPipeline starts a pipeline over st without loading the store.
// The pipeline is stopped on cleanup.
func RunPipeline(t *testing.T, st *store.Store, opts ...pipeline.Option) *pipeline.Service {
	t.Helper()
	opts = append([]pipeline.Option{pipeline.WithLogger(Logger())}, opts...)
	p := pipeline.New(st, opts...)
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Stop)
	return p
}

// TestPipeline creates a running pipeline over a started, empty store.
func TestPipeline(t *testing.T, opts ...pipeline.Option) (*pipeline.Service, string) {
	t.Helper()
	st, dir := TestStore(t)
	p := RunPipeline(t, st, opts...)
	if _, err := p.Submit(action.StartStore{}).WaitTimeout(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	return p, dir
}
