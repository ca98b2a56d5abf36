package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/jotter/internal/checksum"
	"github.com/starford/jotter/internal/query"
	"github.com/starford/jotter/internal/recordservice"
	"github.com/starford/jotter/internal/storage"
	"github.com/starford/jotter/internal/store"
	"github.com/starford/jotter/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func watcherTestEnv(t *testing.T) (string, *checksum.Tracker, *recordservice.Service) {
	t.Helper()
	dir := t.TempDir()
	tracker := checksum.NewTracker()
	fs, err := storage.NewFS(dir, storage.WithTracker(tracker))
	if err != nil {
		t.Fatal(err)
	}
	p := testutil.RunPipeline(t, store.New(fs))
	svc := recordservice.New(p)
	if _, err := svc.Unlock(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, store.DefaultFile), tracker, svc
}

func startWatch(t *testing.T, file string, tracker *checksum.Tracker, svc *recordservice.Service) *atomic.Int32 {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var reloads atomic.Int32
	reload := func(ctx context.Context) error {
		reloads.Add(1)
		return svc.Reload(ctx)
	}
	go func() {
		defer close(done)
		if err := Watch(ctx, file, tracker, reload, testutil.Logger(), 20*time.Millisecond); err != nil {
			t.Error(err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
	return &reloads
}

func TestWatch_ExternalChangeReloads(t *testing.T) {
	file, tracker, svc := watcherTestEnv(t)
	reloads := startWatch(t, file, tracker, svc)

	doc := `{"version":1,"records":[` +
		`{"text":"from elsewhere","tags":["sync"],"cdate":"2024-01-01","mdate":"2024-01-01","deleted":false},` +
		`{"text":"second","tags":[],"cdate":"2024-01-02","mdate":"2024-01-02","deleted":false}]}`
	if err := os.WriteFile(file, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		recs, err := svc.Search(context.Background(), query.All())
		return err == nil && len(recs) == 2
	}, "external change not reloaded")

	recs, _ := svc.Search(context.Background(), query.Tag("sync"))
	if len(recs) != 1 || recs[0].Text != "from elsewhere" {
		t.Errorf("records = %+v", recs)
	}
	if reloads.Load() == 0 {
		t.Error("reload not called")
	}
}

func TestWatch_IgnoresOwnWrites(t *testing.T) {
	file, tracker, svc := watcherTestEnv(t)
	reloads := startWatch(t, file, tracker, svc)

	for i := range 3 {
		if _, err := svc.Add(context.Background(), "local", nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	time.Sleep(300 * time.Millisecond)

	if n := reloads.Load(); n != 0 {
		t.Errorf("reloads = %d, want 0 for self writes", n)
	}
}

func TestWatch_RemovedFileKeepsMemory(t *testing.T) {
	file, tracker, svc := watcherTestEnv(t)
	if _, err := svc.Add(context.Background(), "keep me", nil); err != nil {
		t.Fatal(err)
	}
	reloads := startWatch(t, file, tracker, svc)

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if n := reloads.Load(); n != 0 {
		t.Errorf("reloads = %d, want 0", n)
	}
	recs, err := svc.Search(context.Background(), query.All())
	if err != nil || len(recs) != 1 {
		t.Errorf("records = %v, err = %v", recs, err)
	}
}
