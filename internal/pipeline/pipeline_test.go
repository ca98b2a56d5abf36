package pipeline_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jotter/internal/action"
	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/pipeline"
	"github.com/starford/jotter/internal/query"
	"github.com/starford/jotter/internal/testutil"
)

func wait(t *testing.T, h *pipeline.Handle) models.Response {
	t.Helper()
	resp, err := h.WaitTimeout(5 * time.Second)
	require.NoError(t, err)
	return resp
}

// gate blocks the consumer inside a Search predicate until release is closed.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) search() action.Search {
	return action.Search{Predicate: func(models.Record) bool {
		g.once.Do(func() { close(g.entered) })
		<-g.release
		return true
	}}
}

// block adds a record so the predicate runs, then parks the consumer.
func block(t *testing.T, p *pipeline.Service) (*gate, *pipeline.Handle) {
	t.Helper()
	wait(t, p.Submit(action.AddRecord{Text: "seed"}))
	g := newGate()
	h := p.Submit(g.search())
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer never reached the gate")
	}
	return g, h
}

func TestScenario_AddSearchSoftDelete(t *testing.T) {
	p, _ := testutil.TestPipeline(t)

	resp := wait(t, p.Submit(action.AddRecord{Text: "hello", Tags: []string{"work"}}))
	require.Equal(t, models.OK, resp.Code)
	require.Positive(t, resp.ID)

	resp = wait(t, p.Submit(action.Search{Predicate: query.Tag("work")}))
	require.Equal(t, models.OK, resp.Code)
	require.Len(t, resp.Records, 1)
	rec := resp.Records[0]
	assert.Equal(t, "hello", rec.Text)

	rec.SetDeleted(true)
	resp = wait(t, p.Submit(action.UpdateRecord{Record: rec}))
	require.Equal(t, models.OK, resp.Code)

	resp = wait(t, p.Submit(action.Search{Predicate: query.And(query.Tag("work"), query.NotDeleted())}))
	assert.Equal(t, models.NotFound, resp.Code)
	assert.Empty(t, resp.Records)

	resp = wait(t, p.Submit(action.Search{Predicate: query.Tag("work")}))
	require.Len(t, resp.Records, 1)
	assert.True(t, resp.Records[0].Deleted)
}

func TestSubmit_FIFO(t *testing.T) {
	p, _ := testutil.TestPipeline(t)

	handles := make([]*pipeline.Handle, 50)
	for i := range handles {
		handles[i] = p.Submit(action.AddRecord{Text: "r"})
	}
	last := 0
	for _, h := range handles {
		resp := wait(t, h)
		require.Equal(t, models.OK, resp.Code)
		assert.Greater(t, resp.ID, last)
		last = resp.ID
	}
}

func TestSubmit_ConcurrentProducers(t *testing.T) {
	p, _ := testutil.TestPipeline(t)

	const producers, each = 8, 20
	var wg sync.WaitGroup
	ids := make([][]int, producers)
	for i := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hs := make([]*pipeline.Handle, each)
			for j := range hs {
				hs[j] = p.Submit(action.AddRecord{Text: "x"})
			}
			for _, h := range hs {
				resp, err := h.WaitTimeout(5 * time.Second)
				if err == nil {
					ids[i] = append(ids[i], resp.ID)
				}
			}
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for _, got := range ids {
		require.Len(t, got, each)
		for j := 1; j < len(got); j++ {
			assert.Greater(t, got[j], got[j-1], "per-producer order")
		}
		for _, id := range got {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	}
}

func TestStop_DrainExecutesQueued(t *testing.T) {
	p, _ := testutil.TestPipeline(t, pipeline.WithShutdownPolicy(pipeline.Drain))
	g, blocked := block(t, p)

	queued := make([]*pipeline.Handle, 5)
	for i := range queued {
		queued[i] = p.Submit(action.AddRecord{Text: "queued"})
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	close(g.release)
	<-stopped

	assert.Equal(t, models.OK, wait(t, blocked).Code)
	for _, h := range queued {
		assert.Equal(t, models.OK, wait(t, h).Code)
	}

	_, err := p.Submit(action.AddRecord{Text: "late"}).WaitTimeout(time.Second)
	assert.ErrorIs(t, err, pipeline.ErrDropped)
}

func TestStop_DiscardDropsQueued(t *testing.T) {
	p, _ := testutil.TestPipeline(t, pipeline.WithShutdownPolicy(pipeline.Discard))
	g, blocked := block(t, p)

	queued := make([]*pipeline.Handle, 5)
	for i := range queued {
		queued[i] = p.Submit(action.AddRecord{Text: "queued"})
	}
	require.Equal(t, 5, p.Pending())

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool { return p.Pending() == 0 }, 5*time.Second, time.Millisecond)
	close(g.release)
	<-stopped

	// The in-flight action still completes.
	assert.Equal(t, models.OK, wait(t, blocked).Code)
	for _, h := range queued {
		_, err := h.WaitTimeout(time.Second)
		assert.ErrorIs(t, err, pipeline.ErrDropped)
	}
}

func TestHandle_TimeoutIsNotDropped(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	g, _ := block(t, p)

	h := p.Submit(action.AddRecord{Text: "slow"})
	_, err := h.WaitTimeout(20 * time.Millisecond)
	require.ErrorIs(t, err, pipeline.ErrTimeout)

	close(g.release)
	resp := wait(t, h)
	assert.Equal(t, models.OK, resp.Code, "action still executes after the wait gave up")
}

func TestStop_Idempotent(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	p.Stop()
	p.Stop()
	assert.ErrorIs(t, p.Start(), pipeline.ErrStopped)
}

func TestStart_Twice(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	assert.ErrorIs(t, p.Start(), pipeline.ErrAlreadyRunning)
}

func TestStop_BeforeStartDropsQueued(t *testing.T) {
	st, _ := testutil.TestStore(t)
	p := pipeline.New(st, pipeline.WithLogger(testutil.Logger()))
	h := p.Submit(action.StartStore{})
	p.Stop()
	_, err := h.WaitTimeout(time.Second)
	assert.ErrorIs(t, err, pipeline.ErrDropped)
}

func TestFault_PanicIsIsolated(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	wait(t, p.Submit(action.AddRecord{Text: "a"}))

	resp := wait(t, p.Submit(action.Search{Predicate: func(models.Record) bool { panic("boom") }}))
	assert.Equal(t, models.GenericError, resp.Code)
	require.Error(t, resp.Err)
	assert.Contains(t, resp.Err.Error(), "boom")

	resp = wait(t, p.Submit(action.AddRecord{Text: "b"}))
	assert.Equal(t, models.OK, resp.Code, "consumer keeps running")
}

type foreign struct{ action.Undo }

func TestFault_UnsupportedAction(t *testing.T) {
	p, _ := testutil.TestPipeline(t)

	resp := wait(t, p.Submit(foreign{}))
	assert.Equal(t, models.GenericError, resp.Code)
	assert.ErrorIs(t, resp.Err, apperr.ErrUnsupported)

	resp = wait(t, p.Submit(action.AddRecord{Text: "after"}))
	assert.Equal(t, models.OK, resp.Code)
}

func TestMutationBeforeStart(t *testing.T) {
	st, _ := testutil.TestStore(t)
	p := pipeline.New(st, pipeline.WithLogger(testutil.Logger()))
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	resp := wait(t, p.Submit(action.AddRecord{Text: "early"}))
	assert.Equal(t, models.GenericError, resp.Code)
	assert.ErrorIs(t, resp.Err, apperr.ErrNotStarted)
}

func TestSetPassword_AfterStart(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	resp := wait(t, p.Submit(action.SetPassword{Password: "late"}))
	assert.Equal(t, models.GenericError, resp.Code)
	assert.ErrorIs(t, resp.Err, apperr.ErrAlreadyStarted)
}

func TestSearch_NoMatchIsNotFound(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	resp := wait(t, p.Submit(action.Search{Predicate: query.Tag("nothing")}))
	assert.Equal(t, models.NotFound, resp.Code)
}

func TestRemoveRecord_Unknown(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	resp := wait(t, p.Submit(action.RemoveRecord{ID: 42}))
	assert.Equal(t, models.NotFound, resp.Code)
}

func all(t *testing.T, p *pipeline.Service) []models.Record {
	t.Helper()
	return wait(t, p.Submit(action.Search{})).Records
}

func TestUndo_Compensations(t *testing.T) {
	p, _ := testutil.TestPipeline(t)

	id := wait(t, p.Submit(action.AddRecord{Text: "v1", Tags: []string{"a"}})).ID

	rec := all(t, p)[0]
	rec.SetText("v2", models.Today())
	require.Equal(t, models.OK, wait(t, p.Submit(action.UpdateRecord{Record: rec})).Code)
	require.Equal(t, models.OK, wait(t, p.Submit(action.RemoveRecord{ID: id})).Code)
	assert.Empty(t, all(t, p))

	// undo remove
	resp := wait(t, p.Submit(action.Undo{}))
	require.Equal(t, models.OK, resp.Code)
	recs := all(t, p)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.Equal(t, "v2", recs[0].Text)

	// undo update
	require.Equal(t, models.OK, wait(t, p.Submit(action.Undo{})).Code)
	recs = all(t, p)
	require.Len(t, recs, 1)
	assert.Equal(t, "v1", recs[0].Text)
	assert.Equal(t, []string{"a"}, recs[0].Tags)

	// undo add
	require.Equal(t, models.OK, wait(t, p.Submit(action.Undo{})).Code)
	assert.Empty(t, all(t, p))

	assert.Equal(t, models.Empty, wait(t, p.Submit(action.Undo{})).Code)
}

func TestUndo_DepthBound(t *testing.T) {
	p, _ := testutil.TestPipeline(t, pipeline.WithUndoDepth(2))
	for range 3 {
		wait(t, p.Submit(action.AddRecord{Text: "x"}))
	}
	assert.Equal(t, models.OK, wait(t, p.Submit(action.Undo{})).Code)
	assert.Equal(t, models.OK, wait(t, p.Submit(action.Undo{})).Code)
	assert.Equal(t, models.Empty, wait(t, p.Submit(action.Undo{})).Code)
	assert.Len(t, all(t, p), 1)
}

func TestUndo_ReloadClearsJournal(t *testing.T) {
	p, _ := testutil.TestPipeline(t)
	wait(t, p.Submit(action.AddRecord{Text: "x"}))
	require.Equal(t, models.OK, wait(t, p.Submit(action.StartStore{})).Code)
	assert.Equal(t, models.Empty, wait(t, p.Submit(action.Undo{})).Code)
	assert.Len(t, all(t, p), 1)
}

func TestEvents(t *testing.T) {
	var (
		mu    sync.Mutex
		kinds []string
	)
	p, _ := testutil.TestPipeline(t, pipeline.WithEventCallback(func(kind string, _ models.Record) {
		mu.Lock()
		kinds = append(kinds, kind)
		mu.Unlock()
	}))

	id := wait(t, p.Submit(action.AddRecord{Text: "x"})).ID
	rec := all(t, p)[0]
	rec.SetDeleted(true)
	wait(t, p.Submit(action.UpdateRecord{Record: rec}))
	wait(t, p.Submit(action.RemoveRecord{ID: id}))
	wait(t, p.Submit(action.Undo{}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		pipeline.EventReloaded,
		pipeline.EventCreated,
		pipeline.EventDeleted,
		pipeline.EventRemoved,
		pipeline.EventRestored,
	}, kinds)
}
