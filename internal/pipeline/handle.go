package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/starford/jotter/internal/action"
	"github.com/starford/jotter/internal/models"
)

var (
	// ErrTimeout means the wait ended before a response arrived. The action
	// may still execute later: the outcome is unknown, not cancelled.
	ErrTimeout = errors.New("pipeline: timed out waiting for response")
	// ErrDropped means the action was never executed and never will be,
	// e.g. it was queued when the pipeline stopped with the discard policy.
	ErrDropped = errors.New("pipeline: action dropped without response")
)

// Handle is the one-shot response channel for a submitted action.
// It is resolved or dropped exactly once.
type Handle struct {
	id   string
	kind action.Kind

	once     sync.Once
	done     chan struct{}
	resp     models.Response
	resolved bool
}

func newHandle(id string, kind action.Kind) *Handle {
	return &Handle{id: id, kind: kind, done: make(chan struct{})}
}

// ID returns the correlation id assigned at submission.
func (h *Handle) ID() string { return h.id }

// Kind returns the kind of the submitted action.
func (h *Handle) Kind() action.Kind { return h.kind }

// Done is closed once the handle is resolved or dropped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the response arrives, the action is dropped, or ctx ends.
// A context deadline is reported as ErrTimeout.
func (h *Handle) Wait(ctx context.Context) (models.Response, error) {
	select {
	case <-h.done:
		if !h.resolved {
			return models.Response{}, ErrDropped
		}
		return h.resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Response{}, ErrTimeout
		}
		return models.Response{}, ctx.Err()
	}
}

// WaitTimeout is Wait with a relative timeout. d <= 0 waits forever.
func (h *Handle) WaitTimeout(d time.Duration) (models.Response, error) {
	if d <= 0 {
		return h.Wait(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return h.Wait(ctx)
}

func (h *Handle) resolve(resp models.Response) {
	h.once.Do(func() {
		h.resp = resp
		h.resolved = true
		close(h.done)
	})
}

func (h *Handle) drop() {
	h.once.Do(func() { close(h.done) })
}
