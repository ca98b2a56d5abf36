// Package pipeline serializes every store operation onto one consumer goroutine.
//
// Callers submit actions from any goroutine and get a Handle back at once.
// The consumer executes actions strictly in submission order, one at a time,
// and is the only code that touches the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/jotter/internal/action"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/queue"
	"github.com/starford/jotter/internal/store"
)

// ShutdownPolicy decides what Stop does with actions still queued.
type ShutdownPolicy string

const (
	// Drain executes every queued action before Stop returns.
	Drain ShutdownPolicy = "drain"
	// Discard drops queued actions; their handles report ErrDropped.
	Discard ShutdownPolicy = "discard"
)

// DefaultUndoDepth bounds the undo journal.
const DefaultUndoDepth = 32

var (
	ErrAlreadyRunning = errors.New("pipeline: already started")
	ErrStopped        = errors.New("pipeline: stopped")
)

// Event kinds passed to the EventCallback.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventRemoved  = "removed"
	EventRestored = "restored"
	EventReloaded = "reloaded"
)

// EventCallback is called on the consumer goroutine after each successful
// mutation. It must not block for long and must not submit and wait.
type EventCallback func(kind string, rec models.Record)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithShutdownPolicy sets what Stop does with queued actions.
func WithShutdownPolicy(p ShutdownPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithUndoDepth bounds the undo journal. Zero disables undo.
func WithUndoDepth(n int) Option {
	return func(s *Service) { s.undoDepth = n }
}

// WithEventCallback registers cb for mutation events.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Service) { s.onEvent = cb }
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

type envelope struct {
	id       string
	action   action.Action
	handle   *Handle
	enqueued time.Time
}

// Service is the command pipeline.
type Service struct {
	store     *store.Store
	queue     *queue.Queue[envelope]
	logger    *slog.Logger
	policy    ShutdownPolicy
	undoDepth int
	onEvent   EventCallback

	// journal is touched only by the consumer goroutine.
	journal []action.Action

	mu    sync.Mutex
	state state
	done  chan struct{}
}

// New returns a pipeline that takes ownership of st. Nothing else may call st
// once the pipeline exists.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		queue:     queue.New[envelope](0),
		logger:    slog.Default(),
		policy:    Drain,
		undoDepth: DefaultUndoDepth,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the consumer goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return ErrAlreadyRunning
	case stateStopped:
		return ErrStopped
	}
	s.state = stateRunning
	go s.run()
	s.logger.Info("pipeline: started", slog.String("shutdown_policy", string(s.policy)))
	return nil
}

// Stop stops accepting actions, lets the current action finish, applies the
// shutdown policy to queued actions and waits for the consumer to exit.
// Stop is idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	prev := s.state
	s.state = stateStopped
	s.mu.Unlock()

	if prev == stateStopped {
		<-s.done
		return
	}

	s.queue.Close()
	if s.policy == Discard || prev == stateIdle {
		if dropped := s.queue.Drain(); len(dropped) > 0 {
			for _, env := range dropped {
				env.handle.drop()
			}
			s.logger.Warn("pipeline: dropped queued actions", slog.Int("count", len(dropped)))
		}
	}
	if prev == stateIdle {
		close(s.done)
		return
	}
	<-s.done
	s.logger.Info("pipeline: stopped")
}

// Submit enqueues a and returns its handle without waiting for execution.
// After Stop the returned handle is already dropped.
func (s *Service) Submit(a action.Action) *Handle {
	if a == nil {
		h := newHandle("", 0)
		h.drop()
		return h
	}
	id := ulid.Make().String()
	h := newHandle(id, a.Kind())
	env := envelope{id: id, action: a, handle: h, enqueued: time.Now()}
	if !s.queue.Push(env) {
		h.drop()
		s.logger.Debug("pipeline: rejected action after stop",
			slog.String("action", a.Kind().String()), slog.String("action_id", id))
	}
	return h
}

// Pending returns the number of queued actions.
func (s *Service) Pending() int {
	return s.queue.Len()
}

func (s *Service) run() {
	defer close(s.done)
	for {
		env, err := s.queue.Pop(context.Background())
		if err != nil {
			return
		}
		s.dispatch(env)
	}
}

func (s *Service) dispatch(env envelope) {
	start := time.Now()
	resp := s.execSafely(env)
	env.handle.resolve(resp)

	attrs := []any{
		slog.String("action", env.action.Kind().String()),
		slog.String("action_id", env.id),
		slog.String("code", resp.Code.String()),
		slog.Duration("queued", start.Sub(env.enqueued)),
		slog.Duration("took", time.Since(start)),
	}
	if resp.Err != nil {
		s.logger.Error("pipeline: action failed", append(attrs, slog.String("error", resp.Err.Error()))...)
		return
	}
	s.logger.Debug("pipeline: action executed", attrs...)
}

// execSafely keeps a fault in one action from escaping the consumer loop.
func (s *Service) execSafely(env envelope) (resp models.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = fault(fmt.Errorf("pipeline: panic in %s: %v", env.action.Kind(), r))
		}
	}()
	return s.exec(env.action, true)
}

func fault(err error) models.Response {
	return models.Response{Code: models.GenericError, Err: err}
}

func (s *Service) emit(kind string, rec models.Record) {
	if s.onEvent != nil {
		s.onEvent(kind, rec)
	}
}
