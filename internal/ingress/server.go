package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/starford/jotter/internal/queue"
)

const (
	DefaultBacklog    = 16
	DefaultMaxPayload = 1 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBacklog bounds the number of connections served at once. Connections
// beyond it are closed as soon as they are accepted.
func WithBacklog(n int) Option {
	return func(s *Server) { s.backlog = n }
}

// WithMaxPayload bounds the declared frame length.
func WithMaxPayload(n int) Option {
	return func(s *Server) { s.maxPayload = n }
}

// Server runs an accept loop that frames connections and a single consumer
// that hands frames to the Handler in arrival order. It shares nothing with
// the command pipeline.
type Server struct {
	handler    Handler
	logger     *slog.Logger
	backlog    int
	maxPayload int
}

// NewServer creates a server delivering frames to h.
func NewServer(h Handler, opts ...Option) *Server {
	s := &Server{
		handler:    h,
		logger:     slog.Default(),
		backlog:    DefaultBacklog,
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backlog <= 0 {
		s.backlog = DefaultBacklog
	}
	return s
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ingress: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Frames already
// read when ctx ends are still handed to the Handler before Serve returns.
// Serve closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	frames := queue.New[Frame](0)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.consume(context.WithoutCancel(gCtx), frames)
		return nil
	})

	g.Go(func() error {
		defer frames.Close()
		return s.accept(gCtx, ln, frames)
	})

	stop := context.AfterFunc(gCtx, func() { ln.Close() })
	defer stop()

	s.logger.Info("ingress: listening", slog.String("address", ln.Addr().String()),
		slog.Int("backlog", s.backlog), slog.Int("max_payload", s.maxPayload))

	err := g.Wait()
	s.logger.Info("ingress: stopped")
	return err
}

func (s *Server) accept(ctx context.Context, ln net.Listener, frames *queue.Queue[Frame]) error {
	sem := semaphore.NewWeighted(int64(s.backlog))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ingress: accept: %w", err)
		}

		remote := conn.RemoteAddr().String()
		if !sem.TryAcquire(1) {
			s.logger.Warn("ingress: backlog full, closing connection", slog.String("remote", remote))
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			s.serveConn(ctx, conn, frames)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, frames *queue.Queue[Frame]) {
	remote := conn.RemoteAddr().String()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	s.logger.Debug("ingress: connection opened", slog.String("remote", remote))
	for {
		payload, err := ReadFrame(conn, s.maxPayload)
		if errors.Is(err, io.EOF) {
			s.logger.Debug("ingress: connection closed", slog.String("remote", remote))
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("ingress: protocol fault, abandoning connection",
					slog.String("remote", remote), slog.String("error", err.Error()))
			}
			return
		}
		frames.Push(Frame{Remote: remote, Payload: payload, Received: time.Now()})
	}
}

// consume is the single frame consumer. It pops until the queue is closed
// and empty; ctx is detached from shutdown so drained frames still run.
func (s *Server) consume(ctx context.Context, frames *queue.Queue[Frame]) {
	for {
		f, err := frames.Pop(context.Background())
		if err != nil {
			return
		}
		s.handle(ctx, f)
	}
}

func (s *Server) handle(ctx context.Context, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingress: handler panic",
				slog.String("remote", f.Remote), slog.Any("panic", r))
		}
	}()
	if err := s.handler.HandleFrame(ctx, f); err != nil {
		s.logger.Warn("ingress: handler failed",
			slog.String("remote", f.Remote), slog.String("error", err.Error()))
	}
}
