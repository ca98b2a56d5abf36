package ingress

import (
	"context"
	"log/slog"
	"time"
)

// Frame is one payload delivered by a connection.
type Frame struct {
	Remote   string
	Payload  []byte
	Received time.Time
}

// Handler consumes framed payloads. Turning a payload into a pipeline
// action belongs here; the server itself never looks inside a frame.
//
// ctx carries the values of the context given to Serve but is not cancelled
// when Serve shuts down, so frames read before shutdown are still handled
// with a live context.
type Handler interface {
	HandleFrame(ctx context.Context, f Frame) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, f Frame) error

func (fn HandlerFunc) HandleFrame(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

// LogHandler only records that a frame arrived.
type LogHandler struct {
	Logger *slog.Logger
}

func (h LogHandler) HandleFrame(_ context.Context, f Frame) error {
	h.Logger.Info("ingress: frame received",
		slog.String("remote", f.Remote),
		slog.Int("size", len(f.Payload)))
	return nil
}
