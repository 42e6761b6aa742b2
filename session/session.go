package session

import (
	"log/slog"
	"sync/atomic"

	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
)

// Session is one established stream together with the id the server assigned
// to it on the init handshake. A session is used once: after the first
// Reconnect it is dead and a new one replaces it.
type Session[Req, Resp any] struct {
	ID     string
	Stream v1.Stream[Req, Resp]

	active atomic.Bool
	closed atomic.Bool

	l *slog.Logger
}

func New[Req, Resp any](id string, stream v1.Stream[Req, Resp], l *slog.Logger) *Session[Req, Resp] {
	s := &Session[Req, Resp]{
		ID:     id,
		Stream: stream,
		l:      l.With("session_id", id),
	}
	s.active.Store(true)
	return s
}

func (s *Session[Req, Resp]) Active() bool {
	return s.active.Load()
}

// Reconnect retires the session and runs initialize to build its successor.
// Only the first caller wins; concurrent and later callers return false at
// once without calling initialize.
func (s *Session[Req, Resp]) Reconnect(reason error, initialize func() error) bool {
	if !s.active.CompareAndSwap(true, false) {
		return false
	}

	s.l.Warn("session lost, reconnecting", "reason", reason)
	_ = s.Close()

	if err := initialize(); err != nil {
		s.l.Error("reconnect", "error", err)
	}
	return true
}

// Deactivate retires the session without a successor
func (s *Session[Req, Resp]) Deactivate() bool {
	return s.active.CompareAndSwap(true, false)
}

// Close releases the stream. Safe to call more than once.
func (s *Session[Req, Resp]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = s.Stream.CloseSend()
	return s.Stream.Close()
}
