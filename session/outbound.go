package session

import (
	"context"
	"errors"
	"log/slog"
)

// Outbound serializes client messages of one session into in-order stream
// writes. Callers enqueue from any goroutine; only WriteLoop touches the stream.
type Outbound[T any] struct {
	q *Queue[T]
	l *slog.Logger
}

func NewOutbound[T any](l *slog.Logger) *Outbound[T] {
	return &Outbound[T]{
		q: NewQueue[T](),
		l: l,
	}
}

// Enqueue reports false once the outbound is closed
func (o *Outbound[T]) Enqueue(msg T) bool {
	return o.q.Push(msg)
}

// WriteLoop writes queued messages with send until the outbound is closed or
// ctx is done. It returns the first send error, nil on orderly shutdown.
func (o *Outbound[T]) WriteLoop(ctx context.Context, send func(T) error) error {
	for {
		msg, err := o.q.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := send(msg); err != nil {
			o.l.Error("write message", "error", err)
			o.Close()
			return err
		}
	}
}

func (o *Outbound[T]) Pending() int {
	return o.q.Len()
}

func (o *Outbound[T]) Close() {
	o.q.Close()
}
