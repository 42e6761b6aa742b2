// Package topicreader consumes topic partitions assigned by the server and
// commits processed offsets back.
package topicreader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ydb-platform/ydb-topic-go/config"
	"github.com/ydb-platform/ydb-topic-go/credentials"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/serde"
	"github.com/ydb-platform/ydb-topic-go/session"
)

// Reader reads messages of type T. Reads are serialized; Commit may be
// called from any goroutine.
type Reader[T any] struct {
	core  *reader
	deser serde.Deserializer[T]

	// lock guards cur
	lock chan struct{}
	cur  *batchDecoder

	closed    atomic.Bool
	stopAfter func() bool
}

// New opens a read session. It fails with *session.InitError if the server
// rejects the handshake. The reader stops when ctx is done or on Close.
func New[T any](ctx context.Context, conn v1.Conn, deser serde.Deserializer[T], cfg config.ReaderConfig, opts ...Option) (*Reader[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reader config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := o.l.With("component", "topicreader", "consumer", cfg.Consumer)

	core := &reader{
		conn:    conn,
		cfg:     cfg,
		sv:      session.NewSupervisor(ctx, l),
		batches: session.NewQueue[*batchDecoder](),
		l:       l,
	}

	rs, err := core.handshake(core.sv.Context())
	if err != nil {
		core.sv.Stop()
		return nil, &session.InitError{Op: "reader", Err: err}
	}
	core.rs.Store(rs)
	core.startSession(rs)

	if n, ok := conn.Credentials().(credentials.Notifier); ok {
		updates := n.Updates()
		core.sv.Go("reader token updates", func(ctx context.Context) {
			core.tokenLoop(ctx, n, updates)
		})
	}

	r := &Reader[T]{
		core:  core,
		deser: deser,
		lock:  make(chan struct{}, 1),
	}
	r.stopAfter = context.AfterFunc(ctx, func() { _ = r.Close() })

	l.Info("reader started", "session_id", rs.ID)
	return r, nil
}

// ReadOne returns the next message. A *DeserializeError consumes the
// message it failed on.
func (r *Reader[T]) ReadOne(ctx context.Context) (*Message[T], error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	d, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	raw, _ := d.pull()
	return decodeMessage(r.deser, d, raw)
}

// ReadBatch returns the rest of the current server batch
func (r *Reader[T]) ReadBatch(ctx context.Context) (*BatchMessages[T], error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	d, err := r.current(ctx)
	if err != nil {
		return nil, err
	}

	raws := d.pullRest()
	batch := &BatchMessages[T]{
		Messages:           make([]*Message[T], 0, len(raws)),
		Topic:              d.ps.topic,
		PartitionID:        d.ps.partitionID,
		PartitionSessionID: d.ps.id,
		OffsetsRange: models.OffsetsRange{
			Start: raws[0].rng.Start,
			End:   raws[len(raws)-1].rng.End,
		},
		rs: d.rs,
	}
	for _, raw := range raws {
		msg, err := decodeMessage(r.deser, d, raw)
		if err != nil {
			return nil, err
		}
		batch.Messages = append(batch.Messages, msg)
	}
	return batch, nil
}

// Close stops the reader. Blocked and later reads fail with ErrReaderClosed.
func (r *Reader[T]) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.stopAfter()
	r.core.sv.Cancel()
	if rs := r.core.rs.Load(); rs != nil {
		r.core.shutdown(rs)
	}
	for _, d := range r.core.batches.CloseAndDrain() {
		d.discard()
	}
	r.core.sv.Wait()

	r.core.l.Info("reader closed")
	return nil
}

// SessionID is the id of the current read session
func (r *Reader[T]) SessionID() string {
	return r.core.rs.Load().ID
}

func (r *Reader[T]) acquire(ctx context.Context) error {
	if r.closed.Load() {
		return ErrReaderClosed
	}
	select {
	case r.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reader[T]) release() {
	<-r.lock
}

// current returns a decoder with at least one message left, waiting for the
// next batch when needed. Batches of stopped partitions are skipped.
func (r *Reader[T]) current(ctx context.Context) (*batchDecoder, error) {
	for {
		if r.cur != nil {
			if r.cur.active() {
				return r.cur, nil
			}
			r.cur.discard()
			r.cur = nil
		}

		d, err := r.core.batches.Pop(ctx)
		if err != nil {
			if errors.Is(err, session.ErrQueueClosed) {
				return nil, ErrReaderClosed
			}
			return nil, err
		}
		r.cur = d
	}
}
