// Package topicwriter publishes messages to a topic partition over a single
// write stream, keeping the order of sends and resending unacked messages
// after reconnects.
package topicwriter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ydb-platform/ydb-topic-go/codec"
	"github.com/ydb-platform/ydb-topic-go/config"
	"github.com/ydb-platform/ydb-topic-go/credentials"
	"github.com/ydb-platform/ydb-topic-go/future"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
	"github.com/ydb-platform/ydb-topic-go/metrics"
	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
	"github.com/ydb-platform/ydb-topic-go/serde"
	"github.com/ydb-platform/ydb-topic-go/session"
)

const (
	defaultMaxRequestBytes    = 16 << 20
	defaultMaxRequestMessages = 1000
)

// Producer writes values of type T to one topic. It is safe for concurrent use.
type Producer[T any] struct {
	conn v1.Conn
	cfg  config.ProducerConfig
	ser  serde.Serializer[T]
	opts options

	sv *session.Supervisor

	// sem admits one drain or session swap at a time. seqNo is guarded by it.
	sem   *semaphore.Weighted
	seqNo int64
	ws    atomic.Pointer[writerSession]

	bufMu     sync.Mutex
	buffer    []*outbound
	bufClosed bool

	inflight  *inFlight
	closed    atomic.Bool
	stopAfter func() bool

	l *slog.Logger
}

// New opens a write session. It fails with *session.InitError if the server
// rejects the handshake. The producer stops when ctx is done or on Close.
func New[T any](ctx context.Context, conn v1.Conn, ser serde.Serializer[T], cfg config.ProducerConfig, opts ...Option) (*Producer[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("producer config: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := o.l.With("component", "topicwriter", "producer_id", cfg.ProducerID, "path", cfg.Path)

	p := &Producer[T]{
		conn:     conn,
		cfg:      cfg,
		ser:      ser,
		opts:     o,
		sv:       session.NewSupervisor(ctx, l),
		sem:      semaphore.NewWeighted(1),
		inflight: newInFlight(l),
		l:        l,
	}

	ws, err := p.handshake(p.sv.Context())
	if err != nil {
		p.sv.Stop()
		return nil, &session.InitError{Op: "producer", Err: err}
	}
	p.seqNo = ws.lastSeqNo
	p.ws.Store(ws)
	p.startSession(ws)

	if n, ok := conn.Credentials().(credentials.Notifier); ok {
		updates := n.Updates()
		p.sv.Go("writer token updates", func(ctx context.Context) {
			p.tokenLoop(ctx, n, updates)
		})
	}

	p.stopAfter = context.AfterFunc(ctx, func() { _ = p.Close() })

	p.l.Info("producer started", "session_id", ws.ID, "last_seq_no", ws.lastSeqNo)
	return p, nil
}

// Send produces v and waits for the server ack
func (p *Producer[T]) Send(ctx context.Context, v T) (models.SendResult, error) {
	return p.SendAsync(v).Wait(ctx)
}

// SendMessage produces msg and waits for the server ack
func (p *Producer[T]) SendMessage(ctx context.Context, msg Message[T]) (models.SendResult, error) {
	return p.SendMessageAsync(msg).Wait(ctx)
}

// SendAsync produces v. The returned future completes on the server ack.
func (p *Producer[T]) SendAsync(v T) *future.Future[models.SendResult] {
	return p.SendMessageAsync(Message[T]{Data: v})
}

func (p *Producer[T]) SendMessageAsync(msg Message[T]) *future.Future[models.SendResult] {
	m, err := p.encode(msg)
	if err != nil {
		return future.Failed[models.SendResult](err)
	}

	p.bufMu.Lock()
	if p.bufClosed {
		p.bufMu.Unlock()
		return future.Failed[models.SendResult](ErrProducerClosed)
	}
	wasEmpty := len(p.buffer) == 0
	p.buffer = append(p.buffer, m)
	p.bufMu.Unlock()

	// whoever makes the buffer non-empty drains it; later senders ride along
	if wasEmpty {
		if err := p.drain(p.sv.Context()); err != nil {
			p.l.Debug("drain", "error", err)
		}
	}
	return m.result
}

// Flush waits until every message sent before the call is acked or failed
func (p *Producer[T]) Flush(ctx context.Context) error {
	p.bufMu.Lock()
	pending := make([]*future.Future[models.SendResult], 0, len(p.buffer))
	for _, m := range p.buffer {
		pending = append(pending, m.result)
	}
	for _, m := range p.inflight.snapshot() {
		pending = append(pending, m.result)
	}
	p.bufMu.Unlock()

	for _, f := range pending {
		select {
		case <-f.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops the producer. Messages not acked yet fail with ErrProducerClosed.
func (p *Producer[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.stopAfter()
	p.sv.Cancel()
	if ws := p.ws.Load(); ws != nil {
		ws.Deactivate()
		ws.out.Close()
		_ = ws.Close()
	}
	p.sv.Wait()

	p.bufMu.Lock()
	buffered := p.buffer
	p.buffer = nil
	p.bufClosed = true
	p.bufMu.Unlock()

	for _, m := range buffered {
		m.result.Fail(ErrProducerClosed)
	}
	p.inflight.close(ErrProducerClosed)

	p.l.Info("producer closed")
	return nil
}

// SessionID is the id of the current write session
func (p *Producer[T]) SessionID() string {
	return p.ws.Load().ID
}

func (p *Producer[T]) encode(msg Message[T]) (*outbound, error) {
	payload, err := p.ser.Serialize(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	data, err := codec.Encode(p.cfg.Codec, payload)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &outbound{
		data:             data,
		uncompressedSize: int64(len(payload)),
		createdAt:        createdAt,
		metadata:         msg.Metadata,
		result:           future.New[models.SendResult](),
	}, nil
}

// drain moves the whole buffer to the stream. Seq nos are assigned in buffer
// order, so the wire order matches the admission order of sends.
func (p *Producer[T]) drain(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	// messages move from buffer to in flight under bufMu, so Flush always
	// finds each one in one of them
	p.bufMu.Lock()
	batch := p.buffer
	p.buffer = nil
	for _, m := range batch {
		p.seqNo++
		m.seqNo = p.seqNo
	}
	p.inflight.push(batch...)
	p.bufMu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	// a dead session resends everything in flight on reconnect
	p.write(p.ws.Load(), batch)
	return nil
}

// write enqueues msgs on the session outbound as one or more write requests
func (p *Producer[T]) write(ws *writerSession, msgs []*outbound) {
	for _, req := range p.writeRequests(msgs) {
		if !ws.out.Enqueue(req) {
			return
		}
		metrics.MessagesSent.Add(float64(len(req.Messages)))
	}
}

func (p *Producer[T]) writeRequests(msgs []*outbound) []*rawtopic.WriteRequest {
	var (
		reqs  []*rawtopic.WriteRequest
		cur   *rawtopic.WriteRequest
		bytes int
	)
	for _, m := range msgs {
		if cur == nil || len(cur.Messages) >= p.opts.maxRequestMsgCnt || bytes+len(m.data) > p.opts.maxRequestBytes {
			cur = &rawtopic.WriteRequest{Codec: p.cfg.Codec}
			reqs = append(reqs, cur)
			bytes = 0
		}
		cur.Messages = append(cur.Messages, m.messageData(p.cfg.MessageGroupID))
		bytes += len(m.data)
	}
	return reqs
}

// tokenLoop forwards every token replacement announced on updates to the
// current session
func (p *Producer[T]) tokenLoop(ctx context.Context, n credentials.Notifier, updates <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			updates = n.Updates()
			token, err := p.conn.Credentials().Token(ctx)
			if err != nil {
				p.l.Error("get token", "error", err)
				continue
			}
			p.ws.Load().out.Enqueue(&rawtopic.UpdateTokenRequest{Token: token})
		}
	}
}
