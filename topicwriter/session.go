package topicwriter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ydb-platform/ydb-topic-go/metrics"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
	"github.com/ydb-platform/ydb-topic-go/session"
)

type writerSession struct {
	*session.Session[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]

	out         *session.Outbound[rawtopic.WriterClientMessage]
	lastSeqNo   int64
	partitionID int64
}

// handshake opens a write stream and runs the init exchange on it
func (p *Producer[T]) handshake(ctx context.Context) (*writerSession, error) {
	stream, err := p.conn.StreamWrite(ctx)
	if err != nil {
		return nil, fmt.Errorf("open write stream: %w", err)
	}

	req := &rawtopic.WriterInitRequest{
		Path:             p.cfg.Path,
		ProducerID:       p.cfg.ProducerID,
		WriteSessionMeta: p.cfg.WriteSessionMeta,
		MessageGroupID:   p.cfg.MessageGroupID,
		GetLastSeqNo:     true,
	}
	if p.cfg.PartitionID != nil {
		req.PartitionID = *p.cfg.PartitionID
		req.HasPartitionID = true
	}

	fail := func(err error) (*writerSession, error) {
		_ = stream.CloseSend()
		_ = stream.Close()
		return nil, err
	}

	if err := stream.Send(req); err != nil {
		return fail(fmt.Errorf("send init request: %w", err))
	}
	msg, err := stream.Recv()
	if err != nil {
		return fail(fmt.Errorf("receive init response: %w", err))
	}
	if err := msg.StatusError(); err != nil {
		return fail(err)
	}
	resp, ok := msg.(*rawtopic.WriterInitResponse)
	if !ok {
		return fail(fmt.Errorf("%w: %T instead of init response", ErrUnexpectedMessage, msg))
	}

	if len(resp.SupportedCodecs) > 0 && !slices.Contains(resp.SupportedCodecs, p.cfg.Codec) {
		p.l.Warn("codec is not in the server supported list", "codec", p.cfg.Codec, "supported", resp.SupportedCodecs)
	}

	return &writerSession{
		Session:     session.New(resp.SessionID, stream, p.l),
		out:         session.NewOutbound[rawtopic.WriterClientMessage](p.l.With("session_id", resp.SessionID)),
		lastSeqNo:   resp.LastSeqNo,
		partitionID: resp.PartitionID,
	}, nil
}

// startSession runs the write and ack loops of ws
func (p *Producer[T]) startSession(ws *writerSession) bool {
	started := p.sv.Go("writer write loop", func(ctx context.Context) {
		if err := ws.out.WriteLoop(ctx, ws.Stream.Send); err != nil {
			p.reconnect(ws, err)
		}
	})
	return started && p.sv.Go("writer ack loop", func(ctx context.Context) {
		p.ackLoop(ctx, ws)
	})
}

func (p *Producer[T]) ackLoop(ctx context.Context, ws *writerSession) {
	for {
		msg, err := ws.Stream.Recv()
		if err != nil {
			if ctx.Err() != nil || !ws.Active() {
				return
			}
			p.reconnect(ws, fmt.Errorf("receive: %w", err))
			return
		}

		if err := msg.StatusError(); err != nil {
			p.reconnect(ws, err)
			return
		}

		switch m := msg.(type) {
		case *rawtopic.WriteResponse:
			for _, ack := range m.Acks {
				p.inflight.ack(ack)
			}
		case *rawtopic.UpdateTokenResponse:
			p.l.Debug("token updated", "session_id", ws.ID)
		default:
			p.l.Warn("unexpected server message", "type", fmt.Sprintf("%T", msg))
		}
	}
}

// reconnect replaces ws. Only the first caller for a given session does the
// work; the rest return at once.
func (p *Producer[T]) reconnect(ws *writerSession, reason error) {
	ctx := p.sv.Context()
	if ctx.Err() != nil {
		return
	}

	ws.Reconnect(reason, func() error {
		ws.out.Close()
		metrics.Reconnects.WithLabelValues(metrics.ComponentWriter).Inc()
		return p.reinit(ctx)
	})
}

func (p *Producer[T]) reinit(ctx context.Context) error {
	for {
		next, err := p.handshake(ctx)
		if err == nil {
			return p.swap(ctx, next)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.l.Warn("reconnect attempt failed", "error", err)
		select {
		case <-time.After(p.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// swap installs next as the current session and resends everything in flight
// ahead of any new drain.
func (p *Producer[T]) swap(ctx context.Context, next *writerSession) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		_ = next.Close()
		return err
	}
	defer p.sem.Release(1)

	if next.lastSeqNo > p.seqNo {
		p.seqNo = next.lastSeqNo
	}
	p.ws.Store(next)

	if !p.startSession(next) {
		next.Deactivate()
		next.out.Close()
		_ = next.Close()
		return errors.Join(session.ErrStopped, ctx.Err())
	}

	resend := p.inflight.snapshot()
	p.write(next, resend)
	p.l.Info("session restored", "session_id", next.ID, "last_seq_no", next.lastSeqNo, "resent", len(resend))
	return nil
}
