package topicreader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ydb-platform/ydb-topic-go/config"
	"github.com/ydb-platform/ydb-topic-go/credentials"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
	"github.com/ydb-platform/ydb-topic-go/metrics"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
	"github.com/ydb-platform/ydb-topic-go/session"
)

// reader keeps one live read session and replaces it when it breaks.
// Decoded batches of every session go to the same queue.
type reader struct {
	conn v1.Conn
	cfg  config.ReaderConfig

	sv      *session.Supervisor
	batches *session.Queue[*batchDecoder]
	rs      atomic.Pointer[readerSession]

	l *slog.Logger
}

func (r *reader) handshake(ctx context.Context) (*readerSession, error) {
	stream, err := r.conn.StreamRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("open read stream: %w", err)
	}

	req := &rawtopic.ReaderInitRequest{
		Consumer:   r.cfg.Consumer,
		ReaderName: r.cfg.ReaderName,
	}
	for _, t := range r.cfg.Topics {
		req.Topics = append(req.Topics, rawtopic.TopicReadSettings{
			Path:         t.Path,
			PartitionIDs: t.PartitionIDs,
			ReadFrom:     t.ReadFrom,
		})
	}

	fail := func(err error) (*readerSession, error) {
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
	resp, ok := msg.(*rawtopic.ReaderInitResponse)
	if !ok {
		return fail(fmt.Errorf("%w: %T instead of init response", ErrUnexpectedMessage, msg))
	}

	return newReaderSession(r, resp.SessionID, stream), nil
}

// startSession runs the loops of rs and grants the server the whole read budget
func (r *reader) startSession(rs *readerSession) bool {
	ok := r.sv.Go("reader write loop", func(ctx context.Context) {
		if err := rs.out.WriteLoop(ctx, rs.Stream.Send); err != nil {
			r.reconnect(rs, err)
		}
	})
	ok = ok && r.sv.Go("reader dispatch loop", rs.dispatchLoop)
	ok = ok && r.sv.Go("reader recv loop", rs.recvLoop)
	if !ok {
		return false
	}

	rs.requestBytes(r.cfg.MaxMemoryUsageBytes)
	return true
}

// reconnect replaces rs in a supervised task, so the loop that noticed the
// failure can exit and stop its partition sessions first.
func (r *reader) reconnect(rs *readerSession, reason error) {
	r.sv.Go("reader reconnect", func(ctx context.Context) {
		rs.Reconnect(reason, func() error {
			rs.terminate()
			rs.out.Close()
			select {
			case <-rs.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			metrics.Reconnects.WithLabelValues(metrics.ComponentReader).Inc()
			return r.reinit(ctx)
		})
	})
}

func (r *reader) reinit(ctx context.Context) error {
	for {
		next, err := r.handshake(ctx)
		if err == nil {
			r.rs.Store(next)
			if !r.startSession(next) {
				r.shutdown(next)
				return errors.Join(session.ErrStopped, ctx.Err())
			}
			r.l.Info("session restored", "session_id", next.ID)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.l.Warn("reconnect attempt failed", "error", err)
		select {
		case <-time.After(r.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// shutdown retires rs without a successor
func (r *reader) shutdown(rs *readerSession) {
	rs.Deactivate()
	rs.terminate()
	rs.out.Close()
	_ = rs.Close()
}

func (r *reader) tokenLoop(ctx context.Context, n credentials.Notifier, updates <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			updates = n.Updates()
			token, err := r.conn.Credentials().Token(ctx)
			if err != nil {
				r.l.Error("get token", "error", err)
				continue
			}
			r.rs.Load().out.Enqueue(&rawtopic.UpdateTokenRequest{Token: token})
		}
	}
}
