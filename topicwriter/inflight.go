package topicwriter

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ydb-platform/ydb-topic-go/metrics"
	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

// inFlight holds messages written to a stream and not yet acked, in seq no
// order. It survives reconnects; a new session resends all of it.
type inFlight struct {
	mu     sync.Mutex
	msgs   []*outbound
	closed error

	l *slog.Logger
}

func newInFlight(l *slog.Logger) *inFlight {
	return &inFlight{l: l}
}

func (f *inFlight) push(msgs ...*outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed != nil {
		for _, m := range msgs {
			m.result.Fail(f.closed)
		}
		return
	}
	f.msgs = append(f.msgs, msgs...)
	metrics.InFlight.Add(float64(len(msgs)))
}

// snapshot returns the messages to resend on a new session
func (f *inFlight) snapshot() []*outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*outbound(nil), f.msgs...)
}

func (f *inFlight) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// ack matches a server ack against the head of the queue
func (f *inFlight) ack(ack rawtopic.WriteAck) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.msgs) > 0 {
		head := f.msgs[0]
		switch {
		case ack.SeqNo < head.seqNo:
			f.l.Warn("stale ack", "seq_no", ack.SeqNo, "expected", head.seqNo)
			return
		case ack.SeqNo == head.seqNo:
			f.dequeue()
			head.result.Resolve(sendResult(ack))
			metrics.Acks.WithLabelValues(ackLabel(ack.Status)).Inc()
			return
		default:
			// the server skipped head, it will never be acked on this session
			f.dequeue()
			f.l.Error("ack out of order", "seq_no", ack.SeqNo, "expected", head.seqNo)
			head.result.Fail(fmt.Errorf("%w: got seq no %d, expected %d", ErrProtocolViolation, ack.SeqNo, head.seqNo))
			metrics.Acks.WithLabelValues("protocol_violation").Inc()
		}
	}

	f.l.Warn("ack with nothing in flight", "seq_no", ack.SeqNo)
}

func (f *inFlight) dequeue() {
	f.msgs[0] = nil
	f.msgs = f.msgs[1:]
	metrics.InFlight.Dec()
}

// close fails every queued message with err, and every message pushed later
func (f *inFlight) close(err error) {
	f.mu.Lock()
	msgs := f.msgs
	f.msgs = nil
	f.closed = err
	f.mu.Unlock()

	metrics.InFlight.Sub(float64(len(msgs)))
	for _, m := range msgs {
		m.result.Fail(err)
	}
}

func sendResult(ack rawtopic.WriteAck) models.SendResult {
	if ack.Status == rawtopic.WriteAckSkipped {
		return models.SendResult{Status: models.WriteStatusAlreadyWritten, SeqNo: ack.SeqNo}
	}
	return models.SendResult{Status: models.WriteStatusWritten, SeqNo: ack.SeqNo, Offset: ack.Offset}
}

func ackLabel(s rawtopic.WriteAckStatus) string {
	switch s {
	case rawtopic.WriteAckWritten:
		return models.WriteStatusWritten.String()
	case rawtopic.WriteAckSkipped:
		return models.WriteStatusAlreadyWritten.String()
	default:
		return "unknown"
	}
}
