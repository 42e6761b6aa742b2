package topicreader

import (
	"log/slog"
	"sync/atomic"

	"github.com/ydb-platform/ydb-topic-go/future"
	"github.com/ydb-platform/ydb-topic-go/metrics"
	"github.com/ydb-platform/ydb-topic-go/models"
)

type commitRequest struct {
	partitionSessionID int64
	rng                models.OffsetsRange
	result             *future.Future[struct{}]
}

// partitionSession tracks reading and commits of one partition assigned by
// the server. Everything except stopped is owned by the dispatch loop of its
// reader session.
type partitionSession struct {
	id          int64
	topic       string
	partitionID int64

	// prevEnd is the end offset of the last message handed to a decoder
	prevEnd         int64
	committedOffset int64
	commits         []commitRequest

	stopped atomic.Bool

	l *slog.Logger
}

func newPartitionSession(id int64, topic string, partitionID, committedOffset int64, l *slog.Logger) *partitionSession {
	return &partitionSession{
		id:              id,
		topic:           topic,
		partitionID:     partitionID,
		prevEnd:         committedOffset,
		committedOffset: committedOffset,
		l:               l.With("partition_session_id", id, "topic", topic, "partition_id", partitionID),
	}
}

func (ps *partitionSession) isStopped() bool {
	return ps.stopped.Load()
}

// registerCommit queues req until the server confirms its end offset. It
// reports whether a commit request has to be sent.
func (ps *partitionSession) registerCommit(req commitRequest) bool {
	if ps.isStopped() {
		req.result.Fail(ErrPartitionClosed)
		metrics.Commits.WithLabelValues(metrics.CommitClosed).Inc()
		return false
	}
	if req.rng.End <= ps.committedOffset {
		req.result.Resolve(struct{}{})
		metrics.Commits.WithLabelValues(metrics.CommitOK).Inc()
		return false
	}
	ps.commits = append(ps.commits, req)
	return true
}

// handleCommittedOffset resolves queued commits covered by offset. The
// server acks in non-decreasing order, so the queue is resolved from the head.
func (ps *partitionSession) handleCommittedOffset(offset int64) {
	if offset <= ps.committedOffset {
		ps.l.Warn("committed offset did not advance", "committed", ps.committedOffset, "received", offset)
	}
	ps.committedOffset = max(ps.committedOffset, offset)

	n := 0
	for n < len(ps.commits) && ps.commits[n].rng.End <= ps.committedOffset {
		ps.commits[n].result.Resolve(struct{}{})
		n++
	}
	if n > 0 {
		metrics.Commits.WithLabelValues(metrics.CommitOK).Add(float64(n))
		clear(ps.commits[:n])
		ps.commits = ps.commits[n:]
	}
}

// stop fails every queued commit. Commits registered later fail at once.
func (ps *partitionSession) stop() {
	if !ps.stopped.CompareAndSwap(false, true) {
		return
	}
	for _, c := range ps.commits {
		c.result.Fail(ErrPartitionClosed)
	}
	metrics.Commits.WithLabelValues(metrics.CommitClosed).Add(float64(len(ps.commits)))
	ps.commits = nil
}
