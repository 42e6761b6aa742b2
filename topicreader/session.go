package topicreader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ydb-platform/ydb-topic-go/future"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
	"github.com/ydb-platform/ydb-topic-go/metrics"
	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
	"github.com/ydb-platform/ydb-topic-go/session"
)

const inboxSize = 64

// readerSession is one read stream. The recv loop feeds server messages to the
// dispatch loop, which alone owns the partition sessions; callers reach it
// through the commits channel.
type readerSession struct {
	*session.Session[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage]

	r   *reader
	out *session.Outbound[rawtopic.ReaderClientMessage]

	inbox   chan rawtopic.ReaderServerMessage
	commits chan commitRequest

	// owned by the dispatch loop
	partitions map[int64]*partitionSession

	// pendingReadBytes is credit freed by consumed messages and not yet
	// granted back to the server
	pendingReadBytes atomic.Int64
	threshold        int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newReaderSession(r *reader, id string, stream v1.ReadStream) *readerSession {
	return &readerSession{
		Session:    session.New(id, stream, r.l),
		r:          r,
		out:        session.NewOutbound[rawtopic.ReaderClientMessage](r.l.With("session_id", id)),
		inbox:      make(chan rawtopic.ReaderServerMessage, inboxSize),
		commits:    make(chan commitRequest),
		partitions: make(map[int64]*partitionSession),
		threshold:  r.cfg.ReadRequestBytes(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// terminate makes the loops exit. The dispatch loop stops every partition
// session on its way out.
func (rs *readerSession) terminate() {
	rs.stopOnce.Do(func() { close(rs.stop) })
}

func (rs *readerSession) stopped() bool {
	select {
	case <-rs.stop:
		return true
	default:
		return false
	}
}

// releaseBytes returns consumed credit. Once enough has accumulated it is
// granted to the server with a single read request.
func (rs *readerSession) releaseBytes(n int64) {
	if n <= 0 {
		return
	}
	if rs.pendingReadBytes.Add(n) < rs.threshold {
		return
	}
	if bytes := rs.pendingReadBytes.Swap(0); bytes > 0 {
		rs.requestBytes(bytes)
	}
}

func (rs *readerSession) requestBytes(n int64) {
	if rs.out.Enqueue(&rawtopic.ReadRequest{BytesSize: n}) {
		metrics.ReadRequestBytes.Add(float64(n))
	}
}

// commit registers a commit of rng in the partition session. Sessions that
// are gone fail it with ErrPartitionClosed.
func (rs *readerSession) commit(partitionSessionID int64, rng models.OffsetsRange) *future.Future[struct{}] {
	req := commitRequest{
		partitionSessionID: partitionSessionID,
		rng:                rng,
		result:             future.New[struct{}](),
	}
	select {
	case rs.commits <- req:
	case <-rs.done:
		req.result.Fail(ErrPartitionClosed)
		metrics.Commits.WithLabelValues(metrics.CommitClosed).Inc()
	}
	return req.result
}

func (rs *readerSession) recvLoop(ctx context.Context) {
	for {
		msg, err := rs.Stream.Recv()
		if err != nil {
			if ctx.Err() != nil || !rs.Active() {
				return
			}
			rs.r.reconnect(rs, fmt.Errorf("receive: %w", err))
			return
		}

		select {
		case rs.inbox <- msg:
		case <-rs.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (rs *readerSession) dispatchLoop(ctx context.Context) {
	defer rs.finish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rs.stop:
			return
		case req := <-rs.commits:
			rs.onCommit(req)
		case msg := <-rs.inbox:
			if err := rs.dispatch(msg); err != nil {
				rs.r.reconnect(rs, err)
				return
			}
		}
	}
}

func (rs *readerSession) finish() {
	for id, ps := range rs.partitions {
		ps.stop()
		delete(rs.partitions, id)
		metrics.PartitionSessions.Dec()
	}
	close(rs.done)
}

func (rs *readerSession) dispatch(msg rawtopic.ReaderServerMessage) error {
	if err := msg.StatusError(); err != nil {
		return err
	}

	switch m := msg.(type) {
	case *rawtopic.ReadResponse:
		rs.onReadResponse(m)
	case *rawtopic.StartPartitionSessionRequest:
		rs.onStartPartitionSession(m)
	case *rawtopic.StopPartitionSessionRequest:
		rs.onStopPartitionSession(m)
	case *rawtopic.CommitOffsetResponse:
		rs.onCommitOffsetResponse(m)
	case *rawtopic.UpdateTokenResponse:
		rs.r.l.Debug("token updated", "session_id", rs.ID)
	default:
		rs.r.l.Warn("unexpected server message", "type", fmt.Sprintf("%T", msg))
	}
	return nil
}

func (rs *readerSession) onReadResponse(m *rawtopic.ReadResponse) {
	metrics.BytesReceived.Add(float64(m.BytesSize))

	weights := make([]int64, len(m.PartitionData))
	for i, pd := range m.PartitionData {
		for _, b := range pd.Batches {
			weights[i] += batchWeight(b)
		}
	}
	shares := splitBytes(m.BytesSize, weights)

	var decoders []*batchDecoder
	for i, pd := range m.PartitionData {
		ps, ok := rs.partitions[pd.PartitionSessionID]
		if !ok {
			rs.r.l.Error("data for unknown partition session", "partition_session_id", pd.PartitionSessionID)
			rs.releaseBytes(shares[i])
			continue
		}

		bw := make([]int64, len(pd.Batches))
		for j, b := range pd.Batches {
			bw[j] = batchWeight(b)
		}
		bshares := splitBytes(shares[i], bw)

		for j, b := range pd.Batches {
			if len(b.MessageData) == 0 {
				rs.releaseBytes(bshares[j])
				continue
			}
			decoders = append(decoders, newBatchDecoder(rs, ps, b, bshares[j]))
		}
	}

	if len(decoders) > 0 && !rs.r.batches.PushAll(decoders...) {
		for _, d := range decoders {
			d.discard()
		}
	}
}

func batchWeight(b rawtopic.Batch) int64 {
	var n int64
	for _, m := range b.MessageData {
		n += int64(len(m.Data))
	}
	return n
}

func (rs *readerSession) onStartPartitionSession(m *rawtopic.StartPartitionSessionRequest) {
	id := m.PartitionSession.PartitionSessionID
	if old, ok := rs.partitions[id]; ok {
		rs.r.l.Warn("partition session restarted", "partition_session_id", id)
		old.stop()
		metrics.PartitionSessions.Dec()
	}

	ps := newPartitionSession(id, m.PartitionSession.Path, m.PartitionSession.PartitionID, m.CommittedOffset, rs.r.l)
	rs.partitions[id] = ps
	metrics.PartitionSessions.Inc()
	ps.l.Debug("partition session started", "committed_offset", m.CommittedOffset)

	rs.out.Enqueue(&rawtopic.StartPartitionSessionResponse{PartitionSessionID: id})
}

func (rs *readerSession) onStopPartitionSession(m *rawtopic.StopPartitionSessionRequest) {
	ps, ok := rs.partitions[m.PartitionSessionID]
	if !ok {
		rs.r.l.Error("stop for unknown partition session", "partition_session_id", m.PartitionSessionID)
		return
	}

	if m.CommittedOffset > ps.committedOffset {
		ps.handleCommittedOffset(m.CommittedOffset)
	}
	ps.stop()
	delete(rs.partitions, m.PartitionSessionID)
	metrics.PartitionSessions.Dec()
	ps.l.Debug("partition session stopped", "graceful", m.Graceful)

	if m.Graceful {
		rs.out.Enqueue(&rawtopic.StopPartitionSessionResponse{PartitionSessionID: m.PartitionSessionID})
	}
}

func (rs *readerSession) onCommitOffsetResponse(m *rawtopic.CommitOffsetResponse) {
	for _, c := range m.PartitionsCommittedOffsets {
		ps, ok := rs.partitions[c.PartitionSessionID]
		if !ok {
			rs.r.l.Warn("commit response for unknown partition session", "partition_session_id", c.PartitionSessionID)
			continue
		}
		ps.handleCommittedOffset(c.CommittedOffset)
	}
}

func (rs *readerSession) onCommit(req commitRequest) {
	ps, ok := rs.partitions[req.partitionSessionID]
	if !ok {
		req.result.Fail(ErrPartitionClosed)
		metrics.Commits.WithLabelValues(metrics.CommitClosed).Inc()
		return
	}

	if ps.registerCommit(req) {
		rs.out.Enqueue(&rawtopic.CommitOffsetRequest{
			CommitOffsets: []rawtopic.PartitionCommitOffset{{
				PartitionSessionID: ps.id,
				Offsets:            []rawtopic.OffsetRange{{Start: req.rng.Start, End: req.rng.End}},
			}},
		})
	}
}
