package topicreader

import (
	"sync"
	"time"

	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

type rawMessage struct {
	data rawtopic.ReadMessageData
	rng  models.OffsetsRange
	// bytes is the share of the read budget charged for this message
	bytes int64
}

// batchDecoder hands out the messages of one server batch. Each pulled
// message returns its byte credit to the reader session that received it.
type batchDecoder struct {
	rs *readerSession
	ps *partitionSession

	producerID       string
	writeSessionMeta map[string]string
	writtenAt        time.Time
	codec            rawtopic.Codec

	mu   sync.Mutex
	msgs []rawMessage
	next int
}

// newBatchDecoder assigns offset ranges to the messages of b. Each range
// starts where the previous message of the partition ended, so gaps left by
// the server are covered by the following message.
func newBatchDecoder(rs *readerSession, ps *partitionSession, b rawtopic.Batch, bytes int64) *batchDecoder {
	weights := make([]int64, len(b.MessageData))
	for i, m := range b.MessageData {
		weights[i] = int64(len(m.Data))
	}
	shares := splitBytes(bytes, weights)

	msgs := make([]rawMessage, len(b.MessageData))
	for i, m := range b.MessageData {
		msgs[i] = rawMessage{
			data:  m,
			rng:   models.OffsetsRange{Start: ps.prevEnd, End: m.Offset + 1},
			bytes: shares[i],
		}
		ps.prevEnd = m.Offset + 1
	}

	return &batchDecoder{
		rs:               rs,
		ps:               ps,
		producerID:       b.ProducerID,
		writeSessionMeta: b.WriteSessionMeta,
		writtenAt:        b.WrittenAt,
		codec:            b.Codec,
		msgs:             msgs,
	}
}

// active is false once the batch is exhausted or its partition or reader
// session has stopped
func (d *batchDecoder) active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next < len(d.msgs) && !d.ps.isStopped() && !d.rs.stopped()
}

func (d *batchDecoder) pull() (rawMessage, bool) {
	d.mu.Lock()
	if d.next >= len(d.msgs) {
		d.mu.Unlock()
		return rawMessage{}, false
	}
	m := d.msgs[d.next]
	d.next++
	d.mu.Unlock()

	d.rs.releaseBytes(m.bytes)
	return m, true
}

// pullRest takes every remaining message at once
func (d *batchDecoder) pullRest() []rawMessage {
	d.mu.Lock()
	rest := d.msgs[d.next:]
	d.next = len(d.msgs)
	d.mu.Unlock()

	var bytes int64
	for _, m := range rest {
		bytes += m.bytes
	}
	d.rs.releaseBytes(bytes)
	return rest
}

// discard drops the remaining messages and returns their credit
func (d *batchDecoder) discard() {
	d.pullRest()
}

func (d *batchDecoder) remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs) - d.next
}
