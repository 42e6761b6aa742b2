package topicreader

import (
	"context"
	"time"

	"github.com/ydb-platform/ydb-topic-go/codec"
	"github.com/ydb-platform/ydb-topic-go/future"
	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/serde"
)

// Message is a decoded message. Commit marks its offsets range as processed.
type Message[T any] struct {
	Data T

	Topic              string
	PartitionID        int64
	PartitionSessionID int64
	ProducerID         string
	WriteSessionMeta   map[string]string
	MessageGroupID     string
	Metadata           []models.MetadataItem

	SeqNo            int64
	Offset           int64
	OffsetsRange     models.OffsetsRange
	UncompressedSize int64

	CreatedAt time.Time
	WrittenAt time.Time

	rs *readerSession
}

// Commit waits until the server confirms the commit
func (m *Message[T]) Commit(ctx context.Context) error {
	_, err := m.CommitAsync().Wait(ctx)
	return err
}

func (m *Message[T]) CommitAsync() *future.Future[struct{}] {
	return m.rs.commit(m.PartitionSessionID, m.OffsetsRange)
}

// BatchMessages are consecutive messages of one partition. Committing the
// batch commits its whole offsets range at once.
type BatchMessages[T any] struct {
	Messages []*Message[T]

	Topic              string
	PartitionID        int64
	PartitionSessionID int64
	OffsetsRange       models.OffsetsRange

	rs *readerSession
}

func (b *BatchMessages[T]) Commit(ctx context.Context) error {
	_, err := b.CommitAsync().Wait(ctx)
	return err
}

func (b *BatchMessages[T]) CommitAsync() *future.Future[struct{}] {
	return b.rs.commit(b.PartitionSessionID, b.OffsetsRange)
}

func decodeMessage[T any](deser serde.Deserializer[T], d *batchDecoder, raw rawMessage) (*Message[T], error) {
	payload, err := codec.Decode(d.codec, raw.data.Data)
	var v T
	if err == nil {
		v, err = deser.Deserialize(payload)
	}
	if err != nil {
		return nil, &DeserializeError{
			Topic:       d.ps.topic,
			PartitionID: d.ps.partitionID,
			Offset:      raw.data.Offset,
			Err:         err,
		}
	}

	return &Message[T]{
		Data:               v,
		Topic:              d.ps.topic,
		PartitionID:        d.ps.partitionID,
		PartitionSessionID: d.ps.id,
		ProducerID:         d.producerID,
		WriteSessionMeta:   d.writeSessionMeta,
		MessageGroupID:     raw.data.MessageGroupID,
		Metadata:           raw.data.MetadataItems,
		SeqNo:              raw.data.SeqNo,
		Offset:             raw.data.Offset,
		OffsetsRange:       raw.rng,
		UncompressedSize:   raw.data.UncompressedSize,
		CreatedAt:          raw.data.CreatedAt,
		WrittenAt:          d.writtenAt,
		rs:                 d.rs,
	}, nil
}
