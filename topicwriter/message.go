package topicwriter

import (
	"time"

	"github.com/ydb-platform/ydb-topic-go/future"
	"github.com/ydb-platform/ydb-topic-go/models"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

// Message is a value to produce with optional per-message attributes.
// A zero CreatedAt is replaced with the send time.
type Message[T any] struct {
	Data      T
	CreatedAt time.Time
	Metadata  []models.MetadataItem
}

// outbound is a message accepted by Send. seqNo is zero until a drain
// admits it to the stream.
type outbound struct {
	data             []byte
	uncompressedSize int64
	createdAt        time.Time
	metadata         []models.MetadataItem
	seqNo            int64

	result *future.Future[models.SendResult]
}

func (m *outbound) messageData(messageGroupID string) rawtopic.MessageData {
	return rawtopic.MessageData{
		SeqNo:            m.seqNo,
		CreatedAt:        m.createdAt,
		UncompressedSize: m.uncompressedSize,
		Data:             m.data,
		MessageGroupID:   messageGroupID,
		MetadataItems:    m.metadata,
	}
}
