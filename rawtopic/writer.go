package rawtopic

import "time"

// WriterClientMessage is a message sent by a producer on a write stream
type WriterClientMessage interface {
	isWriterClientMessage()
}

// WriterServerMessage is a message received by a producer on a write stream
type WriterServerMessage interface {
	isWriterServerMessage()
	StatusError() error
}

// WriterInitRequest opens a write session. Exactly one of MessageGroupID or
// PartitionID (with HasPartitionID) selects the partition.
type WriterInitRequest struct {
	Path             string
	ProducerID       string
	WriteSessionMeta map[string]string
	MessageGroupID   string
	PartitionID      int64
	HasPartitionID   bool
	GetLastSeqNo     bool
}

func (*WriterInitRequest) isWriterClientMessage() {}

// WriteRequest carries one batch of messages encoded with a single codec
type WriteRequest struct {
	Messages []MessageData
	Codec    Codec
}

func (*WriteRequest) isWriterClientMessage() {}

type MessageData struct {
	SeqNo            int64
	CreatedAt        time.Time
	UncompressedSize int64
	Data             []byte
	MessageGroupID   string
	MetadataItems    []MetadataItem
}

type WriterInitResponse struct {
	ServerMessageMetadata

	LastSeqNo       int64
	SessionID       string
	PartitionID     int64
	SupportedCodecs []Codec
}

func (*WriterInitResponse) isWriterServerMessage() {}

type WriteResponse struct {
	ServerMessageMetadata

	Acks        []WriteAck
	PartitionID int64
}

func (*WriteResponse) isWriterServerMessage() {}

// WriteAckStatus is the per-message outcome in a WriteResponse
type WriteAckStatus int

const (
	WriteAckUnknown WriteAckStatus = iota
	WriteAckWritten
	WriteAckSkipped
)

type WriteAck struct {
	SeqNo      int64
	Status     WriteAckStatus
	Offset     int64 // valid for WriteAckWritten
	SkipReason int32 // valid for WriteAckSkipped
}
