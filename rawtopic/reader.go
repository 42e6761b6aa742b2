package rawtopic

import "time"

// ReaderClientMessage is a message sent by a consumer on a read stream
type ReaderClientMessage interface {
	isReaderClientMessage()
}

// ReaderServerMessage is a message received by a consumer on a read stream
type ReaderServerMessage interface {
	isReaderServerMessage()
	StatusError() error
}

type TopicReadSettings struct {
	Path         string
	PartitionIDs []int64
	ReadFrom     time.Time
}

type ReaderInitRequest struct {
	Topics     []TopicReadSettings
	Consumer   string
	ReaderName string
}

func (*ReaderInitRequest) isReaderClientMessage() {}

// ReadRequest grants the server BytesSize more bytes of read responses
type ReadRequest struct {
	BytesSize int64
}

func (*ReadRequest) isReaderClientMessage() {}

type StartPartitionSessionResponse struct {
	PartitionSessionID int64
}

func (*StartPartitionSessionResponse) isReaderClientMessage() {}

type StopPartitionSessionResponse struct {
	PartitionSessionID int64
}

func (*StopPartitionSessionResponse) isReaderClientMessage() {}

type CommitOffsetRequest struct {
	CommitOffsets []PartitionCommitOffset
}

func (*CommitOffsetRequest) isReaderClientMessage() {}

type PartitionCommitOffset struct {
	PartitionSessionID int64
	Offsets            []OffsetRange
}

type ReaderInitResponse struct {
	ServerMessageMetadata

	SessionID string
}

func (*ReaderInitResponse) isReaderServerMessage() {}

// ReadResponse delivers data for one or more partition sessions.
// BytesSize is what the server charged against the client's read budget.
type ReadResponse struct {
	ServerMessageMetadata

	BytesSize     int64
	PartitionData []PartitionData
}

func (*ReadResponse) isReaderServerMessage() {}

type PartitionData struct {
	PartitionSessionID int64
	Batches            []Batch
}

type Batch struct {
	ProducerID       string
	WriteSessionMeta map[string]string
	Codec            Codec
	WrittenAt        time.Time
	MessageData      []ReadMessageData
}

type ReadMessageData struct {
	Offset           int64
	SeqNo            int64
	CreatedAt        time.Time
	Data             []byte
	UncompressedSize int64
	MessageGroupID   string
	MetadataItems    []MetadataItem
}

type PartitionSession struct {
	PartitionSessionID int64
	Path               string
	PartitionID        int64
}

type StartPartitionSessionRequest struct {
	ServerMessageMetadata

	PartitionSession PartitionSession
	CommittedOffset  int64
	PartitionOffsets OffsetRange
}

func (*StartPartitionSessionRequest) isReaderServerMessage() {}

type StopPartitionSessionRequest struct {
	ServerMessageMetadata

	PartitionSessionID int64
	Graceful           bool
	CommittedOffset    int64
}

func (*StopPartitionSessionRequest) isReaderServerMessage() {}

type CommitOffsetResponse struct {
	ServerMessageMetadata

	PartitionsCommittedOffsets []PartitionCommittedOffset
}

func (*CommitOffsetResponse) isReaderServerMessage() {}

type PartitionCommittedOffset struct {
	PartitionSessionID int64
	CommittedOffset    int64
}
