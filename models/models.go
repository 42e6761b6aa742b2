package models

import "fmt"

// WriteStatus tells how the server accepted a produced message
type WriteStatus int

const (
	// WriteStatusWritten means the message was stored by this write
	WriteStatusWritten WriteStatus = iota + 1
	// WriteStatusAlreadyWritten means the server had the (producer id, seq no) pair already
	// and skipped the message
	WriteStatusAlreadyWritten
)

func (s WriteStatus) String() string {
	switch s {
	case WriteStatusWritten:
		return "written"
	case WriteStatusAlreadyWritten:
		return "already_written"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SendResult contains the result of a produce operation
type SendResult struct {
	Status WriteStatus
	SeqNo  int64
	Offset int64 // valid only for WriteStatusWritten
}

// OffsetsRange is a half-open range [Start, End) of partition offsets.
// End is the next offset to commit once everything in the range is processed.
type OffsetsRange struct {
	Start int64
	End   int64
}

func (r OffsetsRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// MetadataItem is a single key/value pair attached to a message
type MetadataItem struct {
	Key   string
	Value []byte
}
