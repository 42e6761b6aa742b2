package topicreader

import (
	"errors"
	"fmt"
)

var (
	ErrReaderClosed = errors.New("reader closed")
	// ErrPartitionClosed fails commits that outlive their partition session
	ErrPartitionClosed   = errors.New("partition session closed")
	ErrUnexpectedMessage = errors.New("unexpected server message")
)

// DeserializeError fails the read call that met an undecodable message.
// The message is consumed; the next read continues after it.
type DeserializeError struct {
	Topic       string
	PartitionID int64
	Offset      int64
	Err         error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("topic: deserialize message %s/%d@%d: %v", e.Topic, e.PartitionID, e.Offset, e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}
