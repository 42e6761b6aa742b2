package topicwriter

import "errors"

var (
	ErrProducerClosed = errors.New("producer closed")
	// ErrProtocolViolation fails a message whose ack never arrived in order
	ErrProtocolViolation = errors.New("write ack out of order")
	ErrUnexpectedMessage = errors.New("unexpected server message")
)
