package session

import (
	"errors"
	"fmt"
)

var (
	ErrQueueClosed = errors.New("queue closed")
	ErrStopped     = errors.New("session stopped")
)

// InitError is returned when the init handshake of a new producer or reader
// fails. There is no earlier working session to fall back to, so it reaches
// the caller instead of triggering a reconnect.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("topic: init %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
