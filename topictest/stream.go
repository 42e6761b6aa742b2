// Package topictest provides an in-memory topic service transport for tests.
package topictest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ydb-platform/ydb-topic-go/credentials"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

var (
	ErrStreamClosed = errors.New("fake stream closed")

	DefaultWait = 2 * time.Second
)

type recvResult[Resp any] struct {
	msg Resp
	err error
}

// Stream is a fake duplex stream. Tests play the server: they read what the
// client sent with NextSent and answer with Push or Fail.
type Stream[Req, Resp any] struct {
	sent chan Req
	recv chan recvResult[Resp]

	// AutoReply answers a sent request right away when it returns true
	AutoReply func(req Req) (Resp, bool)

	mu      sync.Mutex
	sendErr error

	closeOnce sync.Once
	closed    chan struct{}
	sendDone  chan struct{}
	sendOnce  sync.Once
}

var _ v1.WriteStream = (*Stream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage])(nil)

func NewStream[Req, Resp any]() *Stream[Req, Resp] {
	return &Stream[Req, Resp]{
		sent:     make(chan Req, 4096),
		recv:     make(chan recvResult[Resp], 4096),
		closed:   make(chan struct{}),
		sendDone: make(chan struct{}),
	}
}

func (s *Stream[Req, Resp]) Send(req Req) error {
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}

	s.mu.Lock()
	err := s.sendErr
	auto := s.AutoReply
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.sent <- req
	if auto != nil {
		if resp, ok := auto(req); ok {
			s.Push(resp)
		}
	}
	return nil
}

func (s *Stream[Req, Resp]) Recv() (Resp, error) {
	select {
	case r := <-s.recv:
		return r.msg, r.err
	case <-s.closed:
		var zero Resp
		return zero, ErrStreamClosed
	}
}

func (s *Stream[Req, Resp]) CloseSend() error {
	s.sendOnce.Do(func() { close(s.sendDone) })
	return nil
}

func (s *Stream[Req, Resp]) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Push delivers a server message to the client
func (s *Stream[Req, Resp]) Push(msg Resp) {
	s.recv <- recvResult[Resp]{msg: msg}
}

// Fail makes the next Recv return err, as a broken transport would
func (s *Stream[Req, Resp]) Fail(err error) {
	s.recv <- recvResult[Resp]{err: err}
}

// FailSend makes every following Send return err
func (s *Stream[Req, Resp]) FailSend(err error) {
	s.mu.Lock()
	s.sendErr = err
	s.mu.Unlock()
}

func (s *Stream[Req, Resp]) SetAutoReply(fn func(req Req) (Resp, bool)) {
	s.mu.Lock()
	s.AutoReply = fn
	s.mu.Unlock()
}

func (s *Stream[Req, Resp]) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// NextSent waits for the next request the client wrote
func (s *Stream[Req, Resp]) NextSent(t testing.TB) Req {
	t.Helper()
	select {
	case req := <-s.sent:
		return req
	case <-time.After(DefaultWait):
		t.Fatal("timeout waiting for client message")
		var zero Req
		return zero
	}
}

// TryNextSent returns a request if one was written within wait
func (s *Stream[Req, Resp]) TryNextSent(wait time.Duration) (Req, bool) {
	select {
	case req := <-s.sent:
		return req, true
	case <-time.After(wait):
		var zero Req
		return zero, false
	}
}

type (
	WriteStream = Stream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]
	ReadStream  = Stream[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage]
)

// Conn hands out fake streams and keeps them for the test to drive
type Conn struct {
	mu sync.Mutex

	// WriteAutoReply and ReadAutoReply are installed on every new stream
	WriteAutoReply func(req rawtopic.WriterClientMessage) (rawtopic.WriterServerMessage, bool)
	ReadAutoReply  func(req rawtopic.ReaderClientMessage) (rawtopic.ReaderServerMessage, bool)

	// Creds is returned by Credentials
	Creds credentials.Provider

	dialErr error

	writeStreams chan *WriteStream
	readStreams  chan *ReadStream
}

var _ v1.Conn = (*Conn)(nil)

func NewConn() *Conn {
	return &Conn{
		writeStreams: make(chan *WriteStream, 64),
		readStreams:  make(chan *ReadStream, 64),
	}
}

// FailDial makes stream opening fail with err; nil restores it
func (c *Conn) FailDial(err error) {
	c.mu.Lock()
	c.dialErr = err
	c.mu.Unlock()
}

func (c *Conn) StreamWrite(ctx context.Context) (v1.WriteStream, error) {
	c.mu.Lock()
	err, auto := c.dialErr, c.WriteAutoReply
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s := NewStream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]()
	s.AutoReply = auto
	c.writeStreams <- s
	return s, nil
}

func (c *Conn) StreamRead(ctx context.Context) (v1.ReadStream, error) {
	c.mu.Lock()
	err, auto := c.dialErr, c.ReadAutoReply
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s := NewStream[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage]()
	s.AutoReply = auto
	c.readStreams <- s
	return s, nil
}

func (c *Conn) Credentials() credentials.Provider {
	return c.Creds
}

func (c *Conn) Close() error {
	return nil
}

// NextWriteStream waits for the client to open a write stream
func (c *Conn) NextWriteStream(t testing.TB) *WriteStream {
	t.Helper()
	select {
	case s := <-c.writeStreams:
		return s
	case <-time.After(DefaultWait):
		t.Fatal("timeout waiting for write stream")
		return nil
	}
}

// NextReadStream waits for the client to open a read stream
func (c *Conn) NextReadStream(t testing.TB) *ReadStream {
	t.Helper()
	select {
	case s := <-c.readStreams:
		return s
	case <-time.After(DefaultWait):
		t.Fatal("timeout waiting for read stream")
		return nil
	}
}
