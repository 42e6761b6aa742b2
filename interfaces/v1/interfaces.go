package v1

import (
	"context"

	"github.com/ydb-platform/ydb-topic-go/credentials"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

// Stream is a duplex message stream to the topic service.
// Send must not be called concurrently; Recv returns io.EOF once the server
// has finished the stream. Any other error is a transport error.
type Stream[Req, Resp any] interface {
	Send(req Req) error
	Recv() (Resp, error)
	// CloseSend tells the server no more requests will follow
	CloseSend() error
	// Close releases the stream unconditionally
	Close() error
}

// WriteStream is the stream a producer session runs on
type WriteStream = Stream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]

// ReadStream is the stream a reader session runs on
type ReadStream = Stream[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage]

// Conn opens topic service streams
type Conn interface {
	StreamWrite(ctx context.Context) (WriteStream, error)
	StreamRead(ctx context.Context) (ReadStream, error)
	// Credentials returns the provider whose token authenticates new streams,
	// nil for anonymous connections
	Credentials() credentials.Provider
	Close() error
}
