package v1

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ydb-platform/ydb-go-genproto/Ydb_Topic_V1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/ydb-platform/ydb-topic-go/credentials"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
)

const (
	HeaderDatabase   = "x-ydb-database"
	HeaderAuthTicket = "x-ydb-auth-ticket"
	HeaderBuildInfo  = "x-ydb-sdk-build-info"

	buildInfo = "ydb-topic-go/1.0"
)

var ErrConnClosed = errors.New("connection is closed")

var _ v1.Conn = (*conn)(nil)

// conn implements the Conn interface over a topic service gRPC client
type conn struct {
	addr     string
	database string
	creds    credentials.Provider

	grpcConn *grpc.ClientConn
	client   Ydb_Topic_V1.TopicServiceClient
	logger   *slog.Logger

	mu      sync.Mutex
	closed  bool
	streams map[*streamHandle]struct{}
}

type streamHandle struct {
	cancel context.CancelFunc
}

// NewConn creates a new gRPC connection. creds may be nil for anonymous access.
func NewConn(addr, database string, creds credentials.Provider, logger *slog.Logger, opts ...grpc.DialOption) (v1.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	grpcConn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}

	c := newConn(Ydb_Topic_V1.NewTopicServiceClient(grpcConn), database, creds, logger)
	c.addr = addr
	c.grpcConn = grpcConn

	c.logger.Info("connected to gRPC server", "address", addr, "database", database)
	return c, nil
}

func newConn(client Ydb_Topic_V1.TopicServiceClient, database string, creds credentials.Provider, logger *slog.Logger) *conn {
	return &conn{
		database: database,
		creds:    creds,
		client:   client,
		logger:   logger.With("component", "grpc-conn"),
		streams:  make(map[*streamHandle]struct{}),
	}
}

func (c *conn) Credentials() credentials.Provider {
	return c.creds
}

func (c *conn) StreamWrite(ctx context.Context) (v1.WriteStream, error) {
	ctx, h, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	s, err := c.client.StreamWrite(ctx)
	if err != nil {
		c.release(h)
		return nil, fmt.Errorf("failed to create write stream: %w", err)
	}
	return newWriteStream(s, func() { c.release(h) }), nil
}

func (c *conn) StreamRead(ctx context.Context) (v1.ReadStream, error) {
	ctx, h, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	s, err := c.client.StreamRead(ctx)
	if err != nil {
		c.release(h)
		return nil, fmt.Errorf("failed to create read stream: %w", err)
	}
	return newReadStream(s, func() { c.release(h) }), nil
}

// open derives the stream context carrying database and auth headers
func (c *conn) open(ctx context.Context) (context.Context, *streamHandle, error) {
	md, err := c.headers(ctx)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrConnClosed
	}

	ctx, cancel := context.WithCancel(metadata.NewOutgoingContext(ctx, md))
	h := &streamHandle{cancel: cancel}
	c.streams[h] = struct{}{}
	return ctx, h, nil
}

func (c *conn) headers(ctx context.Context) (metadata.MD, error) {
	md := metadata.Pairs(HeaderBuildInfo, buildInfo)
	if c.database != "" {
		md.Set(HeaderDatabase, c.database)
	}
	if c.creds != nil {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}
		if token != "" {
			md.Set(HeaderAuthTicket, token)
		}
	}
	return md, nil
}

func (c *conn) release(h *streamHandle) {
	h.cancel()
	c.mu.Lock()
	delete(c.streams, h)
	c.mu.Unlock()
}

// Close cancels every open stream and closes the connection
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = make(map[*streamHandle]struct{})
	c.mu.Unlock()

	for h := range streams {
		h.cancel()
	}

	if c.grpcConn != nil {
		if err := c.grpcConn.Close(); err != nil {
			c.logger.Error("failed to close gRPC connection", "error", err)
			return err
		}
	}

	c.logger.Info("connection closed")
	return nil
}
