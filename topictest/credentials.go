package topictest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ydb-platform/ydb-topic-go/credentials"
)

// RotatingCredentials is a refreshing provider handing out opaque tokens
// token-1, token-2 and so on. Its clock only moves on Rotate.
type RotatingCredentials struct {
	*credentials.Refreshing

	now   atomic.Int64
	calls atomic.Int64
}

// NewRotatingCredentials returns a provider already holding token-1
func NewRotatingCredentials() *RotatingCredentials {
	c := &RotatingCredentials{}
	c.now.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	c.Refreshing = credentials.NewRefreshing(
		func(context.Context) (string, error) {
			return fmt.Sprintf("token-%d", c.calls.Add(1)), nil
		},
		credentials.WithClock(func() time.Time { return time.Unix(0, c.now.Load()).UTC() }),
	)
	_, _ = c.Token(context.Background())
	return c
}

// Rotate expires the current token and fetches the next one, which notifies
// every listener
func (c *RotatingCredentials) Rotate(ctx context.Context) (string, error) {
	c.now.Add(int64(credentials.DefaultTokenTTL))
	return c.Token(ctx)
}
