// Package credentials supplies auth tokens to topic streams. Providers only
// hand out tokens; refreshing them is the provider's business, and sessions
// learn about a new token through Notifier.
package credentials

import (
	"context"
	"errors"
)

var ErrNoToken = errors.New("no token")

type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Notifier is implemented by providers that can tell live sessions their token
// was replaced, so each can send an update token request on its open stream.
// Updates returns a channel closed on the next replacement; every listener
// sees the close. Call Updates again after it fires to wait for the one after.
type Notifier interface {
	Updates() <-chan struct{}
}

// Static always returns the same token
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Anonymous sends no token at all
type Anonymous struct{}

func (Anonymous) Token(context.Context) (string, error) {
	return "", nil
}
