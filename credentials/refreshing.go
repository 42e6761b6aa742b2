package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc obtains a fresh token from an external auth service
type FetchFunc func(ctx context.Context) (string, error)

// Refreshing caches the token returned by a FetchFunc and fetches a new one
// once the cached token turns stale.
type Refreshing struct {
	fetch        FetchFunc
	refreshRatio float64
	now          func() time.Time

	mu    sync.Mutex
	state TokenState

	// updates is closed and replaced on every token replacement
	updatesMu sync.Mutex
	updates   chan struct{}

	l *slog.Logger
}

var (
	_ Provider = (*Refreshing)(nil)
	_ Notifier = (*Refreshing)(nil)
)

type RefreshingOption func(r *Refreshing)

func WithRefreshRatio(ratio float64) RefreshingOption {
	return func(r *Refreshing) {
		r.refreshRatio = ratio
	}
}

func WithClock(now func() time.Time) RefreshingOption {
	return func(r *Refreshing) {
		r.now = now
	}
}

func WithLogger(l *slog.Logger) RefreshingOption {
	return func(r *Refreshing) {
		r.l = l
	}
}

func NewRefreshing(fetch FetchFunc, opts ...RefreshingOption) *Refreshing {
	r := &Refreshing{
		fetch:        fetch,
		refreshRatio: 0.5,
		now:          time.Now,
		updates:      make(chan struct{}),
		l:            slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.l = r.l.With("component", "credentials")
	return r
}

func (r *Refreshing) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = r.state.Validate(r.now())
	switch r.state.Status {
	case TokenValid:
		return r.state.Token, nil
	case TokenStale:
		if err := r.refreshLocked(ctx); err != nil {
			// the old token is still accepted, try again on the next call
			r.l.Warn("refresh stale token", "error", err)
		}
		return r.state.Token, nil
	default:
		if err := r.refreshLocked(ctx); err != nil {
			return "", err
		}
		return r.state.Token, nil
	}
}

// State returns the current cached state
func (r *Refreshing) State() TokenState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = r.state.Validate(r.now())
	return r.state
}

// Updates returns a channel closed on the next token replacement. The first
// fetched token is not a replacement.
func (r *Refreshing) Updates() <-chan struct{} {
	r.updatesMu.Lock()
	defer r.updatesMu.Unlock()
	return r.updates
}

func (r *Refreshing) notify() {
	r.updatesMu.Lock()
	close(r.updates)
	r.updates = make(chan struct{})
	r.updatesMu.Unlock()
}

// Run refreshes the token ahead of time until ctx is done, so live sessions
// get the new token before the old one expires.
func (r *Refreshing) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Token(ctx); err != nil {
				r.l.Error("refresh token", "error", err)
			}
		}
	}
}

func (r *Refreshing) refreshLocked(ctx context.Context) error {
	token, err := r.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}

	prev := r.state
	r.state = NewTokenState(token, r.now(), r.refreshRatio)
	if !r.state.Usable() {
		return fmt.Errorf("fetch token: got %s token", r.state.Status)
	}

	if prev.Status != TokenEmpty && prev.Token != token {
		r.notify()
	}
	return nil
}
