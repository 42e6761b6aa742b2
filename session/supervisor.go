package session

import (
	"context"
	"log/slog"
	"sync"
)

// Supervisor runs the background loops of a producer or reader. All tasks
// share one context derived from the owner's lifetime; Stop cancels it and
// waits for every task, so no loop outlives its owner.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	l *slog.Logger
}

func NewSupervisor(parent context.Context, l *slog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		l:      l,
	}
}

// Go starts fn as a supervised task. It reports false if the supervisor is
// already stopping.
func (s *Supervisor) Go(name string, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.l.Debug("task started", "task", name)
		fn(s.ctx)
		s.l.Debug("task finished", "task", name)
	}()
	return true
}

func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Done is closed once the supervisor starts stopping
func (s *Supervisor) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Cancel signals every task to stop without waiting. Safe from inside a task.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every started task returned
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Stop cancels and waits. Must not be called from a supervised task.
func (s *Supervisor) Stop() {
	s.Cancel()
	s.Wait()
}
