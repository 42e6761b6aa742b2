package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydb-platform/ydb-topic-go/rawtopic"
	"github.com/ydb-platform/ydb-topic-go/session"
	"github.com/ydb-platform/ydb-topic-go/topictest"
)

func TestSessionReconnect(t *testing.T) {
	t.Run("single winner", func(t *testing.T) {
		stream := topictest.NewStream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]()
		s := session.New[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]("s-1", stream, slog.Default())

		const callers = 50
		var (
			wg      sync.WaitGroup
			inits   atomic.Int32
			winners atomic.Int32
			start   = make(chan struct{})
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if s.Reconnect(errors.New("transport"), func() error {
					inits.Add(1)
					return nil
				}) {
					winners.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), inits.Load())
		assert.Equal(t, int32(1), winners.Load())
		assert.False(t, s.Active())
		assert.True(t, stream.IsClosed())
	})

	t.Run("used once", func(t *testing.T) {
		stream := topictest.NewStream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]()
		s := session.New[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage]("s-2", stream, slog.Default())

		calls := 0
		init := func() error {
			calls++
			return errors.New("handshake failed")
		}
		assert.True(t, s.Reconnect(errors.New("first"), init))
		assert.False(t, s.Reconnect(errors.New("second"), init))
		assert.Equal(t, 1, calls)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		stream := topictest.NewStream[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage]()
		s := session.New[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage]("s-3", stream, slog.Default())

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		assert.True(t, stream.IsClosed())
		assert.True(t, s.Active())
	})
}

func TestQueue(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		q := session.NewQueue[int]()
		for i := 0; i < 5; i++ {
			assert.True(t, q.Push(i))
		}
		assert.Equal(t, 5, q.Len())

		for i := 0; i < 5; i++ {
			v, err := q.Pop(context.Background())
			require.NoError(t, err)
			assert.Equal(t, i, v)
		}
	})

	t.Run("pop waits for push", func(t *testing.T) {
		q := session.NewQueue[string]()
		got := make(chan string, 1)
		go func() {
			v, err := q.Pop(context.Background())
			if err == nil {
				got <- v
			}
		}()

		time.Sleep(10 * time.Millisecond)
		q.Push("hello")

		select {
		case v := <-got:
			assert.Equal(t, "hello", v)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for pop")
		}
	})

	t.Run("many consumers", func(t *testing.T) {
		q := session.NewQueue[int]()
		const n = 200

		var (
			wg  sync.WaitGroup
			sum atomic.Int64
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					v, err := q.Pop(context.Background())
					if err != nil {
						return
					}
					sum.Add(int64(v))
				}
			}()
		}

		for i := 1; i <= n; i++ {
			q.Push(i)
		}
		require.Eventually(t, func() bool { return sum.Load() == n*(n+1)/2 }, time.Second, time.Millisecond)
		q.Close()
		wg.Wait()
	})

	t.Run("close", func(t *testing.T) {
		q := session.NewQueue[int]()
		q.Push(1)
		q.Close()

		assert.False(t, q.Push(2))

		v, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		_, err = q.Pop(context.Background())
		assert.ErrorIs(t, err, session.ErrQueueClosed)
	})

	t.Run("close and drain", func(t *testing.T) {
		q := session.NewQueue[int]()
		q.PushAll(1, 2, 3)
		assert.Equal(t, []int{1, 2, 3}, q.CloseAndDrain())
		assert.Equal(t, 0, q.Len())
	})

	t.Run("context", func(t *testing.T) {
		q := session.NewQueue[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := q.Pop(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestOutboundWriteLoop(t *testing.T) {
	t.Run("in order", func(t *testing.T) {
		out := session.NewOutbound[int](slog.Default())
		var got []int
		done := make(chan error, 1)
		go func() {
			done <- out.WriteLoop(context.Background(), func(v int) error {
				got = append(got, v)
				if v == 3 {
					out.Close()
				}
				return nil
			})
		}()

		for i := 1; i <= 3; i++ {
			out.Enqueue(i)
		}

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("write loop did not stop")
		}
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("send error", func(t *testing.T) {
		out := session.NewOutbound[int](slog.Default())
		boom := errors.New("broken pipe")
		out.Enqueue(1)

		err := out.WriteLoop(context.Background(), func(int) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, out.Enqueue(2))
	})
}

func TestSupervisor(t *testing.T) {
	sup := session.NewSupervisor(context.Background(), slog.Default())

	var finished atomic.Int32
	for i := 0; i < 3; i++ {
		ok := sup.Go("loop", func(ctx context.Context) {
			<-ctx.Done()
			finished.Add(1)
		})
		require.True(t, ok)
	}

	sup.Stop()
	assert.Equal(t, int32(3), finished.Load())
	assert.False(t, sup.Go("late", func(context.Context) {}))

	select {
	case <-sup.Done():
	default:
		t.Fatal("supervisor should be done")
	}
}

func TestSupervisorParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := session.NewSupervisor(ctx, slog.Default())

	stopped := make(chan struct{})
	sup.Go("loop", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled with its parent")
	}
	sup.Wait()
}
