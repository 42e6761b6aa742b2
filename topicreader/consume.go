package topicreader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

type PoolConfig struct {
	Size     int
	PreAlloc bool
}

type ConsumeConfig struct {
	Pool       PoolConfig
	AutoCommit bool
}

type ConsumeOption func(c *ConsumeConfig)

func WithPoolConfig(pool PoolConfig) ConsumeOption {
	return func(c *ConsumeConfig) {
		c.Pool = pool
	}
}

// WithAutoCommit commits every batch the handler returned nil for
func WithAutoCommit(flag bool) ConsumeOption {
	return func(c *ConsumeConfig) {
		c.AutoCommit = flag
	}
}

// BatchHandler processes one batch. Batches run concurrently on the pool,
// including consecutive batches of the same partition.
type BatchHandler[T any] func(ctx context.Context, batch *BatchMessages[T]) error

// Consume reads batches from r and hands them to handler until ctx is done
// or r is closed. It waits for running handlers before returning.
func Consume[T any](ctx context.Context, r *Reader[T], handler BatchHandler[T], opts ...ConsumeOption) error {
	conf := ConsumeConfig{
		Pool: PoolConfig{Size: 16},
	}
	for _, opt := range opts {
		opt(&conf)
	}

	pool, err := ants.NewPool(conf.Pool.Size, ants.WithPreAlloc(conf.Pool.PreAlloc))
	if err != nil {
		return fmt.Errorf("new pool: %w", err)
	}
	defer pool.Release()

	l := r.core.l.With("op", "consume")
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		batch, err := r.ReadBatch(ctx)
		if err != nil {
			var derr *DeserializeError
			if errors.As(err, &derr) {
				l.Error("skip undecodable batch", "error", err)
				continue
			}
			if errors.Is(err, ErrReaderClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		wg.Add(1)
		err = pool.Submit(func() {
			defer wg.Done()

			if err := handler(ctx, batch); err != nil {
				l.Error("handle batch", "error", err, "partition_id", batch.PartitionID, "offsets", batch.OffsetsRange.String())
				return
			}
			if conf.AutoCommit {
				if err := batch.Commit(ctx); err != nil && ctx.Err() == nil {
					l.Warn("commit batch", "error", err, "partition_id", batch.PartitionID)
				}
			}
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("submit batch: %w", err)
		}
	}
}
