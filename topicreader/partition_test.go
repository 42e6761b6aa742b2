package topicreader

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ydb-platform/ydb-topic-go/future"
	"github.com/ydb-platform/ydb-topic-go/models"
)

func newCommit(start, end int64) commitRequest {
	return commitRequest{
		partitionSessionID: 1,
		rng:                models.OffsetsRange{Start: start, End: end},
		result:             future.New[struct{}](),
	}
}

func done(c commitRequest) (bool, error) {
	_, ok, err := c.result.Result()
	return ok, err
}

func TestPartitionSession(t *testing.T) {
	t.Run("commits resolve in order up to committed offset", func(t *testing.T) {
		ps := newPartitionSession(1, "topic", 0, 100, slog.Default())
		c1, c2, c3 := newCommit(100, 101), newCommit(101, 102), newCommit(102, 105)

		assert.True(t, ps.registerCommit(c1))
		assert.True(t, ps.registerCommit(c2))
		assert.True(t, ps.registerCommit(c3))

		ps.handleCommittedOffset(102)
		ok, err := done(c1)
		assert.True(t, ok)
		assert.NoError(t, err)
		ok, _ = done(c2)
		assert.True(t, ok)
		ok, _ = done(c3)
		assert.False(t, ok)

		ps.handleCommittedOffset(105)
		ok, _ = done(c3)
		assert.True(t, ok)
		assert.Empty(t, ps.commits)
	})

	t.Run("committed offset never decreases", func(t *testing.T) {
		ps := newPartitionSession(1, "topic", 0, 100, slog.Default())
		seen := []int64{}
		for _, off := range []int64{103, 101, 103, 110, 104} {
			ps.handleCommittedOffset(off)
			seen = append(seen, ps.committedOffset)
		}
		assert.Equal(t, []int64{103, 103, 103, 110, 110}, seen)
	})

	t.Run("already committed resolves at once", func(t *testing.T) {
		ps := newPartitionSession(1, "topic", 0, 100, slog.Default())
		c := newCommit(90, 95)
		assert.False(t, ps.registerCommit(c))
		ok, err := done(c)
		assert.True(t, ok)
		assert.NoError(t, err)

		c = newCommit(99, 100)
		assert.False(t, ps.registerCommit(c))
		ok, _ = done(c)
		assert.True(t, ok)
	})

	t.Run("stop fails pending and later commits", func(t *testing.T) {
		ps := newPartitionSession(1, "topic", 0, 100, slog.Default())
		pending := newCommit(100, 101)
		ps.registerCommit(pending)

		ps.stop()
		ok, err := done(pending)
		assert.True(t, ok)
		assert.ErrorIs(t, err, ErrPartitionClosed)

		late := newCommit(101, 102)
		assert.False(t, ps.registerCommit(late))
		_, err = done(late)
		assert.ErrorIs(t, err, ErrPartitionClosed)
		assert.True(t, ps.isStopped())
	})
}
