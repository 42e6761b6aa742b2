package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

func TestProducerConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := ProducerConfig{Path: "/db/topic"}
		require.NoError(t, c.Validate())
		assert.NotEmpty(t, c.ProducerID)
		assert.Equal(t, c.ProducerID, c.MessageGroupID)
		assert.Equal(t, rawtopic.CodecRaw, c.Codec)
	})

	t.Run("partition id", func(t *testing.T) {
		p := int64(3)
		c := ProducerConfig{Path: "/db/topic", ProducerID: "p", PartitionID: &p}
		require.NoError(t, c.Validate())
		assert.Empty(t, c.MessageGroupID)
	})

	tests := []struct {
		name string
		cfg  ProducerConfig
		err  error
	}{
		{"empty path", ProducerConfig{}, ErrEmptyPath},
		{"both partitioning", ProducerConfig{Path: "t", MessageGroupID: "g", PartitionID: new(int64)}, ErrBothPartitioning},
		{"negative delay", ProducerConfig{Path: "t", ReconnectDelay: -time.Second}, ErrInvalidReconnectDelay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.err)
		})
	}
}

func TestReaderConfigValidate(t *testing.T) {
	c := ReaderConfig{Consumer: "c", Topics: []TopicConfig{{Path: "t"}}}
	require.NoError(t, c.Validate())
	assert.EqualValues(t, DefaultMaxMemoryUsageBytes, c.MaxMemoryUsageBytes)
	assert.Equal(t, DefaultReadRequestThreshold, c.ReadRequestThreshold)

	c = DefaultReaderConfig("c", "t")
	c.MaxMemoryUsageBytes = 1000
	assert.EqualValues(t, 200, c.ReadRequestBytes())

	tests := []struct {
		name string
		cfg  ReaderConfig
		err  error
	}{
		{"no consumer", ReaderConfig{Topics: []TopicConfig{{Path: "t"}}}, ErrEmptyConsumer},
		{"no topics", ReaderConfig{Consumer: "c"}, ErrNoTopics},
		{"empty topic", ReaderConfig{Consumer: "c", Topics: []TopicConfig{{}}}, ErrEmptyPath},
		{"bad threshold", ReaderConfig{Consumer: "c", Topics: []TopicConfig{{Path: "t"}}, ReadRequestThreshold: 1.5}, ErrInvalidReadRequestPortion},
		{"negative memory", ReaderConfig{Consumer: "c", Topics: []TopicConfig{{Path: "t"}}, MaxMemoryUsageBytes: -1}, ErrInvalidMaxMemoryUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  endpoint: localhost:2135
  database: /local
  insecure: true
producer:
  path: /local/events
  producer_id: svc-1
  codec: 4
  reconnect_delay: 1s
reader:
  consumer: analytics
  max_memory_usage_bytes: 1048576
  topics:
    - path: /local/events
      partition_ids: [0, 1]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:2135", cfg.Client.Endpoint)
	assert.True(t, cfg.Client.Insecure)

	require.NotNil(t, cfg.Producer)
	assert.Equal(t, "svc-1", cfg.Producer.MessageGroupID)
	assert.Equal(t, rawtopic.CodecZstd, cfg.Producer.Codec)
	assert.Equal(t, time.Second, cfg.Producer.ReconnectDelay)

	require.NotNil(t, cfg.Reader)
	assert.Equal(t, []int64{0, 1}, cfg.Reader.Topics[0].PartitionIDs)
	assert.Equal(t, DefaultReadRequestThreshold, cfg.Reader.ReadRequestThreshold)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("producer:\n  codec: 4\n"))
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Parse([]byte("::"))
	assert.Error(t, err)
}
