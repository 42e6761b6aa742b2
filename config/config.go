package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ydb-platform/ydb-topic-go/codec"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

var (
	ErrEmptyPath                 = errors.New("topic path is empty")
	ErrEmptyConsumer             = errors.New("consumer is empty")
	ErrNoTopics                  = errors.New("no topics to read")
	ErrBothPartitioning          = errors.New("message group id and partition id are mutually exclusive")
	ErrInvalidMaxMemoryUsage     = errors.New("max memory usage must be positive")
	ErrInvalidReadRequestPortion = errors.New("read request threshold must be in (0, 1]")
	ErrInvalidReconnectDelay     = errors.New("reconnect delay must not be negative")
)

const (
	DefaultReconnectDelay       = 500 * time.Millisecond
	DefaultMaxMemoryUsageBytes  = 50 * 1024 * 1024
	DefaultReadRequestThreshold = 0.2
)

type ProducerConfig struct {
	Path       string `yaml:"path"`
	ProducerID string `yaml:"producer_id"`
	// MessageGroupID pins messages to a partition by hashing, defaults to ProducerID
	MessageGroupID   string            `yaml:"message_group_id"`
	PartitionID      *int64            `yaml:"partition_id"`
	Codec            rawtopic.Codec    `yaml:"codec"`
	WriteSessionMeta map[string]string `yaml:"write_session_meta"`
	ReconnectDelay   time.Duration     `yaml:"reconnect_delay"`
}

func DefaultProducerConfig(path string) ProducerConfig {
	return ProducerConfig{
		Path:           path,
		ProducerID:     uuid.NewString(),
		Codec:          rawtopic.CodecRaw,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Validate fills in defaults and reports the first invalid field
func (c *ProducerConfig) Validate() error {
	if c.Path == "" {
		return ErrEmptyPath
	}
	if c.ProducerID == "" {
		c.ProducerID = uuid.NewString()
	}
	if c.MessageGroupID != "" && c.PartitionID != nil {
		return ErrBothPartitioning
	}
	if c.MessageGroupID == "" && c.PartitionID == nil {
		c.MessageGroupID = c.ProducerID
	}
	if c.Codec == rawtopic.CodecUnspecified {
		c.Codec = rawtopic.CodecRaw
	}
	if !codec.Supported(c.Codec) {
		return fmt.Errorf("codec %d: %w", c.Codec, codec.ErrUnsupportedCodec)
	}
	if c.ReconnectDelay < 0 {
		return ErrInvalidReconnectDelay
	}
	return nil
}

type TopicConfig struct {
	Path         string    `yaml:"path"`
	PartitionIDs []int64   `yaml:"partition_ids"`
	ReadFrom     time.Time `yaml:"read_from"`
}

type ReaderConfig struct {
	Consumer   string        `yaml:"consumer"`
	ReaderName string        `yaml:"reader_name"`
	Topics     []TopicConfig `yaml:"topics"`
	// MaxMemoryUsageBytes is the byte budget the server may have outstanding
	MaxMemoryUsageBytes int64 `yaml:"max_memory_usage_bytes"`
	// ReadRequestThreshold is the share of the budget that must be freed
	// before more bytes are requested
	ReadRequestThreshold float64       `yaml:"read_request_threshold"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
}

func DefaultReaderConfig(consumer string, topics ...string) ReaderConfig {
	c := ReaderConfig{
		Consumer:             consumer,
		MaxMemoryUsageBytes:  DefaultMaxMemoryUsageBytes,
		ReadRequestThreshold: DefaultReadRequestThreshold,
		ReconnectDelay:       DefaultReconnectDelay,
	}
	for _, t := range topics {
		c.Topics = append(c.Topics, TopicConfig{Path: t})
	}
	return c
}

func (c *ReaderConfig) Validate() error {
	if c.Consumer == "" {
		return ErrEmptyConsumer
	}
	if len(c.Topics) == 0 {
		return ErrNoTopics
	}
	for i, t := range c.Topics {
		if t.Path == "" {
			return fmt.Errorf("topics[%d]: %w", i, ErrEmptyPath)
		}
	}
	if c.MaxMemoryUsageBytes == 0 {
		c.MaxMemoryUsageBytes = DefaultMaxMemoryUsageBytes
	}
	if c.MaxMemoryUsageBytes < 0 {
		return ErrInvalidMaxMemoryUsage
	}
	if c.ReadRequestThreshold == 0 {
		c.ReadRequestThreshold = DefaultReadRequestThreshold
	}
	if c.ReadRequestThreshold < 0 || c.ReadRequestThreshold > 1 {
		return ErrInvalidReadRequestPortion
	}
	if c.ReconnectDelay < 0 {
		return ErrInvalidReconnectDelay
	}
	return nil
}

// ReadRequestBytes is the amount of freed credit that triggers a new read request
func (c ReaderConfig) ReadRequestBytes() int64 {
	n := int64(float64(c.MaxMemoryUsageBytes) * c.ReadRequestThreshold)
	if n < 1 {
		n = 1
	}
	return n
}

type ClientConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Token    string `yaml:"token"`
	Insecure bool   `yaml:"insecure"`
}

// Config is the layout of a YAML config file
type Config struct {
	Client   ClientConfig    `yaml:"client"`
	Producer *ProducerConfig `yaml:"producer"`
	Reader   *ReaderConfig   `yaml:"reader"`
}

// Load reads and validates a YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Producer != nil {
		if err := cfg.Producer.Validate(); err != nil {
			return nil, fmt.Errorf("producer: %w", err)
		}
	}
	if cfg.Reader != nil {
		if err := cfg.Reader.Validate(); err != nil {
			return nil, fmt.Errorf("reader: %w", err)
		}
	}
	return &cfg, nil
}
