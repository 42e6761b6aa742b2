package v1

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	grpccreds "google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ydb-platform/ydb-topic-go/config"
	"github.com/ydb-platform/ydb-topic-go/credentials"
	grpcv1 "github.com/ydb-platform/ydb-topic-go/grpc/v1"
	v1 "github.com/ydb-platform/ydb-topic-go/interfaces/v1"
)

var ErrEmptyEndpoint = errors.New("empty endpoint")

const (
	schemeSecure   = "grpcs://"
	schemeInsecure = "grpc://"
)

// Option is a function that configures a Dial option
type Option func(*dialConfig)

type dialConfig struct {
	logger   *slog.Logger
	grpcOpts []grpc.DialOption
	tlsConf  *tls.Config
	insecure bool
	database string
	creds    credentials.Provider
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *dialConfig) {
		c.logger = logger
	}
}

// WithGRPCOptions appends gRPC dial options
func WithGRPCOptions(opts ...grpc.DialOption) Option {
	return func(c *dialConfig) {
		c.grpcOpts = append(c.grpcOpts, opts...)
	}
}

// WithTLSConfig sets the TLS configuration
func WithTLSConfig(tlsConf *tls.Config) Option {
	return func(c *dialConfig) {
		c.tlsConf = tlsConf
	}
}

// WithInsecure disables transport security
func WithInsecure() Option {
	return func(c *dialConfig) {
		c.insecure = true
	}
}

// WithDatabase sets the database every stream is opened against
func WithDatabase(database string) Option {
	return func(c *dialConfig) {
		c.database = database
	}
}

// WithCredentials sets the token provider for new streams
func WithCredentials(creds credentials.Provider) Option {
	return func(c *dialConfig) {
		c.creds = creds
	}
}

// Dial creates a new connection to the topic service.
// addr may carry a grpc:// or grpcs:// scheme which selects transport security.
func Dial(addr string, opts ...Option) (v1.Conn, error) {
	cfg := &dialConfig{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	switch {
	case strings.HasPrefix(addr, schemeInsecure):
		addr = strings.TrimPrefix(addr, schemeInsecure)
		cfg.insecure = true
	case strings.HasPrefix(addr, schemeSecure):
		addr = strings.TrimPrefix(addr, schemeSecure)
	}
	if addr == "" {
		return nil, ErrEmptyEndpoint
	}

	grpcOpts := make([]grpc.DialOption, 0, len(cfg.grpcOpts)+1)
	if cfg.insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		tlsConf := cfg.tlsConf
		if tlsConf == nil {
			tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(grpccreds.NewTLS(tlsConf)))
	}
	grpcOpts = append(grpcOpts, cfg.grpcOpts...)

	return grpcv1.NewConn(addr, cfg.database, cfg.creds, cfg.logger, grpcOpts...)
}

// DialConfig dials using a loaded client configuration. A non-empty token
// becomes static credentials; extra options are applied after the config.
func DialConfig(c config.ClientConfig, opts ...Option) (v1.Conn, error) {
	base := []Option{WithDatabase(c.Database)}
	if c.Insecure {
		base = append(base, WithInsecure())
	}
	if c.Token != "" {
		base = append(base, WithCredentials(credentials.Static(c.Token)))
	}
	return Dial(c.Endpoint, append(base, opts...)...)
}
