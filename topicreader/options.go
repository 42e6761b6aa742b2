package topicreader

import "log/slog"

type Option func(*options)

type options struct {
	l *slog.Logger
}

func defaultOptions() options {
	return options{l: slog.Default()}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.l = l
	}
}
