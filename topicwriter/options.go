package topicwriter

import "log/slog"

type Option func(*options)

type options struct {
	l                *slog.Logger
	maxRequestBytes  int
	maxRequestMsgCnt int
}

func defaultOptions() options {
	return options{
		l:                slog.Default(),
		maxRequestBytes:  defaultMaxRequestBytes,
		maxRequestMsgCnt: defaultMaxRequestMessages,
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.l = l
	}
}

// WithMaxRequestSize bounds the payload bytes and message count of one
// write request. Larger drains are split into several requests.
func WithMaxRequestSize(bytes, messages int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.maxRequestBytes = bytes
		}
		if messages > 0 {
			o.maxRequestMsgCnt = messages
		}
	}
}
