package sqldb

import "go.uber.org/zap"

type options struct {
	logger   *zap.Logger
	dsn      string
	maxConns int
}

var defaultOptions = options{
	logger:   zap.NewNop(),
	maxConns: 4,
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithDSN(dsn string) Option {
	return func(opts *options) {
		opts.dsn = dsn
	}
}

// WithMaxConns bounds both open and idle connections.
func WithMaxConns(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.maxConns = n
		}
	}
}
