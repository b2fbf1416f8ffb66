package sqlstorage

import (
	"github.com/awaketai/crawlrt/sqldb"
	"go.uber.org/zap"
)

type options struct {
	logger     *zap.Logger
	dsn        string
	BatchCount int
	fields     []sqldb.Field
}

var defaultOptions = options{
	logger:     zap.NewNop(),
	BatchCount: 100,
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

func WithBatchCount(batchCount int) Option {
	return func(opts *options) {
		opts.BatchCount = batchCount
	}
}

// WithFields sets the columns every stored cell must provide.
func WithFields(fields ...sqldb.Field) Option {
	return func(opts *options) {
		opts.fields = fields
	}
}
