package stats

import (
	"github.com/awaketai/crawlrt/collector"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	storage    collector.Storager
	clock      clock.Clock
	botName    string
	table      string
}

var defaultOptions = options{
	logger:  zap.NewNop(),
	clock:   clock.New(),
	botName: "crawlrt",
	table:   "crawl_stats",
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithRegisterer mirrors every stat into a gauge registered with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts *options) {
		opts.registerer = reg
	}
}

// WithStorage persists the final stats when the collector is closed.
func WithStorage(storage collector.Storager, table string) Option {
	return func(opts *options) {
		opts.storage = storage
		if table != "" {
			opts.table = table
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(opts *options) {
		opts.clock = clk
	}
}

func WithBotName(name string) Option {
	return func(opts *options) {
		opts.botName = name
	}
}
