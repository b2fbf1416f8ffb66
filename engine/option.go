package engine

import (
	"github.com/awaketai/crawlrt/signals"
	"github.com/awaketai/crawlrt/stats"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type Option func(opt *options)

type options struct {
	Logger     *zap.Logger
	dispatcher *signals.Dispatcher
	collector  *stats.Collector
	spiderName string
	Clock      clock.Clock
}

var defaultOptions = options{
	Logger: zap.NewNop(),
	Clock:  clock.New(),
}

func WithLogger(logger *zap.Logger) Option {
	return func(opt *options) {
		opt.Logger = logger
	}
}

func WithSignals(d *signals.Dispatcher) Option {
	return func(opt *options) {
		opt.dispatcher = d
	}
}

func WithStats(s *stats.Collector) Option {
	return func(opt *options) {
		opt.collector = s
	}
}

// WithSpider names the spider opened when the engine starts.
func WithSpider(name string) Option {
	return func(opt *options) {
		opt.spiderName = name
	}
}

func WithClock(clk clock.Clock) Option {
	return func(opt *options) {
		opt.Clock = clk
	}
}
