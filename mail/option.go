package mail

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type options struct {
	logger *zap.Logger
	clock  clock.Clock
	host   string
	port   int
	from   string
	user   string
	pass   string
	debug  bool
	// messages per second, 0 disables throttling
	rate float64
}

var defaultOptions = options{
	logger: zap.NewNop(),
	clock:  clock.New(),
	host:   "localhost",
	port:   25,
	from:   "crawlrt@localhost",
	rate:   1,
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithClock(clk clock.Clock) Option {
	return func(opts *options) {
		opts.clock = clk
	}
}

func WithServer(host string, port int) Option {
	return func(opts *options) {
		opts.host = host
		opts.port = port
	}
}

func WithFrom(from string) Option {
	return func(opts *options) {
		opts.from = from
	}
}

// WithAuth enables PLAIN auth. An empty user disables it.
func WithAuth(user, pass string) Option {
	return func(opts *options) {
		opts.user = user
		opts.pass = pass
	}
}

// WithDebug logs messages instead of sending them.
func WithDebug(debug bool) Option {
	return func(opts *options) {
		opts.debug = debug
	}
}

func WithRate(perSecond float64) Option {
	return func(opts *options) {
		opts.rate = perSecond
	}
}
