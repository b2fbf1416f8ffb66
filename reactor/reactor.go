// Package reactor installs the one process-wide callback dispatcher and
// verifies which implementation is installed.
//
// Two implementations exist. The select reactor is the legacy kind: it owns
// its dispatch goroutine and timer heap. The adapter reactor hands every
// callback to a cooperative loop.Loop obtained from a loop.Registry.
package reactor

import (
	"sync/atomic"
	"time"

	"github.com/awaketai/crawlrt/loop"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type Kind int

const (
	KindLegacy Kind = iota
	KindAdapter
)

func (k Kind) String() string {
	switch k {
	case KindLegacy:
		return "legacy"
	case KindAdapter:
		return "adapter"
	default:
		return "unknown"
	}
}

// Reactor dispatches callbacks one at a time.
type Reactor interface {
	// Name is the registry identity the reactor was installed under.
	Name() string
	Kind() Kind
	// Loop is the bound cooperative loop, nil for legacy reactors.
	Loop() loop.Loop
	// CallFromThread queues fn for dispatch. Safe from any goroutine.
	CallFromThread(fn func()) error
	// CallLater dispatches fn once delay has elapsed on the reactor clock.
	CallLater(delay time.Duration, fn func()) (DelayedCall, error)
	// ReportError sends an error raised by a callback to the reactor's
	// error channel.
	ReportError(err error)
	Now() time.Time
	Stop() error
	Done() <-chan struct{}
}

// DelayedCall is the handle of a CallLater.
type DelayedCall interface {
	// Cancel prevents dispatch. It reports false when the call already
	// ran or was cancelled before.
	Cancel() bool
	Active() bool
}

type options struct {
	logger  *zap.Logger
	clock   clock.Clock
	onError func(error)
}

var defaultOptions = options{
	clock: clock.New(),
}

type Option func(opts *options)

// WithLogger sets the reactor logger. Reactors default to the zap global
// logger at construction time.
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

// WithErrorHandler observes every error passed to ReportError, after it
// has been logged.
func WithErrorHandler(fn func(error)) Option {
	return func(opts *options) {
		opts.onError = fn
	}
}

func buildOptions(opts []Option) options {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.L()
	}
	return options
}

const (
	callPending int32 = iota
	callDone
	callCancelled
)

type delayedCall struct {
	state atomic.Int32
	timer *clock.Timer
}

func (c *delayedCall) Cancel() bool {
	if !c.state.CompareAndSwap(callPending, callCancelled) {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	return true
}

func (c *delayedCall) Active() bool {
	return c.state.Load() == callPending
}

// claim marks the call as dispatched; false means it was cancelled.
func (c *delayedCall) claim() bool {
	return c.state.CompareAndSwap(callPending, callDone)
}

type base struct {
	name    string
	stopped atomic.Bool
	options
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Now() time.Time {
	return b.clock.Now()
}

func (b *base) ReportError(err error) {
	if err == nil {
		return
	}
	b.logger.Error("unhandled error in reactor callback", zap.String("reactor", b.name), zap.Error(err))
	if b.onError != nil {
		b.onError(err)
	}
}
