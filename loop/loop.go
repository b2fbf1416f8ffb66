// Package loop provides the cooperative event loops a reactor can be bound
// to and the registry that keeps one of them current for the process.
package loop

import (
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// Built-in loop kinds.
const (
	KindChan  = "chan"
	KindQueue = "queue"

	DefaultKind = KindChan
)

var (
	ErrLoopClosed  = errors.New("loop: closed")
	ErrUnknownLoop = errors.New("loop: unknown kind")
)

// Loop runs posted functions one at a time on a single goroutine.
type Loop interface {
	// Kind is the registry key the loop was built from.
	Kind() string
	// Post queues fn to run on the loop goroutine.
	Post(fn func()) error
	// Close stops the loop. Functions still queued are dropped.
	Close() error
	Closed() bool
	// Done is closed once the loop goroutine has exited.
	Done() <-chan struct{}
}

type options struct {
	logger   *zap.Logger
	capacity int
}

var defaultOptions = options{
	capacity: 256,
}

type Option func(opts *options)

// WithLogger sets the logger used to report panics in posted functions.
// Loops default to the zap global logger.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithCapacity sets the work queue size of the chan loop.
func WithCapacity(capacity int) Option {
	return func(opts *options) {
		opts.capacity = capacity
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
	if options.capacity <= 0 {
		options.capacity = defaultOptions.capacity
	}
	return options
}

// runSafe keeps a panicking callback from killing the loop goroutine.
func runSafe(logger *zap.Logger, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("loop callback panicked",
				zap.String("loop", kind),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	fn()
}
