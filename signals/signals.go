// Package signals dispatches crawl lifecycle events to connected handlers.
package signals

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Signal string

const (
	EngineStarted Signal = "engine_started"
	EngineStopped Signal = "engine_stopped"
	SpiderOpened  Signal = "spider_opened"
	SpiderClosed  Signal = "spider_closed"
)

type Event struct {
	Signal Signal
	// Spider is set for spider signals.
	Spider string
	// Reason is set for SpiderClosed.
	Reason string
}

type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

type Dispatcher struct {
	logger *zap.Logger
	nextID atomic.Uint64

	mu sync.Mutex
	// handler slices are replaced, never mutated, so Send iterates a snapshot
	handlers map[Signal][]subscription
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: map[Signal][]subscription{},
	}
}

// Connect registers h for sig and returns a function that disconnects it.
func (d *Dispatcher) Connect(sig Signal, h Handler) (disconnect func()) {
	id := d.nextID.Add(1)
	d.mu.Lock()
	old := d.handlers[sig]
	subs := make([]subscription, len(old), len(old)+1)
	copy(subs, old)
	d.handlers[sig] = append(subs, subscription{id: id, handler: h})
	d.mu.Unlock()

	return func() { d.disconnect(sig, id) }
}

func (d *Dispatcher) disconnect(sig Signal, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.handlers[sig]
	subs := make([]subscription, 0, len(old))
	for _, s := range old {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	d.handlers[sig] = subs
}

// Send calls every handler of ev.Signal in connection order. A failing or
// panicking handler is logged and does not stop the others; all failures
// are returned combined.
func (d *Dispatcher) Send(ctx context.Context, ev Event) error {
	d.mu.Lock()
	subs := d.handlers[ev.Signal]
	d.mu.Unlock()

	var errs error
	for _, s := range subs {
		if err := d.call(ctx, s.handler, ev); err != nil {
			d.logger.Error("signal handler failed",
				zap.String("signal", string(ev.Signal)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (d *Dispatcher) call(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signal %s handler panic: %v", ev.Signal, r)
		}
	}()
	return h(ctx, ev)
}
