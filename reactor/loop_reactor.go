package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/loop"
	"go.uber.org/zap"
)

// NameAdapter is the registry identity of the loop adapter reactor.
const NameAdapter = "adapter"

// LoopReactor delegates dispatch to a cooperative loop. Timers run on the
// reactor clock and post into the loop when they fire.
type LoopReactor struct {
	base
	loop loop.Loop
	once sync.Once
}

func NewLoopReactor(l loop.Loop, opts ...Option) *LoopReactor {
	return &LoopReactor{
		base: base{name: NameAdapter, options: buildOptions(opts)},
		loop: l,
	}
}

func (r *LoopReactor) Kind() Kind {
	return KindAdapter
}

func (r *LoopReactor) Loop() loop.Loop {
	return r.loop
}

func (r *LoopReactor) CallFromThread(fn func()) error {
	if r.stopped.Load() {
		return ErrReactorStopped
	}
	return r.loop.Post(r.guard(fn))
}

func (r *LoopReactor) CallLater(delay time.Duration, fn func()) (DelayedCall, error) {
	if r.stopped.Load() {
		return nil, ErrReactorStopped
	}
	call := &delayedCall{}
	run := func() {
		if call.claim() {
			r.guard(fn)()
		}
	}
	if delay <= 0 {
		if err := r.loop.Post(run); err != nil {
			return nil, err
		}
		return call, nil
	}
	call.timer = r.clock.AfterFunc(delay, func() {
		if err := r.loop.Post(run); err != nil {
			r.logger.Warn("dropping delayed call", zap.String("reactor", r.name), zap.Error(err))
		}
	})
	return call, nil
}

// guard turns a callback panic into a reported error; the loop would only
// log it.
func (r *LoopReactor) guard(fn func()) func() {
	return func() {
		defer func() {
			if p := recover(); p != nil {
				r.ReportError(fmt.Errorf("panic: %v", p))
			}
		}()
		fn()
	}
}

// Stop closes the bound loop.
func (r *LoopReactor) Stop() error {
	var err error
	r.once.Do(func() {
		r.stopped.Store(true)
		err = r.loop.Close()
	})
	return err
}

func (r *LoopReactor) Done() <-chan struct{} {
	return r.loop.Done()
}
