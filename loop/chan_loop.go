package loop

import (
	"context"
	"sync"
	"sync/atomic"
)

// ChanLoop drains a buffered channel on a dedicated goroutine. Post blocks
// while the buffer is full.
type ChanLoop struct {
	workQueue chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once

	options
}

func NewChanLoop(opts ...Option) *ChanLoop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &ChanLoop{
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		options: buildOptions(opts),
	}
	l.workQueue = make(chan func(), l.capacity)

	go l.run()

	return l
}

func (l *ChanLoop) Kind() string {
	return KindChan
}

func (l *ChanLoop) Post(fn func()) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	select {
	case <-l.ctx.Done():
		return ErrLoopClosed
	case l.workQueue <- fn:
		return nil
	}
}

func (l *ChanLoop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.workQueue:
			// Close may race with a ready item; honor it first.
			if l.closed.Load() {
				return
			}
			runSafe(l.logger, KindChan, fn)
		}
	}
}

func (l *ChanLoop) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		l.cancel()
	})
	return nil
}

func (l *ChanLoop) Closed() bool {
	return l.closed.Load()
}

func (l *ChanLoop) Done() <-chan struct{} {
	return l.done
}
