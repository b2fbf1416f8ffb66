package loop

import (
	"sync"

	"github.com/eapache/queue"
)

// QueueLoop keeps posted functions in an unbounded ring queue, so Post
// never blocks, not even from inside the loop.
type QueueLoop struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	wakeup chan struct{}
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	options
}

func NewQueueLoop(opts ...Option) *QueueLoop {
	l := &QueueLoop{
		q:       queue.New(),
		wakeup:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		options: buildOptions(opts),
	}

	go l.run()

	return l
}

func (l *QueueLoop) Kind() string {
	return KindQueue
}

func (l *QueueLoop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.q.Add(fn)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
	return nil
}

func (l *QueueLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.q.Length() == 0 {
		return nil, false
	}
	return l.q.Remove().(func()), true
}

func (l *QueueLoop) run() {
	defer close(l.done)
	for {
		fn, ok := l.next()
		if ok {
			runSafe(l.logger, KindQueue, fn)
			continue
		}
		select {
		case <-l.quit:
			return
		case <-l.wakeup:
		}
	}
}

func (l *QueueLoop) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		// release queued closures
		l.q = queue.New()
		l.mu.Unlock()
		close(l.quit)
	})
	return nil
}

func (l *QueueLoop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *QueueLoop) Done() <-chan struct{} {
	return l.done
}
