package reactor

import (
	"container/heap"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/loop"
	"go.uber.org/zap"
)

// NameSelect is the registry identity of the legacy reactor.
const NameSelect = "select"

type scheduledCall struct {
	*delayedCall
	runAt time.Time
	seq   uint64
	fn    func()
	index int
}

// callHeap orders calls by due time, FIFO among equal times.
type callHeap []*scheduledCall

func (h callHeap) Len() int { return len(h) }
func (h callHeap) Less(i, j int) bool {
	if h[i].runAt.Equal(h[j].runAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].runAt.Before(h[j].runAt)
}
func (h callHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *callHeap) Push(x any) {
	item := x.(*scheduledCall)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *callHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// SelectReactor keeps every pending call in one heap ordered by due time
// and served by a dedicated goroutine. Immediate calls are entries due now;
// delayed calls arm a clock timer that wakes the goroutine.
type SelectReactor struct {
	base

	mu     sync.Mutex
	pq     callHeap
	seq    uint64
	wakeup chan struct{}
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewSelectReactor(opts ...Option) *SelectReactor {
	r := &SelectReactor{
		base:   base{name: NameSelect, options: buildOptions(opts)},
		wakeup: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	heap.Init(&r.pq)

	go r.run()

	return r
}

func (r *SelectReactor) Kind() Kind {
	return KindLegacy
}

func (r *SelectReactor) Loop() loop.Loop {
	return nil
}

func (r *SelectReactor) CallFromThread(fn func()) error {
	_, err := r.CallLater(0, fn)
	return err
}

func (r *SelectReactor) CallLater(delay time.Duration, fn func()) (DelayedCall, error) {
	if r.stopped.Load() {
		return nil, ErrReactorStopped
	}
	if delay < 0 {
		delay = 0
	}
	call := &scheduledCall{
		delayedCall: &delayedCall{},
		runAt:       r.clock.Now().Add(delay),
		fn:          fn,
	}

	r.mu.Lock()
	r.seq++
	call.seq = r.seq
	heap.Push(&r.pq, call)
	r.mu.Unlock()

	if delay == 0 {
		r.signal()
	} else {
		// the timer only wakes the dispatch goroutine; the heap decides
		// what is due
		call.timer = r.clock.AfterFunc(delay, r.signal)
	}
	return call, nil
}

func (r *SelectReactor) signal() {
	select {
	case r.wakeup <- struct{}{}:
	default:
	}
}

// due pops every call whose time has come, dropping cancelled ones.
func (r *SelectReactor) due() []*scheduledCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var expired []*scheduledCall
	for r.pq.Len() > 0 {
		item := r.pq[0]
		if item.Active() && item.runAt.After(now) {
			break
		}
		heap.Pop(&r.pq)
		if item.Active() {
			expired = append(expired, item)
		}
	}
	return expired
}

func (r *SelectReactor) run() {
	defer close(r.done)
	for {
		if r.stopped.Load() {
			return
		}
		expired := r.due()
		for _, call := range expired {
			if call.claim() {
				r.dispatch(call.fn)
			}
		}
		if len(expired) > 0 {
			continue
		}

		select {
		case <-r.quit:
			return
		case <-r.wakeup:
		}
	}
}

func (r *SelectReactor) dispatch(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reactor callback panicked",
				zap.String("reactor", r.name),
				zap.ByteString("stack", debug.Stack()),
			)
			r.ReportError(fmt.Errorf("panic: %v", p))
		}
	}()
	fn()
}

// Pending returns the number of calls waiting in the heap. Cancelled calls
// are counted until they reach the top.
func (r *SelectReactor) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pq.Len()
}

func (r *SelectReactor) Stop() error {
	r.once.Do(func() {
		r.stopped.Store(true)
		close(r.quit)

		// release pending closures
		r.mu.Lock()
		r.pq = make(callHeap, 0)
		r.mu.Unlock()
	})
	return nil
}

func (r *SelectReactor) Done() <-chan struct{} {
	return r.done
}
