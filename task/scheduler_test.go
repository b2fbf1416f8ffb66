package task

import (
	"sort"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/reactor"
)

type fakeCall struct {
	at        time.Time
	seq       int
	fn        func()
	cancelled bool
	done      bool
}

func (c *fakeCall) Cancel() bool {
	if c.cancelled || c.done {
		return false
	}
	c.cancelled = true
	return true
}

func (c *fakeCall) Active() bool {
	return !c.cancelled && !c.done
}

// fakeScheduler runs calls synchronously from advance, in due order.
type fakeScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	calls []*fakeCall
	errs  []error
	fail  error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) CallLater(delay time.Duration, fn func()) (reactor.DelayedCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.seq++
	c := &fakeCall{at: s.now.Add(delay), seq: s.seq, fn: fn}
	s.calls = append(s.calls, c)
	return c, nil
}

func (s *fakeScheduler) ReportError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) nextDue(until time.Time) *fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*fakeCall
	for _, c := range s.calls {
		if c.Active() && !c.at.After(until) {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].at.Equal(active[j].at) {
			return active[i].seq < active[j].seq
		}
		return active[i].at.Before(active[j].at)
	})
	c := active[0]
	c.done = true
	if c.at.After(s.now) {
		s.now = c.at
	}
	return c
}

// advance moves time forward by d, running every call that becomes due.
func (s *fakeScheduler) advance(d time.Duration) {
	until := s.Now().Add(d)
	for {
		c := s.nextDue(until)
		if c == nil {
			break
		}
		c.fn()
	}
	s.mu.Lock()
	if until.After(s.now) {
		s.now = until
	}
	s.mu.Unlock()
}

func (s *fakeScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Active() {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) errCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}
