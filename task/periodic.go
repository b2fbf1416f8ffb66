package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/reactor"
)

var (
	ErrAlreadyRunning  = errors.New("task: already running")
	ErrInvalidInterval = errors.New("task: interval must be positive")
)

// Periodic calls fn every interval at a fixed rate measured from Start.
// Ticks missed while fn was running are skipped. An error or panic from fn
// is reported to the scheduler and the next tick is still scheduled.
type Periodic struct {
	sched Scheduler
	fn    func() error

	mu       sync.Mutex
	running  bool
	gen      uint64
	interval time.Duration
	start    time.Time
	call     reactor.DelayedCall
}

func NewPeriodic(sched Scheduler, fn func() error) *Periodic {
	return &Periodic{
		sched: sched,
		fn:    fn,
	}
}

// Start begins ticking. With now set the first tick is dispatched
// immediately, otherwise after one interval.
func (p *Periodic) Start(interval time.Duration, now bool) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.gen++
	p.interval = interval
	p.start = p.sched.Now()

	delay := interval
	if now {
		delay = 0
	}
	if err := p.scheduleLocked(p.gen, delay); err != nil {
		p.running = false
		return err
	}
	return nil
}

// Stop cancels future ticks. A tick already dispatched runs to completion.
// Stopping a stopped task does nothing.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.call != nil {
		p.call.Cancel()
		p.call = nil
	}
}

func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Periodic) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Periodic) scheduleLocked(gen uint64, delay time.Duration) error {
	call, err := p.sched.CallLater(delay, func() { p.tick(gen) })
	if err != nil {
		return err
	}
	p.call = call
	return nil
}

func (p *Periodic) current(gen uint64) bool {
	return p.running && p.gen == gen
}

func (p *Periodic) tick(gen uint64) {
	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return
	}
	p.call = nil
	p.mu.Unlock()

	p.run()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current(gen) {
		return
	}
	now := p.sched.Now()
	n := now.Sub(p.start)/p.interval + 1
	delay := p.start.Add(n * p.interval).Sub(now)
	if err := p.scheduleLocked(gen, delay); err != nil {
		p.running = false
		p.sched.ReportError(fmt.Errorf("reschedule periodic task: %w", err))
	}
}

func (p *Periodic) run() {
	defer func() {
		if r := recover(); r != nil {
			p.sched.ReportError(fmt.Errorf("periodic task panic: %v", r))
		}
	}()
	if err := p.fn(); err != nil {
		p.sched.ReportError(err)
	}
}
