package server

import (
	"sync"
	"time"

	"github.com/awaketai/crawlrt/task"
)

const snapshotWait = 2 * time.Second

// Snapshot reads a StatusFunc on the reactor goroutine. Requests arriving
// while a read is pending share it.
type Snapshot struct {
	read *task.Coalesced[map[string]any]

	mu   sync.Mutex
	last map[string]any
}

func NewSnapshot(sched task.Scheduler, status StatusFunc) *Snapshot {
	s := &Snapshot{}
	s.read = task.NewCoalesced(sched, func() (map[string]any, error) {
		st := status()
		s.mu.Lock()
		s.last = st
		s.mu.Unlock()
		return st, nil
	})
	return s
}

// Status returns a fresh status, or the last one read when the reactor
// does not answer within snapshotWait.
func (s *Snapshot) Status() map[string]any {
	next := s.read.Next()
	if err := s.read.Schedule(0); err == nil {
		timer := time.NewTimer(snapshotWait)
		defer timer.Stop()
		select {
		case <-next:
		case <-timer.C:
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
