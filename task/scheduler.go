package task

import (
	"time"

	"github.com/awaketai/crawlrt/reactor"
)

// Scheduler is the part of a reactor the primitives need. Every
// reactor.Reactor satisfies it.
type Scheduler interface {
	CallLater(delay time.Duration, fn func()) (reactor.DelayedCall, error)
	ReportError(err error)
	Now() time.Time
}
