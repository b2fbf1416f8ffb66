// Package monitor watches the process peak memory while the engine runs.
// Crossing the warning threshold is reported once per run; crossing the
// limit reports and shuts the crawl down.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/config"
	"github.com/awaketai/crawlrt/signals"
	"github.com/awaketai/crawlrt/task"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	KeyStartup         = "memusage/startup"
	KeyMax             = "memusage/max"
	KeyLimitReached    = "memusage/limit_reached"
	KeyLimitNotified   = "memusage/limit_notified"
	KeyWarningReached  = "memusage/warning_reached"
	KeyWarningNotified = "memusage/warning_notified"

	// ReasonExceeded is the close reason of a spider stopped by the limit.
	ReasonExceeded = "memusage_exceeded"

	mib = 1024 * 1024
)

// MailTimeout bounds the delivery of one usage report.
const MailTimeout = 30 * time.Second

type Stats interface {
	SetValue(key string, v int64)
	MaxValue(key string, v int64)
	GetValue(key string) (int64, bool)
}

type Crawler interface {
	SpiderOpen() bool
	CloseSpider(reason string) error
	Stop() error
	Status() map[string]any
}

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type SignalConnector interface {
	Connect(sig signals.Signal, h signals.Handler) (disconnect func())
}

type MemoryUsage struct {
	options
	crawler Crawler
	stats   Stats
	sched   task.Scheduler

	botName  string
	mails    []string
	limitMB  int
	warnMB   int
	interval time.Duration

	mu  sync.Mutex
	cur *run

	// report mails in flight
	mailing sync.WaitGroup
}

// run is the state of one engine start.
type run struct {
	mu       sync.Mutex
	warned   bool
	limitHit bool
	tasks    []*task.Periodic
}

// New reads the MEMUSAGE_* settings. It returns an error wrapping
// config.ErrNotConfigured when the monitor is disabled or the platform
// cannot sample memory.
func New(s *config.Settings, crawler Crawler, st Stats, sched task.Scheduler, opts ...Option) (*MemoryUsage, error) {
	if !s.Bool("MEMUSAGE_ENABLED") {
		return nil, config.NotConfigured("MEMUSAGE_ENABLED is off")
	}
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.sampler == nil {
		if !sampleSupported {
			return nil, config.NotConfigured(ErrUnsupported.Error())
		}
		options.sampler = PeakRSS
	}
	if options.hostname == "" {
		options.hostname = hostname()
	}
	interval := s.Seconds("MEMUSAGE_CHECK_INTERVAL_SECONDS")
	if interval <= 0 {
		return nil, &config.Error{
			Key:   "MEMUSAGE_CHECK_INTERVAL_SECONDS",
			Value: interval.String(),
			Err:   task.ErrInvalidInterval,
		}
	}

	return &MemoryUsage{
		options:  options,
		crawler:  crawler,
		stats:    st,
		sched:    sched,
		botName:  s.String("BOT_NAME"),
		mails:    s.StringList("MEMUSAGE_NOTIFY_MAIL"),
		limitMB:  s.Int("MEMUSAGE_LIMIT_MB"),
		warnMB:   s.Int("MEMUSAGE_WARNING_MB"),
		interval: interval,
	}, nil
}

// Connect starts the monitor on EngineStarted and stops it on
// EngineStopped.
func (m *MemoryUsage) Connect(d SignalConnector) {
	d.Connect(signals.EngineStarted, func(ctx context.Context, ev signals.Event) error {
		return m.Start()
	})
	d.Connect(signals.EngineStopped, func(ctx context.Context, ev signals.Event) error {
		m.Stop()
		return nil
	})
}

// Start records the startup usage and begins the periodic checks. A
// previous run is stopped first.
func (m *MemoryUsage) Start() error {
	startup, err := m.sampler()
	if err != nil {
		return fmt.Errorf("sample memory usage: %w", err)
	}
	m.stats.SetValue(KeyStartup, startup)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil {
		m.cur.stop()
	}
	r := &run{}
	m.cur = r

	fns := []func() error{m.update}
	if m.limitMB > 0 {
		fns = append(fns, func() error { return m.checkLimit(r) })
	}
	if m.warnMB > 0 {
		fns = append(fns, func() error { return m.checkWarning(r) })
	}
	var errs error
	r.mu.Lock()
	for _, fn := range fns {
		p := task.NewPeriodic(m.sched, fn)
		if err := p.Start(m.interval, true); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		r.tasks = append(r.tasks, p)
	}
	r.mu.Unlock()
	m.logger.Debug("memory usage monitor started",
		zap.Int("limit_mib", m.limitMB),
		zap.Int("warning_mib", m.warnMB),
		zap.Duration("interval", m.interval),
		zap.Int("tasks", len(fns)),
	)
	return errs
}

// Stop cancels the periodic checks of the current run. Stopping twice, or
// before Start, does nothing.
func (m *MemoryUsage) Stop() {
	m.mu.Lock()
	r := m.cur
	m.cur = nil
	m.mu.Unlock()
	if r != nil {
		r.stop()
	}
}

// Tasks returns the number of running periodic checks.
func (m *MemoryUsage) Tasks() int {
	m.mu.Lock()
	r := m.cur
	m.mu.Unlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.Running() {
			n++
		}
	}
	return n
}

func (r *run) stop() {
	r.mu.Lock()
	tasks := r.tasks
	r.mu.Unlock()
	for _, t := range tasks {
		t.Stop()
	}
}

func (m *MemoryUsage) update() error {
	v, err := m.sampler()
	if err != nil {
		return err
	}
	m.stats.MaxValue(KeyMax, v)
	return nil
}

func (m *MemoryUsage) checkLimit(r *run) error {
	r.mu.Lock()
	hit := r.limitHit
	r.mu.Unlock()
	if hit {
		return nil
	}

	peak, err := m.sampler()
	if err != nil {
		return err
	}
	if peak <= int64(m.limitMB)*mib {
		m.logger.Info("peak memory usage", zap.Int64("mib", peak/mib))
		return nil
	}

	r.mu.Lock()
	r.limitHit = true
	r.mu.Unlock()

	m.stats.SetValue(KeyLimitReached, 1)
	m.logger.Error("memory usage exceeded, shutting down",
		zap.Int("limit_mib", m.limitMB),
		zap.Int64("peak_mib", peak/mib),
	)
	if len(m.mails) > 0 {
		subject := fmt.Sprintf("%s terminated: memory usage exceeded %dMiB at %s",
			m.botName, m.limitMB, m.hostname)
		m.sendReport(subject, KeyLimitNotified)
	}

	if m.crawler.SpiderOpen() {
		return m.crawler.CloseSpider(ReasonExceeded)
	}
	return m.crawler.Stop()
}

func (m *MemoryUsage) checkWarning(r *run) error {
	r.mu.Lock()
	warned := r.warned
	r.mu.Unlock()
	if warned {
		return nil
	}

	v, err := m.sampler()
	if err != nil {
		return err
	}
	if v <= int64(m.warnMB)*mib {
		return nil
	}

	r.mu.Lock()
	r.warned = true
	r.mu.Unlock()

	m.stats.SetValue(KeyWarningReached, 1)
	m.logger.Warn("memory usage reached warning threshold", zap.Int("warning_mib", m.warnMB))
	if len(m.mails) > 0 {
		subject := fmt.Sprintf("%s warning: memory usage reached %dMiB at %s",
			m.botName, m.warnMB, m.hostname)
		m.sendReport(subject, KeyWarningNotified)
	}
	return nil
}

// sendReport builds the report on the calling goroutine and mails it in
// the background. notifiedKey is set once the mail is accepted.
func (m *MemoryUsage) sendReport(subject, notifiedKey string) {
	if m.mailer == nil {
		m.logger.Warn("no mailer, usage report dropped", zap.String("subject", subject))
		return
	}
	body, err := m.report()
	if err != nil {
		m.logger.Error("build usage report failed", zap.Error(err))
		return
	}
	m.mailing.Add(1)
	go func() {
		defer m.mailing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), MailTimeout)
		defer cancel()
		if err := m.mailer.Send(ctx, m.mails, subject, body); err != nil {
			m.logger.Error("send usage report failed", zap.Strings("to", m.mails), zap.Error(err))
			return
		}
		m.stats.SetValue(notifiedKey, 1)
	}()
}

// Flush waits for report mails still being sent. Each of them gives up
// after MailTimeout on its own.
func (m *MemoryUsage) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.mailing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemoryUsage) report() (string, error) {
	current, err := m.sampler()
	if err != nil {
		return "", err
	}
	startup, _ := m.stats.GetValue(KeyStartup)
	peak, _ := m.stats.GetValue(KeyMax)

	var b strings.Builder
	fmt.Fprintf(&b, "Memory usage at engine startup : %.1fM\r\n", float64(startup)/mib)
	fmt.Fprintf(&b, "Maximum memory usage          : %.1fM\r\n", float64(peak)/mib)
	fmt.Fprintf(&b, "Current memory usage          : %.1fM\r\n", float64(current)/mib)
	b.WriteString("ENGINE STATUS ------------------------------------------------------- \r\n")
	b.WriteString("\r\n")

	status := m.crawler.Status()
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s : %v\r\n", k, status[k])
	}
	return b.String(), nil
}
