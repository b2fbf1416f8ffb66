// Package engine drives the crawl lifecycle: start, spider open and
// close, stop. It emits the lifecycle signals the extensions listen to.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/signals"
	"github.com/awaketai/crawlrt/stats"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("engine: already started")
	ErrNotStarted     = errors.New("engine: not started")
	ErrNoSpider       = errors.New("engine: no spider open")
)

// ReasonShutdown closes a spider that is still open when the engine stops.
const ReasonShutdown = "shutdown"

type Crawler struct {
	options

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	stopped     bool
	startTime   time.Time
	spider      string
	closeReason string

	done chan struct{}
}

func NewCrawler(opts ...Option) *Crawler {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.dispatcher == nil {
		options.dispatcher = signals.NewDispatcher(options.Logger)
	}
	if options.collector == nil {
		options.collector, _ = stats.New(stats.WithLogger(options.Logger))
	}
	return &Crawler{
		options: options,
		ctx:     context.Background(),
		done:    make(chan struct{}),
	}
}

func (c *Crawler) Signals() *signals.Dispatcher {
	return c.options.dispatcher
}

func (c *Crawler) Stats() *stats.Collector {
	return c.options.collector
}

// Start sends EngineStarted and opens the configured spider. Handler
// failures are logged by the dispatcher and returned, the engine keeps
// running.
func (c *Crawler) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx = ctx
	c.startTime = c.Clock.Now()
	c.mu.Unlock()

	c.collector.SetValue("start_time", c.startTime.Unix())
	c.Logger.Info("engine started", zap.String("spider", c.spiderName))
	errs := c.dispatcher.Send(ctx, signals.Event{Signal: signals.EngineStarted})

	if c.spiderName != "" {
		c.mu.Lock()
		c.spider = c.spiderName
		c.mu.Unlock()
		c.Logger.Info("spider opened", zap.String("spider", c.spiderName))
		errs = multierr.Append(errs, c.dispatcher.Send(ctx, signals.Event{
			Signal: signals.SpiderOpened,
			Spider: c.spiderName,
		}))
	}
	return errs
}

func (c *Crawler) SpiderOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spider != ""
}

// CloseSpider closes the open spider with reason and stops the engine.
func (c *Crawler) CloseSpider(reason string) error {
	c.mu.Lock()
	name := c.spider
	if name == "" {
		c.mu.Unlock()
		return ErrNoSpider
	}
	c.spider = ""
	c.closeReason = reason
	ctx := c.ctx
	c.mu.Unlock()

	c.Logger.Info("closing spider", zap.String("spider", name), zap.String("reason", reason))
	errs := c.dispatcher.Send(ctx, signals.Event{
		Signal: signals.SpiderClosed,
		Spider: name,
		Reason: reason,
	})
	return multierr.Append(errs, c.Stop())
}

// Stop closes a still open spider, sends EngineStopped and dumps the stats.
// Only the first call does anything.
func (c *Crawler) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	open := c.spider != ""
	c.mu.Unlock()

	var errs error
	if open {
		errs = c.CloseSpider(ReasonShutdown)
	}

	c.mu.Lock()
	ctx, reason := c.ctx, c.closeReason
	if reason == "" {
		reason = ReasonShutdown
	}
	c.mu.Unlock()

	c.Logger.Info("engine stopped", zap.String("reason", reason))
	errs = multierr.Append(errs, c.dispatcher.Send(ctx, signals.Event{Signal: signals.EngineStopped}))
	errs = multierr.Append(errs, c.collector.Close(reason))
	close(c.done)
	return errs
}

func (c *Crawler) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the engine stops or ctx is done.
func (c *Crawler) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the engine state for diagnostics.
func (c *Crawler) Status() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := map[string]any{
		"engine.running":     c.started && !c.stopped,
		"engine.spider_open": c.spider != "",
		"engine.spider":      c.spider,
		"engine.stats_keys":  len(c.collector.GetStats()),
	}
	if c.started {
		status["engine.uptime_seconds"] = c.Clock.Since(c.startTime).Seconds()
	}
	if c.closeReason != "" {
		status["engine.close_reason"] = c.closeReason
	}
	return status
}
