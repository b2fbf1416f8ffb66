package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awaketai/crawlrt/collector/sqlstorage"
	"github.com/awaketai/crawlrt/config"
	"github.com/awaketai/crawlrt/engine"
	cLog "github.com/awaketai/crawlrt/log"
	"github.com/awaketai/crawlrt/mail"
	"github.com/awaketai/crawlrt/monitor"
	"github.com/awaketai/crawlrt/reactor"
	"github.com/awaketai/crawlrt/server"
	"github.com/awaketai/crawlrt/signals"
	"github.com/awaketai/crawlrt/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReasonTimeout closes a spider that ran for the --timeout duration.
const ReasonTimeout = "closespider_timeout"

type runOptions struct {
	configPath string
	overrides  []string
	spider     string
	timeout    time.Duration
	// reactor slot to install into, reactor.Default when nil
	lifecycle *reactor.Lifecycle
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	c := &cobra.Command{
		Use:   "run",
		Short: "run the crawl runtime",
		Long:  "install the reactor, start the engine and its extensions, and run until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, opts)
		},
	}
	c.Flags().StringVar(&opts.configPath, "config", "", "settings file (default ./"+config.DefaultFile+")")
	c.Flags().StringArrayVar(&opts.overrides, "set", nil, "override a setting, KEY=VALUE")
	c.Flags().StringVar(&opts.spider, "spider", "default", "name of the spider to open")
	c.Flags().DurationVar(&opts.timeout, "timeout", 0, "close the spider after this long, 0 runs until interrupted")
	return c
}

func loadSettings(opts runOptions) (*config.Settings, error) {
	settings, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	for _, pair := range opts.overrides {
		if err := settings.SetPair(pair); err != nil {
			return nil, err
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// installReactor installs the configured reactor and checks that the
// installed one is what the settings ask for.
func installReactor(lc *reactor.Lifecycle, settings *config.Settings, logger *zap.Logger) (reactor.Reactor, error) {
	name := settings.String("REACTOR")
	loopKind := settings.String("EVENT_LOOP")

	if err := lc.InstallWith(name, loopKind, reactor.WithLogger(logger)); err != nil {
		return nil, err
	}
	if err := lc.VerifyIdentity(name); err != nil {
		return nil, err
	}
	adapter, err := lc.IsAdapterInstalled()
	if err != nil {
		return nil, err
	}
	// an unset EVENT_LOOP accepts whatever loop the adapter runs on
	if adapter && loopKind != "" {
		if err := lc.VerifyEventLoopIdentity(loopKind); err != nil {
			return nil, err
		}
	}
	return lc.Installed()
}

func Run(ctx context.Context, opts runOptions) (err error) {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	logger, logCloser, err := cLog.FromSettings(settings)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer logger.Sync()

	lc := opts.lifecycle
	if lc == nil {
		lc = reactor.Default
	}
	r, err := installReactor(lc, settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.Stop())
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	statsOpts := []stats.Option{
		stats.WithLogger(logger),
		stats.WithRegisterer(reg),
		stats.WithBotName(settings.String("BOT_NAME")),
	}
	if dsn := settings.String("STATS_DSN"); dsn != "" {
		store, err := sqlstorage.NewSqlStore(
			sqlstorage.WithDSN(dsn),
			sqlstorage.WithLogger(logger),
			sqlstorage.WithFields(stats.Fields...),
		)
		if err != nil {
			return fmt.Errorf("open stats storage: %w", err)
		}
		defer closeLogged(logger, "stats storage", store)
		statsOpts = append(statsOpts, stats.WithStorage(store, settings.String("STATS_TABLE")))
	}
	st, err := stats.New(statsOpts...)
	if err != nil {
		return err
	}

	dispatcher := signals.NewDispatcher(logger)
	crawler := engine.NewCrawler(
		engine.WithLogger(logger),
		engine.WithSignals(dispatcher),
		engine.WithStats(st),
		engine.WithSpider(opts.spider),
	)

	mon, err := monitor.New(settings, crawler, st, r,
		monitor.WithLogger(logger),
		monitor.WithMailer(mail.FromSettings(settings, logger)),
	)
	switch {
	case errors.Is(err, config.ErrNotConfigured):
		logger.Info("memory usage monitor disabled", zap.Error(err))
	case err != nil:
		return err
	default:
		mon.Connect(dispatcher)
		defer flushMonitor(logger, mon)
	}

	snapshot := server.NewSnapshot(r, crawler.Status)
	status, err := server.FromSettings(settings, snapshot.Status, reg, logger)
	switch {
	case errors.Is(err, config.ErrNotConfigured):
		status = nil
	case err != nil:
		return err
	default:
		if err := status.Start(ctx); err != nil {
			return err
		}
	}

	err = r.CallFromThread(func() {
		if err := crawler.Start(ctx); err != nil {
			r.ReportError(err)
		}
	})
	if err != nil {
		return err
	}
	if opts.timeout > 0 {
		_, err := r.CallLater(opts.timeout, func() {
			if err := crawler.CloseSpider(ReasonTimeout); err != nil && !errors.Is(err, engine.ErrNoSpider) {
				r.ReportError(err)
			}
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-crawler.Done():
			return nil
		case <-gctx.Done():
		}
		logger.Info("shutdown requested")
		stopped := make(chan error, 1)
		if err := r.CallFromThread(func() { stopped <- crawler.Stop() }); err != nil {
			return err
		}
		if err := <-stopped; err != nil && !errors.Is(err, engine.ErrNotStarted) {
			return err
		}
		return nil
	})
	if status != nil {
		g.Go(func() error {
			select {
			case <-crawler.Done():
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return status.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// flushMonitor lets report mails still in flight finish.
func flushMonitor(logger *zap.Logger, mon *monitor.MemoryUsage) {
	ctx, cancel := context.WithTimeout(context.Background(), monitor.MailTimeout)
	defer cancel()
	if err := mon.Flush(ctx); err != nil {
		logger.Warn("usage report mails still pending", zap.Error(err))
	}
}

func closeLogged(logger *zap.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("close failed", zap.String("what", what), zap.Error(err))
	}
}
