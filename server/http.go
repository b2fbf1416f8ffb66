// Package server exposes the engine status and the prometheus metrics
// over HTTP on a port picked from a configured range.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/awaketai/crawlrt/config"
	"github.com/awaketai/crawlrt/middleware"
	"github.com/awaketai/crawlrt/reactor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("server: not started")

// StatusFunc reports the state served on /status.
type StatusFunc func() map[string]any

type options struct {
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	host     string
	ports    []int
}

var defaultOptions = options{
	logger:   zap.NewNop(),
	gatherer: prometheus.DefaultGatherer,
	host:     "127.0.0.1",
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(opts *options) {
		opts.gatherer = g
	}
}

// WithListen sets the host and the port range tried in order.
func WithListen(host string, ports []int) Option {
	return func(opts *options) {
		opts.host = host
		opts.ports = ports
	}
}

type StatusServer struct {
	options
	status StatusFunc

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

func NewStatusServer(status StatusFunc, opts ...Option) *StatusServer {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &StatusServer{
		options: options,
		status:  status,
	}
}

// FromSettings returns nil with config.ErrNotConfigured unless
// STATUS_ENABLED is set.
func FromSettings(s *config.Settings, status StatusFunc, gatherer prometheus.Gatherer, logger *zap.Logger) (*StatusServer, error) {
	if !s.Bool("STATUS_ENABLED") {
		return nil, config.NotConfigured("STATUS_ENABLED is off")
	}
	return NewStatusServer(status,
		WithLogger(logger),
		WithGatherer(gatherer),
		WithListen(s.String("STATUS_HOST"), s.IntList("STATUS_PORT")),
	), nil
}

func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.serveStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return middleware.LogWrapper(s.logger)(mux)
}

func (s *StatusServer) serveStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		s.logger.Error("encode status failed", zap.Error(err))
	}
}

// Start binds the first free port of the range and serves in the
// background.
func (s *StatusServer) Start(ctx context.Context) error {
	ln, err := reactor.ListenTCP(ctx, s.ports, s.host)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()

	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *StatusServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return ErrNotStarted
	}
	return srv.Shutdown(ctx)
}
