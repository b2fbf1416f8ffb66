package monitor

import (
	"os"

	"go.uber.org/zap"
)

type options struct {
	logger   *zap.Logger
	sampler  Sampler
	hostname string
	mailer   Mailer
}

var defaultOptions = options{
	logger: zap.NewNop(),
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithSampler replaces the rusage sampler. It also makes the monitor
// usable on platforms without rusage.
func WithSampler(s Sampler) Option {
	return func(opts *options) {
		opts.sampler = s
	}
}

func WithHostname(name string) Option {
	return func(opts *options) {
		opts.hostname = name
	}
}

// WithMailer sends the usage reports. Without one, reports are skipped.
func WithMailer(m Mailer) Option {
	return func(opts *options) {
		opts.mailer = m
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return name
}
