package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/awaketai/crawlrt/config"
	"github.com/awaketai/crawlrt/loop"
	"go.uber.org/zap"
)

// Installer builds a reactor. Adapter installers receive the resolved loop,
// legacy installers receive nil.
type Installer func(l loop.Loop, opts ...Option) (Reactor, error)

type installer struct {
	kind    Kind
	install Installer
}

// Lifecycle holds the single installed reactor. The slot is written once;
// later installs are no-ops.
type Lifecycle struct {
	mu         sync.Mutex
	installed  atomic.Bool
	reactor    Reactor
	loops      *loop.Registry
	installers map[string]installer
	opts       []Option
}

// NewLifecycle returns an empty lifecycle resolving adapter loops from
// loops. opts are passed to the installed reactor.
func NewLifecycle(loops *loop.Registry, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		loops:      loops,
		installers: map[string]installer{},
		opts:       opts,
	}
	lc.Register(NameSelect, KindLegacy, func(_ loop.Loop, opts ...Option) (Reactor, error) {
		return NewSelectReactor(opts...), nil
	})
	lc.Register(NameAdapter, KindAdapter, func(l loop.Loop, opts ...Option) (Reactor, error) {
		return NewLoopReactor(l, opts...), nil
	})
	return lc
}

// Register makes a reactor identity installable.
func (lc *Lifecycle) Register(name string, kind Kind, install Installer) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.installers[name] = installer{kind: kind, install: install}
}

func (lc *Lifecycle) lookup(name string) (installer, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	inst, ok := lc.installers[name]
	if !ok {
		return installer{}, &config.Error{Key: "REACTOR", Value: name, Err: ErrUnknownReactor}
	}
	return inst, nil
}

// Install installs the reactor registered as name. For the adapter kind
// the loop of loopKind is resolved first and bound to it. If any reactor
// is already installed the call does nothing.
func (lc *Lifecycle) Install(name, loopKind string) error {
	return lc.InstallWith(name, loopKind)
}

// InstallWith is Install with opts applied to the new reactor after the
// lifecycle's own options. They are ignored when a reactor is already
// installed.
func (lc *Lifecycle) InstallWith(name, loopKind string, opts ...Option) error {
	inst, err := lc.lookup(name)
	if err != nil {
		return err
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.installed.Load() {
		lc.logger().Debug("reactor already installed",
			zap.String("installed", lc.reactor.Name()),
			zap.String("requested", name),
		)
		return nil
	}

	var l loop.Loop
	if inst.kind == KindAdapter {
		if l, err = lc.loops.Resolve(loopKind); err != nil {
			return err
		}
	}
	all := append(append([]Option{}, lc.opts...), opts...)
	r, err := inst.install(l, all...)
	if err != nil {
		return fmt.Errorf("install reactor %s: %w", name, err)
	}
	lc.reactor = r
	lc.installed.Store(true)

	fields := []zap.Field{zap.String("reactor", name), zap.Stringer("kind", inst.kind)}
	if l != nil {
		fields = append(fields, zap.String("loop", l.Kind()))
	}
	buildOptions(all).logger.Info("reactor installed", fields...)
	return nil
}

func (lc *Lifecycle) logger() *zap.Logger {
	return buildOptions(lc.opts).logger
}

// IsInstalled reports whether any reactor has been installed.
func (lc *Lifecycle) IsInstalled() bool {
	return lc.installed.Load()
}

// Installed returns the installed reactor.
func (lc *Lifecycle) Installed() (Reactor, error) {
	if !lc.installed.Load() {
		return nil, ErrNoReactorInstalled
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.reactor, nil
}

// VerifyIdentity fails with a *MismatchError unless the reactor installed
// under expected is the installed one.
func (lc *Lifecycle) VerifyIdentity(expected string) error {
	if _, err := lc.lookup(expected); err != nil {
		return err
	}
	r, err := lc.Installed()
	if err != nil {
		return &MismatchError{Expected: expected, Err: err}
	}
	if r.Name() != expected {
		return &MismatchError{Installed: r.Name(), Expected: expected}
	}
	return nil
}

// VerifyEventLoopIdentity checks the loop kind of the installed adapter
// reactor.
func (lc *Lifecycle) VerifyEventLoopIdentity(expectedKind string) error {
	if !lc.loops.Known(expectedKind) {
		return &config.Error{Key: "EVENT_LOOP", Value: expectedKind, Err: loop.ErrUnknownLoop}
	}
	r, err := lc.Installed()
	if err != nil {
		return &MismatchError{Expected: NameAdapter, Err: err}
	}
	if r.Kind() != KindAdapter {
		return &MismatchError{Installed: r.Name(), Expected: NameAdapter}
	}
	if installed := r.Loop().Kind(); installed != expectedKind {
		return &LoopMismatchError{Installed: installed, Expected: expectedKind}
	}
	return nil
}

// IsAdapterInstalled reports whether the installed reactor is the adapter
// kind.
func (lc *Lifecycle) IsAdapterInstalled() (bool, error) {
	r, err := lc.Installed()
	if err != nil {
		return false, err
	}
	return r.Kind() == KindAdapter, nil
}

// Default is the process-wide lifecycle. Its adapter loops come from
// loop.Default.
var Default = NewLifecycle(loop.Default)

// Install installs a reactor into the process-wide lifecycle.
func Install(name, loopKind string) error {
	return Default.Install(name, loopKind)
}

func InstallWith(name, loopKind string, opts ...Option) error {
	return Default.InstallWith(name, loopKind, opts...)
}

func IsInstalled() bool {
	return Default.IsInstalled()
}

func Installed() (Reactor, error) {
	return Default.Installed()
}

func VerifyIdentity(expected string) error {
	return Default.VerifyIdentity(expected)
}

func VerifyEventLoopIdentity(expectedKind string) error {
	return Default.VerifyEventLoopIdentity(expectedKind)
}

func IsAdapterInstalled() (bool, error) {
	return Default.IsAdapterInstalled()
}
