package loop

import (
	"sync"

	"github.com/awaketai/crawlrt/config"
)

// Factory builds a new loop of one kind. The loop's Kind must return the
// key the factory is registered under.
type Factory func(opts ...Option) Loop

// Registry maps loop kinds to factories and keeps at most one loop bound
// as current.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	current   Loop
	opts      []Option
}

// Default is the process-wide registry.
var Default = NewRegistry()

// NewRegistry returns a registry knowing the built-in kinds. opts are
// passed to every loop it constructs.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories: map[string]Factory{},
		opts:      opts,
	}
	r.Register(KindChan, func(opts ...Option) Loop { return NewChanLoop(opts...) })
	r.Register(KindQueue, func(opts ...Option) Loop { return NewQueueLoop(opts...) })
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Known reports whether kind has a factory.
func (r *Registry) Known(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[kind]
	return ok
}

// Resolve returns the current loop if it satisfies kind, otherwise builds
// one and binds it. An empty kind accepts any open current loop and falls
// back to DefaultKind. A loop displaced by a different kind is only
// unbound; it keeps running for whoever holds it.
func (r *Registry) Resolve(kind string) (Loop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current
	if cur != nil && cur.Closed() {
		cur = nil
	}
	if kind == "" {
		if cur != nil {
			return cur, nil
		}
		kind = DefaultKind
	} else if cur != nil && cur.Kind() == kind {
		return cur, nil
	}

	f, ok := r.factories[kind]
	if !ok {
		return nil, &config.Error{Key: "EVENT_LOOP", Value: kind, Err: ErrUnknownLoop}
	}
	l := f(r.opts...)
	r.current = l

	return l, nil
}

// Current returns the bound loop, or nil.
func (r *Registry) Current() Loop {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Resolve resolves kind against the Default registry.
func Resolve(kind string) (Loop, error) {
	return Default.Resolve(kind)
}

// Current returns the loop bound in the Default registry.
func Current() Loop {
	return Default.Current()
}
