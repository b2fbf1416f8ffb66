package config

import (
	"errors"
	"fmt"
)

// ErrNotConfigured marks a component that was switched off by its settings
// or by the platform. Callers skip the component instead of failing.
var ErrNotConfigured = errors.New("not configured")

// Error reports a setting whose value cannot be used.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotConfigured wraps ErrNotConfigured with a reason.
func NotConfigured(reason string) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, reason)
}
