package reactor

import (
	"errors"
	"fmt"
)

var (
	ErrNoReactorInstalled = errors.New("reactor: no reactor installed")
	ErrUnknownReactor     = errors.New("reactor: unknown reactor")
	ErrReactorStopped     = errors.New("reactor: stopped")
	ErrInvalidPortRange   = errors.New("reactor: invalid port range")
)

// MismatchError reports that the installed reactor is not the expected one,
// or that none is installed (Err is then ErrNoReactorInstalled).
type MismatchError struct {
	Installed string
	Expected  string
	Err       error
}

func (e *MismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reactor: cannot verify %s: %v", e.Expected, e.Err)
	}
	return fmt.Sprintf("reactor: the installed reactor (%s) does not match the requested one (%s)",
		e.Installed, e.Expected)
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

// LoopMismatchError reports that the installed adapter reactor runs on a
// different loop kind than requested.
type LoopMismatchError struct {
	Installed string
	Expected  string
}

func (e *LoopMismatchError) Error() string {
	return fmt.Sprintf("reactor: found an adapter reactor already installed, and its event loop (%s) "+
		"does not match the one specified in EVENT_LOOP (%s)", e.Installed, e.Expected)
}

// BindError is returned by ListenTCP when no port of the range could be
// bound. Err is the failure of the last port attempted.
type BindError struct {
	Host string
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("reactor: cannot listen on %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
