package domain

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the parent kind for every error caused by how the plugin tree was assembled.
var ErrConfiguration = errors.New("configuration error")

// ErrUnknownStage is returned when a stage identifier is not part of a registry's fixed set.
var ErrUnknownStage = fmt.Errorf("%w: unknown stage", ErrConfiguration)

// ErrPluginConflict is returned when a plugin name is already installed on a node.
var ErrPluginConflict = fmt.Errorf("%w: plugin already installed", ErrConfiguration)

// ErrPluginNotFound is returned when removing a plugin name that is not installed.
var ErrPluginNotFound = errors.New("plugin not found")

// ErrAmbiguousDispatch is returned when more than one platform claims the same turn.
var ErrAmbiguousDispatch = errors.New("ambiguous platform dispatch")

// ErrUnclaimed is returned when no installed platform claims a turn.
var ErrUnclaimed = fmt.Errorf("%w: no platform claimed the request", ErrAmbiguousDispatch)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUserNotFound is returned when a user ID cannot be found in the store.
var ErrUserNotFound = errors.New("user not found")

// StageError wraps an error raised by a handler during the dispatch of a stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError is produced when a handler panics; the engine recovers and treats it as a handler error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsAmbiguous reports whether err is a dispatch-ambiguity error (zero or several claims).
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguousDispatch)
}
