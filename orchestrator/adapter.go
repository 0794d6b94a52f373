// Package orchestrator coordinates session execution: it drives the
// interpreter, allocates resources for managed awaits, dispatches adapters,
// and folds their results back into session context.
package orchestrator

import (
	"fmt"
)

type ErrorKind string

const (
	// ErrInvalidInput marks a request rejected by validation before any
	// side effect.
	ErrInvalidInput ErrorKind = "invalid_input"
	// ErrExecution marks a failure during the adapter's backend call.
	ErrExecution ErrorKind = "execution"
)

// AdapterError is the typed failure every adapter surfaces.
type AdapterError struct {
	Adapter string
	Kind    ErrorKind
	Reason  string
}

func (e AdapterError) Error() string {
	return fmt.Sprintf("%s adapter %s: %s", e.Adapter, e.Kind, e.Reason)
}

func invalidInput(adapter string, format string, args ...any) AdapterError {
	return AdapterError{Adapter: adapter, Kind: ErrInvalidInput, Reason: fmt.Sprintf(format, args...)}
}

func executionFailure(adapter string, err error) AdapterError {
	return AdapterError{Adapter: adapter, Kind: ErrExecution, Reason: err.Error()}
}
