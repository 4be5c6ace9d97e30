package lsp

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by connections and the manager.
var (
	// ErrTimeout indicates no response arrived within the request window.
	ErrTimeout = errors.New("lsp: request timed out")

	// ErrConnectionLost indicates the server stream ended or the process
	// exited while the request was pending.
	ErrConnectionLost = errors.New("lsp: connection lost")

	// ErrNotConnected indicates the connection is not in the Connected state.
	ErrNotConnected = errors.New("lsp: not connected")

	// ErrAlreadyStarted indicates Start was called on a live connection.
	ErrAlreadyStarted = errors.New("lsp: connection already started")

	// ErrNoServer indicates no descriptor is registered for the language.
	ErrNoServer = errors.New("lsp: no server registered for language")
)

// LaunchError reports a failure to spawn or initialize a server process.
// The language's features degrade to unavailable; nothing propagates to the
// editor boundary.
type LaunchError struct {
	Language string
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("lsp: launch %s server: %v", e.Language, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
