package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the interpreter or script is unset or missing.
	// No process was spawned.
	ErrConfiguration = errors.New("engine configuration error")
	// ErrExecution means the engine process ran and exited non-zero.
	ErrExecution = errors.New("engine execution failed")
	// ErrEmptyOutput means the engine exited zero without writing to stdout.
	ErrEmptyOutput = errors.New("engine produced no output")
	// ErrMalformedResponse means stdout violated the response contract.
	ErrMalformedResponse = errors.New("malformed engine response")
	// ErrTimeout means the engine did not exit in time and was killed.
	ErrTimeout = errors.New("engine timed out")
)

// ExecError reports a non-zero engine exit with its captured stderr.
type ExecError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit code %d", ErrExecution, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit code %d: %s", ErrExecution, e.ExitCode, e.Stderr)
}

func (e *ExecError) Unwrap() error { return ErrExecution }
