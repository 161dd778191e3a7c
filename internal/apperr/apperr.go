// Package apperr defines the error values shared by actions, trackers and
// loaders, and maps them to stable kinds and exit codes.
package apperr

import (
	"context"
	"errors"
)

var (
	// ErrTimedOut is the failure an action reports when its timeout elapses
	// before any terminal signal.
	ErrTimedOut = errors.New("Action timed out")

	// ErrAlreadySettled is returned by a second Complete or Fail on the same action.
	ErrAlreadySettled = errors.New("action already settled")

	ErrUnknownFailure    = errors.New("action failed")
	ErrLoad              = errors.New("load failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidConfig     = errors.New("invalid config")
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrTimedOut):
		return "timeout"

	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"

	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"

	case errors.Is(err, ErrLoad):
		return "load_failed"

	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"

	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// ExitCode maps an error returned by the preload command to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0

	case errors.Is(err, ErrInvalidConfig):
		return 2

	case errors.Is(err, ErrLoad),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrTimedOut):
		return 3

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return 4

	default:
		return 1
	}
}
