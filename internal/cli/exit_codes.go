package cli

import (
	"errors"
	"fmt"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/shell/compose"
	"github.com/artpar/dcg/internal/shell/docker"
)

// Exit codes for the dcg CLI
const (
	// ExitSuccess indicates successful command execution
	ExitSuccess = 0

	// ExitFailure indicates an operation failed
	ExitFailure = 1

	// ExitInvalidArguments indicates invalid command arguments or flags
	ExitInvalidArguments = 2

	// ExitConfigError indicates the configuration could not be loaded
	ExitConfigError = 3

	// ExitDockerUnavailable indicates the Docker daemon or binary is unreachable
	ExitDockerUnavailable = 4
)

// ExitError carries an exit code. Message, when set, is printed instead of
// the wrapped error; a Silent error prints nothing.
type ExitError struct {
	Code    int
	Message string
	Silent  bool
	Err     error
}

// NewExitError returns a silent error with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code, Silent: true}
}

func (e *ExitError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("exit status %d", e.Code)
	}
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitInvalidArguments, Err: err}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case docker.IsUnavailable(err), errors.Is(err, compose.ErrBinaryNotFound):
		return ExitDockerUnavailable
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrConflictingFlags):
		return ExitInvalidArguments
	default:
		return ExitFailure
	}
}
