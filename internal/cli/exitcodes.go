package cli

import (
	"context"
	"errors"

	"github.com/lherron/usageadm/internal/cli/appctx"
	"github.com/lherron/usageadm/internal/domain"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK          = 0
	exitFailed      = 1
	exitUsage       = 2
	exitNotFound    = 3
	exitDB          = 4
	exitInterrupted = 130
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, appctx.ErrSetup) {
		return exitDB
	}
	return exitFailed
}

// commandError attaches the exit code that matches what went wrong in a
// command's run: not found, interrupted, or a database failure.
func commandError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return withCode(exitNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return withCode(exitInterrupted, err)
	default:
		return withCode(exitDB, err)
	}
}
