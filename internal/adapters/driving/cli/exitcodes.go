package cli

import (
	"context"
	"errors"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/config/file"
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitGeneral        = 1
	ExitUsage          = 2
	ExitPlanning       = 3
	ExitPlanValidation = 4
	ExitRetrieval      = 5
	ExitSynthesis      = 6
	ExitCancelled      = 130
)

// usageError marks bad invocations and unusable configuration.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// asUsageError wraps err so that it exits with ExitUsage.
func asUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// exitCode maps an error returned by a command to the process exit code.
// Cancellation wins over the stage that happened to observe it.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &usage), errors.Is(err, file.ErrInvalidConfig), errors.Is(err, domain.ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, domain.ErrPlanValidation):
		return ExitPlanValidation
	case errors.Is(err, domain.ErrPlanning):
		return ExitPlanning
	case errors.Is(err, domain.ErrRetrieval):
		return ExitRetrieval
	case errors.Is(err, domain.ErrSynthesis):
		return ExitSynthesis
	default:
		return ExitGeneral
	}
}
