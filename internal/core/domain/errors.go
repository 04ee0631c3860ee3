package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the language model provider is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured or unreachable.
	// Semantic and hybrid plans cannot run without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the external vector index could not be reached.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrUnknownModel indicates a model identifier has no entry in the pricing table.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDimensionMismatch indicates an embedding has a different length than expected.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Pipeline stage errors. Every failure surfaced by the orchestrator
// matches exactly one of these through errors.Is.
var (
	// ErrPlanning indicates the language model call made while planning failed irrecoverably.
	ErrPlanning = errors.New("planning failed")

	// ErrPlanValidation indicates the planner response could not be turned into a valid plan.
	ErrPlanValidation = errors.New("plan validation failed")

	// ErrRetrieval indicates the store or embedding call failed while executing a plan.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrSynthesis indicates the language model call made while answering failed.
	ErrSynthesis = errors.New("synthesis failed")
)

// StageError ties a failure to the pipeline stage that produced it.
type StageError struct {
	Stage State
	Kind  error
	Err   error
}

// NewStageError wraps err with the stage it happened in and its category sentinel.
func NewStageError(stage State, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *StageError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	case errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
	}
}

// Unwrap exposes both the category sentinel and the underlying cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PlanValidationError builds a plan validation failure with a formatted reason.
func PlanValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPlanValidation, fmt.Sprintf(format, args...))
}

// ProviderError is returned by language model and embedding adapters when the
// remote service answers with a non-success status.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string

	// InputTokens and OutputTokens are set when the provider reported usage
	// alongside the failure.
	InputTokens  int
	OutputTokens int
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether the failure is worth retrying.
// Rate limits, request timeouts, overload and server errors are temporary;
// authentication and malformed request errors are not.
func (e *ProviderError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == 529, // Anthropic overloaded
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRateLimited reports whether the provider rejected the call for rate limiting.
func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether the provider rejected the credentials.
func (e *ProviderError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
