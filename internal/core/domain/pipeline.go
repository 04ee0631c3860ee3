package domain

import "time"

// State is a step of the question answering pipeline.
type State string

// Pipeline states. DONE and FAILED are terminal.
const (
	StatePlanning     State = "PLANNING"
	StateExecuting    State = "EXECUTING"
	StateSynthesizing State = "SYNTHESIZING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// String returns the string representation.
func (s State) String() string {
	return string(s)
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePlanning:
		return next == StateExecuting || next == StateFailed
	case StateExecuting:
		return next == StateSynthesizing || next == StateFailed
	case StateSynthesizing:
		return next == StateDone || next == StateFailed
	default:
		return false
	}
}

// AskRequest is a single question posed to the pipeline.
type AskRequest struct {
	// Question is the natural-language question.
	Question string

	// Repository optionally scopes the question to one owner/repo.
	Repository string

	// Today resolves relative dates such as "last week".
	// The zero value means the current date.
	Today time.Time
}

// Answer is the outcome of one pass through the pipeline.
// On failure it still carries the states visited and the usage incurred.
type Answer struct {
	RequestID string          `json:"request_id"`
	Question  string          `json:"question"`
	Text      string          `json:"answer,omitempty"`
	Plan      *QueryPlan      `json:"plan,omitempty"`
	Result    RetrievalResult `json:"result"`
	States    []State         `json:"states"`
	Usage     []UsageRecord   `json:"usage"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
}

// State returns the last state the request reached.
func (a *Answer) State() State {
	if len(a.States) == 0 {
		return ""
	}
	return a.States[len(a.States)-1]
}

// TotalCost sums the cost of every usage record.
func (a *Answer) TotalCost() float64 {
	return TotalCost(a.Usage)
}
