// Package domain defines the core types of the question answering pipeline.
//
// This package is the innermost layer of the hexagonal architecture.
// It has NO external dependencies and defines the fundamental types:
//
//   - QueryPlan: structured retrieval intent produced from a question
//   - PullRequest: the record retrieved from the store
//   - RetrievalResult: ordered, optionally scored records
//   - UsageRecord: per-attempt language model accounting
//   - State: the pipeline state machine
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
