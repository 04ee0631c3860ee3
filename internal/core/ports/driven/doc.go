// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - LLMService: Text completion for planning and answer synthesis
//   - RecordStore: Pull request metadata queries and similarity search
//   - ConfigStore: Application configuration
//   - PromptStore: Editable prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Without it, SEMANTIC and HYBRID plans fail at retrieval.
//   - VectorIndex: External similarity index (Qdrant). Without it, similarity
//     runs inside the RecordStore.
//   - DetailStore: Reviews, files and labels for point lookups.
//   - RecordWriter, PullRequestSource: Only needed for ingestion.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
