// Package services implements the driving port interfaces.
//
// The question pipeline is split into a QueryPlanner, a RetrievalRouter
// and an AnswerSynthesizer, driven in sequence by the Orchestrator.
// External model calls go through LanguageModelClient and Embedder,
// which apply retries, timeouts and usage accounting.
//
// Services depend only on ports, never on concrete adapters.
package services
