package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names are an error.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptQueryPlanner is the system instruction that turns a question
	// into a JSON query plan. It expects a single %s placeholder for
	// today's date (YYYY-MM-DD).
	PromptQueryPlanner = "query_planner"

	// PromptAnswerSynthesis is the user prompt for answering from retrieved
	// records. It expects %s (question) and %s (context block) placeholders.
	PromptAnswerSynthesis = "answer_synthesis"

	// PromptAnswerSystem is the system instruction for answer synthesis.
	// This prompt has no format placeholders.
	PromptAnswerSystem = "answer_system"
)
