package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Missing or unreadable files fall back to the embedded defaults.
//
// Initialisation is lazy: the directory and default files are only
// written on the first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptQueryPlanner: `You are a query planning assistant for a database of GitHub pull requests.

Convert the user's question into a query plan. Output ONLY one JSON object with these keys:
{
    "query_type": "structured" | "semantic" | "hybrid",
    "author": "github_username" or null,
    "reviewer": "github_username" or null,
    "start_date": "YYYY-MM-DD" or null,
    "end_date": "YYYY-MM-DD" or null,
    "file_path": "path/to/file.go" or null,
    "directory_prefix": "path/to/dir/" or null,
    "semantic_query": "descriptive text" or null,
    "record_identifier": 123 or null,
    "repo_name": "owner/repo" or null,
    "limit": 10 or null
}

Query types:
- "structured": filter by metadata only (author, reviewer, dates, file, directory)
- "semantic": search by concept or meaning, e.g. "authentication changes"
- "hybrid": metadata filters combined with a concept search

Rules:
- Dates filter on the merge date. Resolve relative dates ("last week", "in October") against today's date.
- Set record_identifier only when the question names a specific pull request number.
- Leave limit null unless the user asks for a specific number ("top 5", "last 3").
- Never add keys that are not listed above.

Examples:
Q: "What did alice ship last week?"
A: {"query_type": "structured", "author": "alice", "start_date": "2024-10-15", "end_date": "2024-10-22"}

Q: "Find PRs about database migrations"
A: {"query_type": "semantic", "semantic_query": "database migrations"}

Q: "What authentication changes did bob make?"
A: {"query_type": "hybrid", "author": "bob", "semantic_query": "authentication"}

Q: "Who reviewed PR 4521?"
A: {"query_type": "structured", "record_identifier": 4521}

Today's date: %s

Output ONLY the JSON, no other text.`,

	driven.PromptAnswerSystem: `You are a helpful assistant that answers questions about GitHub pull requests.

Given the user's question and a list of relevant pull requests, provide a concise natural language answer.

Guidelines:
- Be specific and cite PR numbers
- Use only the pull requests provided; do not invent any
- If asked about time ranges, mention dates
- Keep the answer concise (2-4 sentences)`,

	driven.PromptAnswerSynthesis: `Question: %s

Relevant PRs:
%s

Provide a concise answer to the question based on these PRs.`,
}

// DefaultPrompt returns the embedded default for name.
func DefaultPrompt(name string) (string, bool) {
	p, ok := defaultPrompts[name]
	return p, ok
}

// PromptNames returns the names of all known prompts, sorted.
func PromptNames() []string {
	names := make([]string, 0, len(defaultPrompts))
	for name := range defaultPrompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.github-delivery/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// A cached value wins; otherwise the file is read, falling back to
// the embedded default. Unknown names are an error.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	fallback, known := defaultPrompts[name]
	if !known {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	if s.initErr != nil {
		return fallback, nil
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// No lock held during I/O.
	prompt, err := s.loadFromFile(name)
	if err != nil || prompt == "" {
		prompt = fallback
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Existing files are the user's and are never overwritten.
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# Prompts

Prompts used when answering questions about pull requests.

## Files

- ` + "`query_planner.txt`" + ` - Turns a question into a JSON query plan
- ` + "`answer_system.txt`" + ` - System instruction for writing answers
- ` + "`answer_synthesis.txt`" + ` - Question and retrieved pull requests

## Placeholders

- ` + "`query_planner.txt`" + ` takes one ` + "`%s`" + ` for today's date (YYYY-MM-DD).
  Without it the date is appended at the end.
- ` + "`answer_synthesis.txt`" + ` takes two ` + "`%s`" + `: the question, then the PR list.

Keep the JSON keys in the planner prompt unchanged: plans with unknown
keys are rejected. Edits apply to the next command; a running
` + "`mcp serve`" + ` picks them up automatically.
`
	return os.WriteFile(path, []byte(content), 0600)
}
