package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/retry"
)

// --- Mock implementations ---

const mockModel = "mock-model"

// reply is one scripted LLM response.
type reply struct {
	text          string
	err           error
	input, output int
}

// mockLLMService implements driven.LLMService with scripted replies.
// Calls past the script repeat the last reply.
type mockLLMService struct {
	mu       sync.Mutex
	replies  []reply
	requests []driven.CompletionRequest
}

func (m *mockLLMService) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		return &driven.Completion{Text: "", Model: mockModel}, nil
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &driven.Completion{Text: r.text, InputTokens: r.input, OutputTokens: r.output, Model: mockModel}, nil
}

func (m *mockLLMService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockLLMService) Provider() string             { return "mock" }
func (m *mockLLMService) ModelName() string            { return mockModel }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

// mockPromptStore implements driven.PromptStore from a map.
type mockPromptStore map[string]string

func (m mockPromptStore) Load(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", errors.New("prompt not found")
	}
	return p, nil
}

func (m mockPromptStore) Reload() {}

func testPrompts() mockPromptStore {
	return mockPromptStore{
		driven.PromptQueryPlanner:    "Plan the question as JSON.\nToday's date: %s",
		driven.PromptAnswerSystem:    "Answer questions about pull requests.",
		driven.PromptAnswerSynthesis: "Question: %s\n\nRelevant PRs:\n%s",
	}
}

// mockEmbeddingService implements driven.EmbeddingService.
// Known texts map to fixed vectors; anything else gets fallback.
type mockEmbeddingService struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	errs     []error
	dims     int
	calls    int
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return m.fallback, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return m.dims }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockVectorIndex implements driven.VectorIndex.
type mockVectorIndex struct {
	hits       []driven.VectorHit
	searchErr  error
	lastFilter domain.RecordFilter
	upserts    []domain.RecordKey
}

func (m *mockVectorIndex) Upsert(_ context.Context, pr *domain.PullRequest, _ []float32) error {
	m.upserts = append(m.upserts, pr.Key())
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, filter domain.RecordFilter, k int) ([]driven.VectorHit, error) {
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Close() error { return nil }

// --- Helpers ---

// noSleepPolicy retries without waiting.
func noSleepPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func testPricing() domain.PricingTable {
	return domain.PricingTable{mockModel: {InputPerMTok: 3, OutputPerMTok: 15}}
}

func newTestLanguageModel(t *testing.T, llm driven.LLMService) *LanguageModelClient {
	t.Helper()
	lm, err := NewLanguageModelClient(llm, testPricing(), LanguageModelConfig{
		Retry:       noSleepPolicy(),
		CallTimeout: time.Second,
	})
	require.NoError(t, err)
	return lm
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func merged(s string) *time.Time {
	t := at(s)
	return &t
}
