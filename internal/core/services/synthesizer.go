package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Synthesis settings.
const (
	SynthesisMaxTokens   = 500
	SynthesisTemperature = 0.3

	// MaxContextRecords caps the records described to the model.
	MaxContextRecords = 10

	// MaxBodyPreview is the number of body characters kept per record.
	MaxBodyPreview = 200
)

// NoResultsAnswer is returned without calling the model when nothing matched.
const NoResultsAnswer = "No PRs found matching your query."

// AnswerSynthesizer writes the final answer from retrieved records.
type AnswerSynthesizer struct {
	lm      *LanguageModelClient
	prompts driven.PromptStore
}

// NewAnswerSynthesizer creates a synthesizer.
func NewAnswerSynthesizer(lm *LanguageModelClient, prompts driven.PromptStore) (*AnswerSynthesizer, error) {
	if lm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if prompts == nil {
		return nil, fmt.Errorf("answer synthesizer: prompt store is required")
	}
	return &AnswerSynthesizer{lm: lm, prompts: prompts}, nil
}

// Synthesize answers question from result. An empty result yields
// NoResultsAnswer with no model call. Failures match domain.ErrSynthesis.
func (s *AnswerSynthesizer) Synthesize(
	ctx context.Context, question string, result domain.RetrievalResult,
) (string, error) {
	logger.Section("Answer Synthesis")

	if result.IsEmpty() {
		logger.Debug("No records, skipping model call")
		return NoResultsAnswer, nil
	}

	system, err := s.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return "", fmt.Errorf("%w: load prompt: %w", domain.ErrSynthesis, err)
	}
	template, err := s.prompts.Load(driven.PromptAnswerSynthesis)
	if err != nil {
		return "", fmt.Errorf("%w: load prompt: %w", domain.ErrSynthesis, err)
	}

	block := BuildContext(result.Records)
	text, _, err := s.lm.Complete(ctx, LanguageModelRequest{
		Operation:   domain.OperationSynthesize,
		System:      system,
		Prompt:      synthesisPrompt(template, question, block),
		MaxTokens:   SynthesisMaxTokens,
		Temperature: SynthesisTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	return strings.TrimSpace(text), nil
}

// BuildContext renders at most MaxContextRecords records as the context
// block given to the model.
func BuildContext(records []domain.ScoredRecord) string {
	if len(records) > MaxContextRecords {
		records = records[:MaxContextRecords]
	}

	summaries := make([]string, 0, len(records))
	for i := range records {
		summaries = append(summaries, describeRecord(&records[i]))
	}
	return strings.Join(summaries, "\n")
}

func describeRecord(r *domain.ScoredRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PR #%d: %s\n", r.Number, r.Title)
	if r.Repository != "" {
		fmt.Fprintf(&b, "  Repository: %s\n", r.Repository)
	}
	fmt.Fprintf(&b, "  Author: %s\n", r.Author)
	fmt.Fprintf(&b, "  State: %s\n", r.State)
	fmt.Fprintf(&b, "  Created: %s\n", r.CreatedAt.Format(domain.DateLayout))
	if r.IsMerged() {
		fmt.Fprintf(&b, "  Merged: %s\n", r.MergedAt.Format(domain.DateLayout))
	}
	fmt.Fprintf(&b, "  Size: %s (+%d/-%d)\n", r.SizeCategory(), r.Additions, r.Deletions)
	if r.Scored {
		fmt.Fprintf(&b, "  Similarity: %.2f\n", r.Similarity)
	}
	if reviewers := r.Reviewers(); len(reviewers) > 0 {
		fmt.Fprintf(&b, "  Reviewers: %s\n", strings.Join(reviewers, ", "))
	}
	if len(r.Labels) > 0 {
		fmt.Fprintf(&b, "  Labels: %s\n", strings.Join(r.Labels, ", "))
	}
	if dirs := r.DirectoryPrefixes(); len(dirs) > 0 {
		fmt.Fprintf(&b, "  Directories: %s\n", strings.Join(dirs, ", "))
	}
	if body := strings.TrimSpace(r.Body); body != "" {
		fmt.Fprintf(&b, "  Description: %s\n", Preview(body, MaxBodyPreview))
	}
	return b.String()
}

// Preview cuts s to at most n characters without splitting a UTF-8
// sequence, appending "..." when anything was removed.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i, count := 0, 0
	for i = range s {
		if count == n {
			break
		}
		count++
	}
	return s[:i] + "..."
}

// synthesisPrompt fills the question and record block into template. A
// template with any other verb or a bare % is left untouched and the two
// sections are appended after it.
func synthesisPrompt(template, question, block string) string {
	if strings.Count(template, "%s") == 2 && !strings.Contains(strings.ReplaceAll(template, "%s", ""), "%") {
		return fmt.Sprintf(template, question, block)
	}
	return template + "\n\nQuestion: " + question + "\n\nRelevant PRs:\n" + block
}
