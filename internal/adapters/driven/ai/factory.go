// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/embedding/openai"
	vertexembed "github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/embedding/vertex"
	anthropicllm "github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/llm/ollama"
	openaillm "github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/llm/openai"
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult holds the AI services created for one command run.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string // Non-fatal issues, e.g. embeddings disabled.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates the LLM and embedding services. The LLM is required; a
// missing or unreachable embedding provider only adds a warning, since
// structured questions still work without it. When validate is set,
// each service is pinged.
func Init(ctx context.Context, llm *domain.LLMSettings, embed *domain.EmbeddingSettings, validate bool) (*InitResult, error) {
	result := &InitResult{}

	var (
		llmSvc driven.LLMService
		err    error
	)
	if validate {
		llmSvc, err = CreateAndValidateLLMService(ctx, llm)
	} else {
		llmSvc, err = CreateLLMService(llm)
	}
	if err != nil {
		return nil, err
	}
	if llmSvc == nil {
		return nil, fmt.Errorf("%w: no LLM provider configured", domain.ErrLLMUnavailable)
	}
	result.LLMService = llmSvc

	var embedSvc driven.EmbeddingService
	if validate {
		embedSvc, err = CreateAndValidateEmbeddingService(ctx, embed)
	} else {
		embedSvc, err = CreateEmbeddingService(ctx, embed)
	}
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case embedSvc == nil:
		result.Warnings = append(result.Warnings, "no embedding provider configured, semantic questions are unavailable")
	default:
		result.EmbeddingService = embedSvc
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when no provider is configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w)", domain.ErrEmbeddingUnavailable, settings.Provider, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error when no provider is configured.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w)", domain.ErrLLMUnavailable, settings.Provider, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the embedding service for settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderAnthropic:
		return nil, errors.New("anthropic does not support embeddings, use vertex, openai or ollama")
	case domain.AIProviderOllama, domain.AIProviderOpenAI, domain.AIProviderVertex:
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s embeddings are missing credentials or project", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
	default:
		return vertexembed.NewEmbeddingService(ctx, vertexembed.Config{
			Project:    settings.Project,
			Location:   settings.Location,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
	}
}

// CreateLLMService creates the LLM service for settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.SupportsLLM() {
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s requires an API key", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	default:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	}
}
