package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_Capabilities(t *testing.T) {
	tests := []struct {
		provider  AIProvider
		llm       bool
		embedding bool
		apiKey    bool
	}{
		{AIProviderOllama, true, true, false},
		{AIProviderOpenAI, true, true, true},
		{AIProviderAnthropic, true, false, true},
		{AIProviderVertex, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			assert.True(t, tt.provider.IsValid())
			assert.Equal(t, tt.llm, tt.provider.SupportsLLM())
			assert.Equal(t, tt.embedding, tt.provider.SupportsEmbedding())
			assert.Equal(t, tt.apiKey, tt.provider.RequiresAPIKey())
			assert.NotEqual(t, unknownDescription, tt.provider.Description())
		})
	}

	assert.False(t, AIProvider("cohere").IsValid())
	assert.Equal(t, unknownDescription, AIProvider("cohere").Description())
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "sk"}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderVertex}.IsConfigured())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderVertex}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderVertex, Project: "delivery"}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "sk"}.IsConfigured())
}
