// Package vertex provides an embedding service adapter using Vertex AI
// text embedding models.
package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultLocation   = "us-central1"
	DefaultModel      = "text-embedding-004"
	DefaultDimensions = 768

	// MaxInstances is the per-request instance limit of the predict API.
	MaxInstances = 250

	providerName = "vertex"
)

// Config holds configuration for the Vertex AI embedding service.
type Config struct {
	// Project is the Google Cloud project ID (required).
	Project string

	// Location is the Vertex AI region (default: us-central1).
	Location string

	// Model is the publisher model (default: text-embedding-004).
	Model string

	// Dimensions requests a shorter output vector. Zero keeps the default.
	Dimensions int

	// CredentialsFile points at a service account key. Empty uses
	// application default credentials.
	CredentialsFile string

	// Options are passed to the API client, after the defaults.
	Options []option.ClientOption
}

// EmbeddingService generates embeddings with the Vertex AI predict API.
type EmbeddingService struct {
	svc        *aiplatform.Service
	endpoint   string
	model      string
	dimensions int
	customDims bool
}

// NewEmbeddingService creates a Vertex AI embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("vertex: project is required")
	}
	if cfg.Location == "" {
		cfg.Location = DefaultLocation
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("https://%s-aiplatform.googleapis.com/", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, cfg.Options...)

	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vertex: create client: %w", err)
	}

	dims := DefaultDimensions
	if cfg.Dimensions > 0 {
		dims = cfg.Dimensions
	}
	return &EmbeddingService{
		svc:        svc,
		endpoint:   fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", cfg.Project, cfg.Location, cfg.Model),
		model:      cfg.Model,
		dimensions: dims,
		customDims: cfg.Dimensions > 0,
	}, nil
}

type prediction struct {
	Embeddings struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts, one predict call per MaxInstances inputs.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxInstances {
		end := min(start+MaxInstances, len(texts))
		vecs, err := s.predict(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) predict(ctx context.Context, texts []string) ([][]float32, error) {
	instances := make([]interface{}, len(texts))
	for i, text := range texts {
		instances[i] = map[string]string{"content": text}
	}
	req := &aiplatform.GoogleCloudAiplatformV1PredictRequest{Instances: instances}
	if s.customDims {
		req.Parameters = map[string]int{"outputDimensionality": s.dimensions}
	}

	resp, err := s.svc.Projects.Locations.Publishers.Models.Predict(s.endpoint, req).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Predictions) != len(texts) {
		return nil, fmt.Errorf("vertex: got %d predictions for %d inputs", len(resp.Predictions), len(texts))
	}

	vectors := make([][]float32, len(resp.Predictions))
	for i, raw := range resp.Predictions {
		// Predictions arrive as untyped JSON values.
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("vertex: encode prediction %d: %w", i, err)
		}
		var p prediction
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("vertex: decode prediction %d: %w", i, err)
		}
		if len(p.Embeddings.Values) == 0 {
			return nil, fmt.Errorf("vertex: prediction %d has no embedding", i)
		}
		vectors[i] = p.Embeddings.Values
	}
	return vectors, nil
}

// wrapError turns API errors into provider errors so retries can
// classify them.
func wrapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &domain.ProviderError{Provider: providerName, StatusCode: gerr.Code, Message: gerr.Message}
	}
	return fmt.Errorf("vertex: %w", err)
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short fixed text. Vertex has no cheaper authenticated check.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
