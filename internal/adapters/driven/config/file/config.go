package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// ErrInvalidConfig is returned when the merged configuration is unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// VectorQdrant selects the Qdrant vector index.
const VectorQdrant = "qdrant"

// Config is the merged runtime configuration. Values come from defaults,
// then config.toml, then the environment.
type Config struct {
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Store     StoreConfig
	Vector    VectorConfig
	Pipeline  PipelineConfig
	GitHub    GitHubConfig
	Report    ReportConfig
	Review    ReviewConfig
}

// LLMConfig is the [llm] section.
type LLMConfig struct {
	Provider string `envconfig:"GHD_LLM_PROVIDER"`
	Model    string `envconfig:"GHD_LLM_MODEL"`
	BaseURL  string `envconfig:"GHD_LLM_BASE_URL"`
	APIKey   string `envconfig:"GHD_LLM_API_KEY"`
}

// EmbeddingConfig is the [embedding] section.
type EmbeddingConfig struct {
	Provider   string `envconfig:"GHD_EMBEDDING_PROVIDER"`
	Model      string `envconfig:"GHD_EMBEDDING_MODEL"`
	BaseURL    string `envconfig:"GHD_EMBEDDING_BASE_URL"`
	APIKey     string `envconfig:"GHD_EMBEDDING_API_KEY"`
	Dimensions int    `envconfig:"GHD_EMBEDDING_DIMENSIONS"`
	Project    string `envconfig:"GHD_EMBEDDING_PROJECT"`
	Location   string `envconfig:"GHD_EMBEDDING_LOCATION"`
}

// StoreConfig is the [store] section.
type StoreConfig struct {
	Driver string `envconfig:"GHD_STORE_DRIVER"`
	Path   string `envconfig:"GHD_STORE_PATH"`
}

// VectorConfig is the [vector] section. An empty provider disables the
// external index and similarity runs inside the record store.
type VectorConfig struct {
	Provider   string `envconfig:"GHD_VECTOR_PROVIDER"`
	Host       string `envconfig:"GHD_VECTOR_HOST"`
	Port       int    `envconfig:"GHD_VECTOR_PORT"`
	APIKey     string `envconfig:"GHD_VECTOR_API_KEY"`
	UseTLS     bool   `envconfig:"GHD_VECTOR_USE_TLS"`
	Collection string `envconfig:"GHD_VECTOR_COLLECTION"`
}

// PipelineConfig is the [pipeline] section.
type PipelineConfig struct {
	PricingFile       string        `envconfig:"GHD_PRICING_FILE"`
	CallTimeout       time.Duration `envconfig:"GHD_CALL_TIMEOUT"`
	MaxAttempts       int           `envconfig:"GHD_MAX_ATTEMPTS"`
	BaseDelay         time.Duration `envconfig:"GHD_RETRY_BASE_DELAY"`
	MaxDelay          time.Duration `envconfig:"GHD_RETRY_MAX_DELAY"`
	RequestsPerSecond float64       `envconfig:"GHD_REQUESTS_PER_SECOND"`
	Burst             int           `envconfig:"GHD_BURST"`
}

// GitHubConfig is the [github] section.
type GitHubConfig struct {
	Token      string `envconfig:"GHD_GITHUB_TOKEN"`
	Repository string `envconfig:"GHD_GITHUB_REPOSITORY"`
	BaseURL    string `envconfig:"GHD_GITHUB_BASE_URL"`

	// Username is the default reviewer of review-queue.
	Username string `envconfig:"GHD_GITHUB_USERNAME"`
}

// ReportConfig is the [report] section.
type ReportConfig struct {
	ThemesFile     string `envconfig:"GHD_THEMES_FILE"`
	MaxPRsPerTheme int    `envconfig:"GHD_MAX_PRS_PER_THEME"`
	OutputDir      string `envconfig:"GHD_REPORT_DIR"`
}

// ReviewConfig is the [review] section.
type ReviewConfig struct {
	StaleDays int `envconfig:"GHD_STALE_DAYS"`

	// UrgentKeywords is a comma-separated list matched against titles.
	UrgentKeywords string `envconfig:"GHD_URGENT_KEYWORDS"`
}

// Default returns the built-in configuration for dir.
func Default(dir string) *Config {
	return &Config{
		// Empty models take each adapter's default.
		LLM: LLMConfig{
			Provider: string(domain.AIProviderAnthropic),
		},
		Embedding: EmbeddingConfig{
			Provider: string(domain.AIProviderVertex),
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			Path:   filepath.Join(dir, "delivery.db"),
		},
		Vector: VectorConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "pull_requests",
		},
		Pipeline: PipelineConfig{
			CallTimeout:       60 * time.Second,
			MaxAttempts:       3,
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Report: ReportConfig{
			MaxPRsPerTheme: domain.DefaultMaxPRsPerTheme,
			OutputDir:      filepath.Join(dir, "reports"),
		},
		Review: ReviewConfig{
			StaleDays:      domain.DefaultStaleDays,
			UrgentKeywords: strings.Join(domain.DefaultUrgentKeywords, ","),
		},
	}
}

// Load merges defaults, the values in store and the environment, then
// validates the result. dir is the configuration directory used for
// default paths.
func Load(store driven.ConfigStore, dir string) (*Config, error) {
	cfg := Default(dir)

	if store != nil {
		if err := applyStore(cfg, store); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	// Environment has the highest priority.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrInvalidConfig, err)
	}
	applyConventionalEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyStore copies every key present in store over the defaults.
func applyStore(cfg *Config, store driven.ConfigStore) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := store.Get(key); ok {
			s, isStr := v.(string)
			if !isStr {
				errs = append(errs, fmt.Errorf("%s must be a string", key))
				return
			}
			*dst = s
		}
	}
	integer := func(key string, dst *int) {
		if _, ok := store.Get(key); ok {
			*dst = store.GetInt(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if _, ok := store.Get(key); ok {
			*dst = store.GetBool(key)
		}
	}
	float := func(key string, dst *float64) {
		v, ok := store.Get(key)
		if !ok {
			return
		}
		switch n := v.(type) {
		case float64:
			*dst = n
		case int64:
			*dst = float64(n)
		case int:
			*dst = float64(n)
		default:
			errs = append(errs, fmt.Errorf("%s must be a number", key))
		}
	}
	duration := func(key string, dst *time.Duration) {
		if _, ok := store.Get(key); !ok {
			return
		}
		d, err := time.ParseDuration(store.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("llm.provider", &cfg.LLM.Provider)
	str("llm.model", &cfg.LLM.Model)
	str("llm.base_url", &cfg.LLM.BaseURL)
	str("llm.api_key", &cfg.LLM.APIKey)

	str("embedding.provider", &cfg.Embedding.Provider)
	str("embedding.model", &cfg.Embedding.Model)
	str("embedding.base_url", &cfg.Embedding.BaseURL)
	str("embedding.api_key", &cfg.Embedding.APIKey)
	integer("embedding.dimensions", &cfg.Embedding.Dimensions)
	str("embedding.project", &cfg.Embedding.Project)
	str("embedding.location", &cfg.Embedding.Location)

	str("store.driver", &cfg.Store.Driver)
	str("store.path", &cfg.Store.Path)

	str("vector.provider", &cfg.Vector.Provider)
	str("vector.host", &cfg.Vector.Host)
	integer("vector.port", &cfg.Vector.Port)
	str("vector.api_key", &cfg.Vector.APIKey)
	boolean("vector.use_tls", &cfg.Vector.UseTLS)
	str("vector.collection", &cfg.Vector.Collection)

	str("pipeline.pricing_file", &cfg.Pipeline.PricingFile)
	duration("pipeline.call_timeout", &cfg.Pipeline.CallTimeout)
	integer("pipeline.max_attempts", &cfg.Pipeline.MaxAttempts)
	duration("pipeline.retry_base_delay", &cfg.Pipeline.BaseDelay)
	duration("pipeline.retry_max_delay", &cfg.Pipeline.MaxDelay)
	float("pipeline.requests_per_second", &cfg.Pipeline.RequestsPerSecond)
	integer("pipeline.burst", &cfg.Pipeline.Burst)

	str("github.token", &cfg.GitHub.Token)
	str("github.repository", &cfg.GitHub.Repository)
	str("github.base_url", &cfg.GitHub.BaseURL)
	str("github.username", &cfg.GitHub.Username)

	str("report.themes_file", &cfg.Report.ThemesFile)
	integer("report.max_prs_per_theme", &cfg.Report.MaxPRsPerTheme)
	str("report.output_dir", &cfg.Report.OutputDir)

	integer("review.stale_days", &cfg.Review.StaleDays)
	str("review.urgent_keywords", &cfg.Review.UrgentKeywords)

	return errors.Join(errs...)
}

// applyConventionalEnv fills credentials from the variables other tools
// already use, when nothing more specific is set.
func applyConventionalEnv(cfg *Config) {
	keyFor := func(provider string) string {
		switch domain.AIProvider(provider) {
		case domain.AIProviderAnthropic:
			return os.Getenv("ANTHROPIC_API_KEY")
		case domain.AIProviderOpenAI:
			return os.Getenv("OPENAI_API_KEY")
		default:
			return ""
		}
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = keyFor(cfg.LLM.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = keyFor(cfg.Embedding.Provider)
	}
	if cfg.Embedding.Project == "" {
		cfg.Embedding.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.GitHub.Repository == "" {
		cfg.GitHub.Repository = os.Getenv("GITHUB_REPOSITORY")
	}
	if cfg.GitHub.Username == "" {
		cfg.GitHub.Username = os.Getenv("GITHUB_USERNAME")
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []string

	if p := domain.AIProvider(c.LLM.Provider); !p.SupportsLLM() {
		errs = append(errs, fmt.Sprintf("llm.provider %q is not one of ollama, openai, anthropic", c.LLM.Provider))
	}
	if c.Embedding.Provider != "" && !domain.AIProvider(c.Embedding.Provider).SupportsEmbedding() {
		errs = append(errs, fmt.Sprintf("embedding.provider %q is not one of vertex, openai, ollama", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, "embedding.dimensions must not be negative")
	}
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, memory", c.Store.Driver))
	}
	switch c.Vector.Provider {
	case "":
	case VectorQdrant:
		if c.Vector.Host == "" || c.Vector.Port < 1 || c.Vector.Port > 65535 {
			errs = append(errs, "vector.host and vector.port must address a qdrant server")
		}
		if c.Vector.Collection == "" {
			errs = append(errs, "vector.collection is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("vector.provider %q is not supported", c.Vector.Provider))
	}
	if c.Pipeline.CallTimeout <= 0 {
		errs = append(errs, "pipeline.call_timeout must be positive")
	}
	if c.Pipeline.MaxAttempts < 1 {
		errs = append(errs, "pipeline.max_attempts must be at least 1")
	}
	if c.Pipeline.BaseDelay < 0 || c.Pipeline.MaxDelay < c.Pipeline.BaseDelay {
		errs = append(errs, "pipeline retry delays must satisfy 0 <= base <= max")
	}
	if c.Pipeline.RequestsPerSecond <= 0 || c.Pipeline.Burst < 1 {
		errs = append(errs, "pipeline.requests_per_second and pipeline.burst must be positive")
	}
	if r := c.GitHub.Repository; r != "" && strings.Count(r, "/") != 1 {
		errs = append(errs, fmt.Sprintf("github.repository %q must be owner/repo", r))
	}
	if c.Report.MaxPRsPerTheme < 1 {
		errs = append(errs, "report.max_prs_per_theme must be at least 1")
	}
	if c.Report.OutputDir == "" {
		errs = append(errs, "report.output_dir is required")
	}
	if c.Review.StaleDays < 1 {
		errs = append(errs, "review.stale_days must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// LLMSettings returns the LLM provider settings.
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider: domain.AIProvider(c.LLM.Provider),
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
		APIKey:   c.LLM.APIKey,
	}
}

// EmbeddingSettings returns the embedding provider settings.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider:   domain.AIProvider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		BaseURL:    c.Embedding.BaseURL,
		APIKey:     c.Embedding.APIKey,
		Dimensions: c.Embedding.Dimensions,
		Project:    c.Embedding.Project,
		Location:   c.Embedding.Location,
	}
}

// ReviewRules returns the review queue rules.
func (c *Config) ReviewRules() domain.ReviewQueueRules {
	var keywords []string
	for _, kw := range strings.Split(c.Review.UrgentKeywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return domain.ReviewQueueRules{StaleDays: c.Review.StaleDays, UrgentKeywords: keywords}
}

// Entries returns the effective configuration as sorted key/value pairs
// with secrets masked.
func (c *Config) Entries() [][2]string {
	m := map[string]string{
		"llm.provider":                 c.LLM.Provider,
		"llm.model":                    c.LLM.Model,
		"llm.base_url":                 c.LLM.BaseURL,
		"llm.api_key":                  mask(c.LLM.APIKey),
		"embedding.provider":           c.Embedding.Provider,
		"embedding.model":              c.Embedding.Model,
		"embedding.base_url":           c.Embedding.BaseURL,
		"embedding.api_key":            mask(c.Embedding.APIKey),
		"embedding.dimensions":         fmt.Sprint(c.Embedding.Dimensions),
		"embedding.project":            c.Embedding.Project,
		"embedding.location":           c.Embedding.Location,
		"store.driver":                 c.Store.Driver,
		"store.path":                   c.Store.Path,
		"vector.provider":              c.Vector.Provider,
		"vector.host":                  c.Vector.Host,
		"vector.port":                  fmt.Sprint(c.Vector.Port),
		"vector.api_key":               mask(c.Vector.APIKey),
		"vector.use_tls":               fmt.Sprint(c.Vector.UseTLS),
		"vector.collection":            c.Vector.Collection,
		"pipeline.pricing_file":        c.Pipeline.PricingFile,
		"pipeline.call_timeout":        c.Pipeline.CallTimeout.String(),
		"pipeline.max_attempts":        fmt.Sprint(c.Pipeline.MaxAttempts),
		"pipeline.retry_base_delay":    c.Pipeline.BaseDelay.String(),
		"pipeline.retry_max_delay":     c.Pipeline.MaxDelay.String(),
		"pipeline.requests_per_second": fmt.Sprint(c.Pipeline.RequestsPerSecond),
		"pipeline.burst":               fmt.Sprint(c.Pipeline.Burst),
		"github.token":                 mask(c.GitHub.Token),
		"github.repository":            c.GitHub.Repository,
		"github.base_url":              c.GitHub.BaseURL,
		"github.username":              c.GitHub.Username,
		"report.themes_file":           c.Report.ThemesFile,
		"report.max_prs_per_theme":     fmt.Sprint(c.Report.MaxPRsPerTheme),
		"report.output_dir":            c.Report.OutputDir,
		"review.stale_days":            fmt.Sprint(c.Review.StaleDays),
		"review.urgent_keywords":       c.Review.UrgentKeywords,
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k, m[k]}
	}
	return out
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
