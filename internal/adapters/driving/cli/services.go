package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/ai"
	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/config/file"
	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/storage/memory"
	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/storage/sqlite"
	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/vector/qdrant"
	"github.com/gkabbz/github-delivery-visibility/internal/connectors/github"
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/core/services"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
	"github.com/gkabbz/github-delivery-visibility/internal/retry"
)

// Services used by the commands. They are built on first use from the
// configuration; tests assign them directly.
var (
	appConfig     *file.Config
	configStore   driven.ConfigStore
	askService    driving.AskService
	planService   driving.PlanService
	ingestService driving.IngestService
	pricingTable  domain.PricingTable
	promptStore   *file.PromptStore

	reportService      driving.ReportService
	reviewQueueService driving.ReviewQueueService

	closers []func()
)

// recordBackend is a store the pipeline can both read and write.
type recordBackend interface {
	driven.RecordStore
	driven.RecordWriter
}

// shared resources, opened once per process.
var (
	records      recordBackend
	index        driven.VectorIndex
	githubClient *github.Client
)

// configDirectory returns --config-dir or the default directory.
func configDirectory() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	return file.DefaultDir()
}

// loadConfig reads config.toml and the environment once.
func loadConfig() error {
	if appConfig != nil {
		return nil
	}

	dir, err := configDirectory()
	if err != nil {
		return asUsageError(err)
	}
	if configStore == nil {
		store, err := file.NewConfigStore(dir)
		if err != nil {
			return asUsageError(fmt.Errorf("open config: %w", err))
		}
		configStore = store
	}

	cfg, err := file.Load(configStore, dir)
	if err != nil {
		return err
	}
	appConfig = cfg
	logger.DebugFields("config loaded", logger.Fields{
		"file":   configStore.Path(),
		"llm":    cfg.LLM.Provider,
		"store":  cfg.Store.Driver,
		"vector": cfg.Vector.Provider,
	})
	return nil
}

// loadPricing returns the override table when configured, else the default.
func loadPricing() (domain.PricingTable, error) {
	if pricingTable != nil {
		return pricingTable, nil
	}
	if err := loadConfig(); err != nil {
		return nil, err
	}
	table := file.DefaultPricing()
	if path := appConfig.Pipeline.PricingFile; path != "" {
		loaded, err := file.LoadPricing(path)
		if err != nil {
			return nil, asUsageError(err)
		}
		table = loaded
	}
	pricingTable = table
	return table, nil
}

// retryPolicy builds the provider retry policy from [pipeline].
func retryPolicy(cfg *file.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		BaseDelay:   cfg.Pipeline.BaseDelay,
		MaxDelay:    cfg.Pipeline.MaxDelay,
	}
}

// openRecords opens the configured record store.
func openRecords() (recordBackend, error) {
	if records != nil {
		return records, nil
	}
	var store recordBackend
	switch appConfig.Store.Driver {
	case file.StoreMemory:
		store = memory.NewRecordStore()
	default:
		db, err := sqlite.NewStore(appConfig.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		store = db
	}
	records = store
	closers = append(closers, func() { store.Close() }) //nolint:errcheck
	logger.Debug("record store: %s", appConfig.Store.Driver)
	return records, nil
}

// openIndex connects to the vector index when one is configured.
// It returns a nil interface otherwise.
func openIndex() (driven.VectorIndex, error) {
	if index != nil || appConfig.Vector.Provider == "" {
		return index, nil
	}
	idx, err := qdrant.New(qdrant.Config{
		Host:       appConfig.Vector.Host,
		Port:       appConfig.Vector.Port,
		APIKey:     appConfig.Vector.APIKey,
		UseTLS:     appConfig.Vector.UseTLS,
		Collection: appConfig.Vector.Collection,
		Timeout:    appConfig.Pipeline.CallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	index = idx
	closers = append(closers, func() { idx.Close() }) //nolint:errcheck
	logger.Debug("vector index: qdrant %s:%d", appConfig.Vector.Host, appConfig.Vector.Port)
	return index, nil
}

// openPrompts opens the prompt directory under the config directory.
func openPrompts() (*file.PromptStore, error) {
	if promptStore != nil {
		return promptStore, nil
	}
	dir, err := configDirectory()
	if err != nil {
		return nil, asUsageError(err)
	}
	store, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return nil, err
	}
	promptStore = store
	return store, nil
}

// initAskServices builds planner, router, synthesizer and orchestrator.
func initAskServices(ctx context.Context) error {
	if askService != nil && planService != nil {
		return nil
	}
	if err := loadConfig(); err != nil {
		return err
	}

	aiServices, err := ai.Init(ctx, appConfig.LLMSettings(), appConfig.EmbeddingSettings(), false)
	if err != nil {
		return asUsageError(err)
	}
	closers = append(closers, aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	pricing, err := loadPricing()
	if err != nil {
		return err
	}
	policy := retryPolicy(appConfig)
	lmConfig := services.DefaultLanguageModelConfig()
	lmConfig.Retry = policy
	if appConfig.Pipeline.CallTimeout > 0 {
		lmConfig.CallTimeout = appConfig.Pipeline.CallTimeout
	}
	if appConfig.Pipeline.RequestsPerSecond > 0 {
		lmConfig.RequestsPerSecond = appConfig.Pipeline.RequestsPerSecond
		lmConfig.Burst = appConfig.Pipeline.Burst
	}
	lm, err := services.NewLanguageModelClient(aiServices.LLMService, pricing, lmConfig)
	if err != nil {
		return asUsageError(err)
	}

	prompts, err := openPrompts()
	if err != nil {
		return err
	}
	store, err := openRecords()
	if err != nil {
		return err
	}
	idx, err := openIndex()
	if err != nil {
		return err
	}

	var embedder *services.Embedder
	if aiServices.EmbeddingService != nil {
		embedder = services.NewEmbedder(aiServices.EmbeddingService, policy, appConfig.Pipeline.CallTimeout)
	}

	planner, err := services.NewQueryPlanner(lm, prompts)
	if err != nil {
		return err
	}
	synthesizer, err := services.NewAnswerSynthesizer(lm, prompts)
	if err != nil {
		return err
	}
	router := services.NewRetrievalRouter(store, idx, embedder)

	planService = planner
	askService = services.NewOrchestrator(planner, router, synthesizer)
	return nil
}

// initIngestService builds the GitHub source and the ingest service.
// No language model is needed; embeddings are optional.
func initIngestService(ctx context.Context) error {
	if ingestService != nil {
		return nil
	}
	if err := loadConfig(); err != nil {
		return err
	}

	client, err := openGitHub(ctx)
	if err != nil {
		return err
	}

	store, err := openRecords()
	if err != nil {
		return err
	}
	idx, err := openIndex()
	if err != nil {
		return err
	}

	var embedder *services.Embedder
	embedSvc, err := ai.CreateEmbeddingService(ctx, appConfig.EmbeddingSettings())
	switch {
	case err != nil:
		logger.Warn("embeddings disabled: %v", err)
	case embedSvc == nil:
		logger.Warn("no embedding provider configured, storing metadata only")
	default:
		closers = append(closers, func() { embedSvc.Close() }) //nolint:errcheck
		embedder = services.NewEmbedder(embedSvc, retryPolicy(appConfig), appConfig.Pipeline.CallTimeout)
	}

	ingestService = services.NewIngestService(github.NewSource(client), store, idx, embedder)
	return nil
}

// openGitHub creates the GitHub client once and checks the token when
// one is configured.
func openGitHub(ctx context.Context) (*github.Client, error) {
	if githubClient != nil {
		return githubClient, nil
	}
	client, err := github.NewClient(ctx, github.Config{
		Token:   appConfig.GitHub.Token,
		BaseURL: appConfig.GitHub.BaseURL,
	})
	if err != nil {
		return nil, asUsageError(err)
	}
	if appConfig.GitHub.Token != "" {
		if err := client.ValidateCredentials(ctx); err != nil {
			if github.IsUnauthorized(err) {
				return nil, asUsageError(fmt.Errorf("GitHub rejected the token: %w", err))
			}
			return nil, err
		}
	}
	githubClient = client
	return client, nil
}

// initReportService builds the digest and analysis service over the store.
func initReportService() error {
	if reportService != nil {
		return nil
	}
	if err := loadConfig(); err != nil {
		return err
	}
	rules, err := file.LoadThemes(appConfig.Report.ThemesFile)
	if err != nil {
		return asUsageError(err)
	}
	store, err := openRecords()
	if err != nil {
		return err
	}
	reportService = services.NewReportService(store, rules)
	return nil
}

// initReviewQueueService builds the live review queue service.
func initReviewQueueService(ctx context.Context) error {
	if reviewQueueService != nil {
		return nil
	}
	if err := loadConfig(); err != nil {
		return err
	}
	client, err := openGitHub(ctx)
	if err != nil {
		return err
	}
	reviewQueueService = services.NewReviewQueueService(github.NewSource(client), appConfig.ReviewRules())
	return nil
}

// closeServices releases everything opened by the init functions.
func closeServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
	records = nil
	index = nil
	githubClient = nil
}
