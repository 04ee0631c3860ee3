package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/connectors/github"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

var (
	ingestSince          string
	ingestLimit          int
	ingestSkipEmbeddings bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch pull requests from GitHub into the store",
	Long: `Fetches pull requests with their reviews, changed files and labels from
GitHub, embeds each title and body, and upserts them into the store (and
the vector index when one is configured). Re-running replaces stored
pull requests with their current state.

Examples:
  github-delivery ingest --repo acme/api
  github-delivery ingest --repo acme/api --since 2024-09-01 --limit 500`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSince, "since", "", "only pull requests updated on or after this day (YYYY-MM-DD)")
	ingestCmd.Flags().IntVarP(&ingestLimit, "limit", "n", 0, "maximum number of pull requests (0 = all)")
	ingestCmd.Flags().BoolVar(&ingestSkipEmbeddings, "skip-embeddings", false, "store metadata only")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	var since time.Time
	if ingestSince != "" {
		t, err := time.Parse("2006-01-02", ingestSince)
		if err != nil {
			return asUsageError(errors.New("--since must be YYYY-MM-DD"))
		}
		since = t
	}
	if ingestLimit < 0 {
		return asUsageError(errors.New("--limit must not be negative"))
	}

	if err := initIngestService(cmd.Context()); err != nil {
		return err
	}
	repo, err := requireRepository()
	if err != nil {
		return err
	}

	report, err := ingestService.Ingest(cmd.Context(), driving.IngestOptions{
		Repository:     repo,
		Since:          since,
		Limit:          ingestLimit,
		SkipEmbeddings: ingestSkipEmbeddings,
	})
	switch {
	case github.IsNotFound(err):
		return asUsageError(fmt.Errorf("repository %s not found or not visible to the token: %w", repo, err))
	case github.IsRateLimited(err):
		return fmt.Errorf("GitHub quota exhausted, retry later or narrow --since: %w", err)
	case err != nil:
		return err
	}

	cmd.Printf("Ingested %s: %d fetched, %d stored, %d embedded, %d failed in %s\n",
		report.Repository, report.Fetched, report.Stored, report.Embedded, report.Failed,
		report.Elapsed.Round(time.Millisecond))

	if githubClient != nil {
		quota := githubClient.RateLimiter()
		logger.Info("GitHub quota: %d/%d remaining, resets at %s",
			quota.Remaining(), quota.Limit(), quota.ResetTime().Local().Format(time.Kitchen))
	}
	return nil
}
