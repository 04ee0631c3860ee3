package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/connectors/github"
)

var (
	reviewUser string
	reviewJSON bool
	reviewSave bool
)

var reviewQueueCmd = &cobra.Command{
	Use:   "review-queue",
	Short: "List open pull requests awaiting your review",
	Long: `Reads open pull requests live from GitHub and lists those where --user
is a requested reviewer, grouped into urgent (a review.urgent_keywords
word in the title), stale (older than review.stale_days) and recent.

Examples:
  github-delivery review-queue --repo acme/api --user alice
  github-delivery review-queue --save`,
	Args: cobra.NoArgs,
	RunE: runReviewQueue,
}

var repoInfoCmd = &cobra.Command{
	Use:   "repo-info",
	Short: "Show repository metadata from GitHub",
	Args:  cobra.NoArgs,
	RunE:  runRepoInfo,
}

func init() {
	reviewQueueCmd.Flags().StringVarP(&reviewUser, "user", "u", "", "reviewer login (default github.username or $GITHUB_USERNAME)")
	reviewQueueCmd.Flags().BoolVar(&reviewJSON, "json", false, "output the queue as JSON")
	reviewQueueCmd.Flags().BoolVar(&reviewSave, "save", false, "also write the markdown under report.output_dir")
	rootCmd.AddCommand(reviewQueueCmd)
	rootCmd.AddCommand(repoInfoCmd)
}

// requireRepository returns the resolved repository or a usage error.
func requireRepository() (string, error) {
	repo := repository()
	if repo == "" {
		return "", asUsageError(errors.New("no repository: pass --repo owner/repo or set GITHUB_REPOSITORY"))
	}
	return repo, nil
}

// hostError turns GitHub failures into actionable messages.
func hostError(repo string, err error) error {
	switch {
	case github.IsNotFound(err):
		return asUsageError(fmt.Errorf("repository %s not found or not visible to the token: %w", repo, err))
	case github.IsRateLimited(err):
		return fmt.Errorf("GitHub quota exhausted, retry later: %w", err)
	default:
		return err
	}
}

func runReviewQueue(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	user := strings.TrimPrefix(strings.TrimSpace(reviewUser), "@")
	if user == "" {
		user = appConfig.GitHub.Username
	}
	if user == "" {
		return asUsageError(errors.New("no reviewer: pass --user or set GITHUB_USERNAME"))
	}
	repo, err := requireRepository()
	if err != nil {
		return err
	}
	if err := initReviewQueueService(cmd.Context()); err != nil {
		return err
	}

	queue, err := reviewQueueService.ReviewQueue(cmd.Context(), repo, user)
	if err != nil {
		return hostError(repo, err)
	}

	write := func(w io.Writer) error { return writeReviewQueueMarkdown(w, queue) }
	if reviewJSON {
		err = writeJSON(cmd.OutOrStdout(), queue)
	} else {
		err = write(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	if reviewSave {
		name := fmt.Sprintf("review-queue-%s-%s.md", user, queue.Generated.Format("2006-01-02"))
		path, err := saveReport(appConfig.Report.OutputDir, queue.Generated, name, write)
		if err != nil {
			return err
		}
		cmd.PrintErrf("Saved %s\n", path)
	}
	return nil
}

func runRepoInfo(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	repo, err := requireRepository()
	if err != nil {
		return err
	}
	if err := initReviewQueueService(cmd.Context()); err != nil {
		return err
	}

	info, err := reviewQueueService.RepositoryInfo(cmd.Context(), repo)
	if err != nil {
		return hostError(repo, err)
	}
	newRenderer(cmd.OutOrStdout()).renderRepositoryInfo(info)
	return nil
}
