// Package cli implements the github-delivery command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

var (
	verbose   bool
	configDir string
	repoFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "github-delivery",
	Short: "Ask questions about pull request activity",
	Long: `github-delivery answers natural-language questions about a repository's
pull requests, reviews and changed files.

A question is turned into a query plan, the plan runs against the local
store (and the vector index when configured), and the answer is written
from the records found.

Examples:
  github-delivery ingest --repo acme/api
  github-delivery ask "What did alice ship last week?"
  github-delivery ask --verbose "Find PRs about database migrations"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"show the plan, retrieved records and usage")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"configuration directory (default $GHD_HOME or ~/.github-delivery)")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "r", "",
		"owner/repo scope (default github.repository or $GITHUB_REPOSITORY)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return asUsageError(err)
	})
}

// exactArgs is cobra.ExactArgs with usage exit semantics.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return asUsageError(cobra.ExactArgs(n)(cmd, args))
	}
}

// repository resolves the scope: --repo, then configuration.
func repository() string {
	if repoFlag != "" {
		return repoFlag
	}
	if appConfig != nil {
		return appConfig.GitHub.Repository
	}
	return ""
}

// Execute runs the root command and returns the process exit code.
// A .env file in the working directory is loaded first; variables
// already set in the environment win.
func Execute() int {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer closeServices()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	if ctx.Err() != nil && !errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w: %w", context.Canceled, err)
	}

	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	return exitCode(err)
}
