package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
)

var (
	analyzeDays int
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze merge activity over recent days",
	Long: `Summarises the pull requests merged over the last --days days: totals,
themes, the directories that changed most and a few observations about
velocity, team size and focus.

Examples:
  github-delivery analyze --repo acme/api
  github-delivery analyze --days 7 --json`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var debugPRCmd = &cobra.Command{
	Use:   "debug-pr [number]",
	Short: "Show how a stored pull request is themed",
	Long: `Loads one stored pull request with its files and labels and shows which
theme each rule assigns. Useful when tuning report.themes_file.`,
	Args: exactArgs(1),
	RunE: runDebugPR,
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeDays, "days", "d", domain.DefaultAnalysisDays, "number of days to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(debugPRCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if analyzeDays < 1 {
		return asUsageError(errors.New("--days must be at least 1"))
	}
	if err := initReportService(); err != nil {
		return err
	}

	report, err := reportService.Analyze(cmd.Context(), driving.AnalyzeRequest{
		Repository: repository(),
		Days:       analyzeDays,
	})
	if err != nil {
		return err
	}
	if analyzeJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	newRenderer(cmd.OutOrStdout()).renderActivity(report)
	return nil
}

func runDebugPR(cmd *cobra.Command, args []string) error {
	number, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || number < 1 {
		return asUsageError(fmt.Errorf("pull request number must be a positive integer, got %q", args[0]))
	}
	if err := initReportService(); err != nil {
		return err
	}

	explanation, err := reportService.ExplainTheme(cmd.Context(), domain.RecordKey{
		Repository: repository(),
		Number:     number,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("pull request #%d is not in the store, run ingest first: %w", number, err)
	}
	if err != nil {
		return err
	}
	newRenderer(cmd.OutOrStdout()).renderThemeExplanation(explanation)
	return nil
}
