package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
)

var (
	digestPeriod string
	digestDate   string
	digestJSON   bool
	digestSave   bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Summarise merged pull requests by theme",
	Long: `Groups the stored pull requests merged in a period into themes and prints
a markdown digest. Themes come from directory and label rules
(report.themes_file) and fall back to title keywords.

A daily digest covers yesterday by default; a biweekly digest covers the
fourteen days ending today. Run ingest first so the store is current.

Examples:
  github-delivery digest --repo acme/api
  github-delivery digest --period biweekly --save
  github-delivery digest --date 2024-10-16 --json`,
	Args: cobra.NoArgs,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestPeriod, "period", string(domain.PeriodDaily), "daily or biweekly")
	digestCmd.Flags().StringVar(&digestDate, "date", "", "last day covered (YYYY-MM-DD)")
	digestCmd.Flags().BoolVar(&digestJSON, "json", false, "output the digest as JSON")
	digestCmd.Flags().BoolVar(&digestSave, "save", false, "also write the markdown under report.output_dir")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, _ []string) error {
	period := domain.DigestPeriod(digestPeriod)
	if !period.IsValid() {
		return asUsageError(fmt.Errorf("--period must be daily or biweekly, got %q", digestPeriod))
	}
	day, err := parseDay("--date", digestDate)
	if err != nil {
		return err
	}

	if err := initReportService(); err != nil {
		return err
	}
	digest, err := reportService.Digest(cmd.Context(), driving.DigestRequest{
		Repository: repository(),
		Period:     period,
		Day:        day,
	})
	if err != nil {
		return err
	}

	generated := time.Now()
	write := func(w io.Writer) error {
		return writeDigestMarkdown(w, digest, appConfig.Report.MaxPRsPerTheme, generated)
	}
	if digestJSON {
		err = writeJSON(cmd.OutOrStdout(), digest)
	} else {
		err = write(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	if digestSave {
		name := fmt.Sprintf("%s-digest-%s.md", period, digest.To.Format(domain.DateLayout))
		path, err := saveReport(appConfig.Report.OutputDir, digest.To, name, write)
		if err != nil {
			return err
		}
		cmd.PrintErrf("Saved %s\n", path)
	}
	return nil
}

// parseDay parses an optional YYYY-MM-DD flag value.
func parseDay(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, asUsageError(errors.New(flag + " must be YYYY-MM-DD"))
	}
	return t, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
