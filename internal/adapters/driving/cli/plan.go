package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var planToday string

var planCmd = &cobra.Command{
	Use:   "plan [question]",
	Short: "Show the query plan for a question",
	Long: `Turns a question into a query plan and prints it as canonical JSON
without running it. Useful for checking how a question will be routed.`,
	Args: exactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planToday, "today", "", "resolve relative dates against this day (YYYY-MM-DD)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(args[0])
	if question == "" {
		return asUsageError(errors.New("question must not be empty"))
	}

	today := time.Now()
	if planToday != "" {
		t, err := time.Parse("2006-01-02", planToday)
		if err != nil {
			return asUsageError(errors.New("--today must be YYYY-MM-DD"))
		}
		today = t
	}

	if err := initAskServices(cmd.Context()); err != nil {
		return err
	}

	plan, err := planService.Plan(cmd.Context(), question, today, repository())
	if err != nil {
		return err
	}
	return newRenderer(cmd.OutOrStdout()).renderPlan(plan)
}
