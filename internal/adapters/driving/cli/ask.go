package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question about pull request activity",
	Long: `Plans the question, runs the plan against the stored pull requests and
writes an answer from the records found.

Structured questions (who, when, which files) filter metadata; topical
questions rank by embedding similarity; mixed questions filter first and
rank the survivors.

Use --verbose to see the plan, the retrieved records and the cost of
every model call.`,
	Args: exactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(args[0])
	if question == "" {
		return asUsageError(errors.New("question must not be empty"))
	}
	if err := initAskServices(cmd.Context()); err != nil {
		return err
	}

	answer, err := askService.Ask(cmd.Context(), domain.AskRequest{
		Question:   question,
		Repository: repository(),
	})
	if answer == nil {
		answer = &domain.Answer{Question: question}
	}
	if answer.Plan != nil {
		if canonical, cerr := canonicalPlan(*answer.Plan); cerr == nil {
			logger.DebugFields("plan", logger.Fields{"fingerprint": planFingerprint(canonical)})
		}
	}

	if askJSON {
		if werr := writeAnswerJSON(cmd.OutOrStdout(), answer, err); werr != nil {
			return werr
		}
		return err
	}

	if err != nil {
		// Costs already incurred are still shown.
		if verbose {
			r := newRenderer(cmd.ErrOrStderr())
			r.section("Usage")
			r.renderUsage(answer.Usage)
		}
		return err
	}
	return newRenderer(cmd.OutOrStdout()).renderAnswer(answer, verbose)
}
