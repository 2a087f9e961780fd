package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/aivis/pkg/client"
)

// NewAnalyzeCmd builds the analyze command: run the sampling pipeline for a
// target and print its visibility score.
func NewAnalyzeCmd() *cobra.Command {
	var (
		trialsPerPair int
		async         bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <target-id>",
		Short: "Run a visibility analysis",
		Long:  "Samples assistant responses for every prompt/keyword pair of the target\nand aggregates occurrence, position, and context relevance into a score\nbetween 0 and 100.",
		Args:  cobra.ExactArgs(1),
		Example: `  aivis analyze 6e09cdd8-59c7-4076-9f45-91e11466d2cc
  aivis analyze 6e09cdd8-59c7-4076-9f45-91e11466d2cc --trials 10
  aivis analyze 6e09cdd8-59c7-4076-9f45-91e11466d2cc --async`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			targetID := args[0]

			if async {
				ack, err := cliCtx.Client.Targets().AnalyzeAsync(cmd.Context(), targetID)
				if err != nil {
					return err
				}
				if strings.EqualFold(cliCtx.OutputFormat, "json") {
					return PrintResult(cmd, ack)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "analysis queued for %s\n", ack.TargetID)
				return nil
			}

			var opts *client.AnalyzeOptions
			if trialsPerPair > 0 {
				opts = &client.AnalyzeOptions{TrialsPerPair: trialsPerPair}
			}
			result, err := cliCtx.Client.Targets().Analyze(cmd.Context(), targetID, opts)
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return PrintResult(cmd, result)
			}

			score := result.Score
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Visibility score: %.2f / 100\n", score.VisibilityScore)
			fmt.Fprintf(out, "Checks:           %d\n", score.TotalChecks)
			fmt.Fprintf(out, "Occurrences:      %d (%.0f%%)\n", score.Occurrences, score.OccurrenceRate()*100)
			if score.AveragePosition != nil {
				fmt.Fprintf(out, "Avg position:     %.1f\n", *score.AveragePosition)
			}
			fmt.Fprintf(out, "Avg relevance:    %.2f\n", score.AverageContextRelevance)
			return nil
		},
	}

	cmd.Flags().IntVar(&trialsPerPair, "trials", 0, "trials per prompt/keyword pair (default: server setting)")
	cmd.Flags().BoolVar(&async, "async", false, "queue the analysis instead of waiting for it")
	return cmd
}
