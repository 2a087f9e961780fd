package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/aivis/pkg/client"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// NewTargetCmd builds the target command group: create, inspect, edit, and
// delete visibility targets.
func NewTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage visibility targets",
	}
	cmd.AddCommand(
		newTargetInitCmd(),
		newTargetGetCmd(),
		newTargetListCmd(),
		newTargetSetKeywordsCmd(),
		newTargetSetPromptsCmd(),
		newTargetDeleteCmd(),
	)
	return cmd
}

func newTargetInitCmd() *cobra.Command {
	var name, websiteURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a target and generate its keywords and prompts",
		Example: `  aivis target init --name "Acme Robotics" --url https://acme.example/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			tgt, err := cliCtx.Client.Targets().Init(cmd.Context(), client.InitRequest{
				BusinessName: name,
				WebsiteURL:   websiteURL,
			})
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return PrintResult(cmd, tgt)
			}
			printTarget(cmd, tgt)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	cmd.Flags().StringVar(&websiteURL, "url", "", "website URL (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newTargetGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <target-id>",
		Short: "Show one target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			tgt, err := cliCtx.Client.Targets().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return PrintResult(cmd, tgt)
			}
			printTarget(cmd, tgt)
			return nil
		},
	}
}

func newTargetListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List targets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			list, err := cliCtx.Client.Targets().List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return PrintResult(cmd, list)
			}
			for _, tgt := range list.Targets {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s %s\n", tgt.ID, tgt.BusinessName, tgt.WebsiteURL)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum targets to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "targets to skip")
	return cmd
}

func newTargetSetKeywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-keywords <target-id> <keyword>...",
		Short: "Replace a target's keywords; prompts are rebuilt from them",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			tgt, err := cliCtx.Client.Targets().UpdateKeywords(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return PrintResult(cmd, tgt)
			}
			printTarget(cmd, tgt)
			return nil
		},
	}
}

func newTargetSetPromptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-prompts <target-id> <prompt>...",
		Short: "Replace a target's prompts",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			tgt, err := cliCtx.Client.Targets().UpdatePrompts(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}

			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return PrintResult(cmd, tgt)
			}
			printTarget(cmd, tgt)
			return nil
		},
	}
}

func newTargetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <target-id>",
		Short: "Delete a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := cliCtx.Client.Targets().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func printTarget(cmd *cobra.Command, tgt *client.Target) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", tgt.ID)
	fmt.Fprintf(out, "Name:     %s\n", tgt.BusinessName)
	fmt.Fprintf(out, "URL:      %s\n", tgt.WebsiteURL)
	fmt.Fprintf(out, "Keywords: %s\n", strings.Join(visibility.KeywordValues(tgt.Keywords), ", "))
	fmt.Fprintln(out, "Prompts:")
	for _, p := range tgt.Prompts {
		fmt.Fprintf(out, "  - %s\n", p.Value)
	}
}
