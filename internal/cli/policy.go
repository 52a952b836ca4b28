package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minutehq/usagewatch/pkg/client"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage notification routing policies",
	}

	cmd.AddCommand(newPolicyListCmd())
	cmd.AddCommand(newPolicySetCmd())

	return cmd
}

func newPolicyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the severity routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			policies, err := apiClient.Policies().List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list policies: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(policies)
			}

			t := NewTable("SEVERITY", "CADENCE", "CHANNELS", "WINDOW", "UPDATED")
			for _, p := range policies {
				window := p.BatchWindow
				if window == "" {
					window = "-"
				}
				channels := strings.Join(p.Channels, ", ")
				if channels == "" {
					channels = "-"
				}
				t.AddRow(
					formatSeverity(p.Severity),
					p.Cadence,
					channels,
					window,
					p.UpdatedAt.Format("2006-01-02 15:04"),
				)
			}
			t.Render()
			return nil
		},
	}
}

func newPolicySetCmd() *cobra.Command {
	var channels []string
	var cadence, window string

	cmd := &cobra.Command{
		Use:   "set <severity>",
		Short: "Replace one severity's routing",
		Long: `Replaces the channel set, cadence and batch window for one severity.
Cadence is immediate, batched or none; batched requires --window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			policy, err := apiClient.Policies().Update(ctx, args[0], client.UpdatePolicyRequest{
				Channels:    channels,
				Cadence:     cadence,
				BatchWindow: window,
			})
			if err != nil {
				return fmt.Errorf("failed to update policy: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(policy)
			}

			fmt.Printf("Policy %s updated: cadence=%s channels=%v", policy.Severity, policy.Cadence, policy.Channels)
			if policy.BatchWindow != "" {
				fmt.Printf(" window=%s", policy.BatchWindow)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&channels, "channels", nil, "delivery channels (email, chat-webhook, generic-webhook)")
	cmd.Flags().StringVar(&cadence, "cadence", "", "immediate, batched or none")
	cmd.Flags().StringVar(&window, "window", "", "batch window duration like 5m or 1h")
	_ = cmd.MarkFlagRequired("cadence")

	return cmd
}
