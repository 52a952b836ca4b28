package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/minutehq/usagewatch/pkg/client"
)

func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Inspect and resolve alerts",
	}

	cmd.AddCommand(newAlertListCmd())
	cmd.AddCommand(newAlertActiveCmd())
	cmd.AddCommand(newAlertCountsCmd())
	cmd.AddCommand(newAlertGetCmd())
	cmd.AddCommand(newAlertResolveCmd())

	return cmd
}

func newAlertListCmd() *cobra.Command {
	var orgID, alertType, severity, resolved string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts newest-first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			opts := &client.AlertListOptions{
				OrganizationID: orgID,
				Type:           alertType,
				Severity:       severity,
				Limit:          limit,
				Offset:         offset,
			}
			if resolved != "" {
				val, err := strconv.ParseBool(resolved)
				if err != nil {
					return fmt.Errorf("--resolved must be true or false")
				}
				opts.Resolved = &val
			}

			page, err := apiClient.Alerts().List(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(page)
			}

			t := NewTable("ID", "ORGANIZATION", "TYPE", "SEVERITY", "STATE", "TITLE")
			for _, a := range page.Items {
				t.AddRow(
					a.ID,
					a.OrganizationID,
					a.Type,
					formatSeverity(a.Severity),
					formatResolved(a.Resolved),
					truncate(a.Title, 50),
				)
			}
			t.Render()
			fmt.Printf("\nShowing %d of %d alerts\n", len(page.Items), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "filter by organization")
	cmd.Flags().StringVar(&alertType, "type", "", "filter by anomaly type")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity")
	cmd.Flags().StringVar(&resolved, "resolved", "", "filter by resolution state (true/false)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")

	return cmd
}

func newAlertActiveCmd() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "active",
		Short: "List unresolved alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alerts, err := apiClient.Alerts().Active(ctx, orgID)
			if err != nil {
				return fmt.Errorf("failed to list active alerts: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(alerts)
			}

			t := NewTable("ID", "ORGANIZATION", "TYPE", "SEVERITY", "CREATED", "TITLE")
			for _, a := range alerts {
				t.AddRow(
					a.ID,
					a.OrganizationID,
					a.Type,
					formatSeverity(a.Severity),
					a.CreatedAt.Format("2006-01-02 15:04"),
					truncate(a.Title, 50),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "filter by organization")

	return cmd
}

func newAlertCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show unresolved alert counts by severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			counts, err := apiClient.Alerts().Counts(ctx)
			if err != nil {
				return fmt.Errorf("failed to count alerts: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(counts)
			}

			t := NewTable("SEVERITY", "OPEN")
			t.AddRow(formatSeverity("critical"), strconv.Itoa(counts.Critical))
			t.AddRow(formatSeverity("high"), strconv.Itoa(counts.High))
			t.AddRow(formatSeverity("medium"), strconv.Itoa(counts.Medium))
			t.AddRow(formatSeverity("low"), strconv.Itoa(counts.Low))
			t.Render()
			return nil
		},
	}
}

func newAlertGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get alert details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alert, err := apiClient.Alerts().Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get alert: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(alert)
			}

			fmt.Printf("ID:           %s\n", alert.ID)
			fmt.Printf("Organization: %s\n", alert.OrganizationID)
			fmt.Printf("Type:         %s\n", alert.Type)
			fmt.Printf("Severity:     %s\n", formatSeverity(alert.Severity))
			fmt.Printf("State:        %s\n", formatResolved(alert.Resolved))
			fmt.Printf("Title:        %s\n", alert.Title)
			fmt.Printf("Description:  %s\n", alert.Description)
			fmt.Printf("Created:      %s\n", alert.CreatedAt.Format("2006-01-02 15:04:05"))
			if alert.ResolvedAt != nil {
				fmt.Printf("Resolved:     %s by %s\n", alert.ResolvedAt.Format("2006-01-02 15:04:05"), alert.ResolvedBy)
			}
			if len(alert.NotificationsSent) > 0 {
				fmt.Printf("Notified via: %v\n", alert.NotificationsSent)
			}
			return nil
		},
	}
}

func newAlertResolveCmd() *cobra.Command {
	var resolvedBy string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := apiClient.Alerts().Resolve(ctx, args[0], resolvedBy); err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}

			fmt.Printf("Alert %s resolved\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&resolvedBy, "by", "", "resolver name (defaults to the token subject)")

	return cmd
}
