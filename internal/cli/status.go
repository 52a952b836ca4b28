package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and open alert counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			format := getOutputFormat()
			if format != "table" {
				summary := map[string]interface{}{
					"server": viper.GetString("server_url"),
				}
				if health, err := apiClient.Health(ctx); err == nil {
					summary["health"] = health.Status
				}
				if ready, err := apiClient.Ready(ctx); err == nil {
					summary["database"] = ready.Database
				}
				if counts, err := apiClient.Alerts().Counts(ctx); err == nil {
					summary["open_alerts"] = counts
				}
				return printOutput(summary)
			}

			fmt.Println("UsageWatch Status")
			fmt.Println(strings.Repeat("=", 40))

			fmt.Printf("  Server:    %s\n", viper.GetString("server_url"))

			health, err := apiClient.Health(ctx)
			if err != nil {
				fmt.Printf("  Health:    (error: %v)\n", err)
				return nil
			}
			fmt.Printf("  Health:    %s\n", health.Status)

			ready, err := apiClient.Ready(ctx)
			if err != nil {
				fmt.Printf("  Database:  (error: %v)\n", err)
			} else {
				fmt.Printf("  Database:  %s\n", ready.Database)
			}

			counts, err := apiClient.Alerts().Counts(ctx)
			if err != nil {
				fmt.Printf("  Alerts:    (error: %v)\n", err)
			} else {
				open := counts.Critical + counts.High + counts.Medium + counts.Low
				fmt.Printf("  Alerts:    %d open", open)
				if counts.Critical > 0 {
					fmt.Printf(" (%d critical)", counts.Critical)
				}
				fmt.Println()
			}

			return nil
		},
	}
}
