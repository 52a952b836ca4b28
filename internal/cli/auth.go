package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/minutehq/usagewatch/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Mint and store a service token",
		Long: `Mints a service token signed with the shared deployment secret and
stores it in the CLI config. The secret is prompted for and never written
to disk; the subject names you in alert resolution records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				subject = promptInput("Subject (your name or team): ")
			}
			if subject == "" {
				return fmt.Errorf("subject is required")
			}

			secret := promptPassword("Shared secret: ")
			if secret == "" {
				return fmt.Errorf("secret is required")
			}

			token, err := auth.MintServiceToken(subject, secret, ttl)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}

			expiry := time.Now().Add(ttl).UTC()
			viper.Set("auth.token", token)
			viper.Set("auth.subject", subject)
			viper.Set("auth.expires_at", expiry.Format(time.RFC3339))

			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Printf("Logged in as %s (token valid until %s)\n", subject, expiry.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "caller name recorded on resolved alerts")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored service token",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", "")
			viper.Set("auth.subject", "")
			viper.Set("auth.expires_at", "")

			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}

			fmt.Println("Logged out successfully")
			return nil
		},
	}
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored token's subject and expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("auth.token") == "" {
				fmt.Println("Not authenticated")
				return nil
			}

			fmt.Printf("Subject: %s\n", viper.GetString("auth.subject"))
			if expiresAt := viper.GetString("auth.expires_at"); expiresAt != "" {
				fmt.Printf("Expires: %s\n", expiresAt)
			}
			return nil
		},
	}
}

func promptInput(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(password)
}
