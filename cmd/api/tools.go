package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"av-rental/internal/auth"
	"av-rental/internal/model"
	"av-rental/internal/payment"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// archiveCmd prints an archived webhook payload.
func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived webhook payloads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the payload stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			payload, err := newArchiver(cmd.Context(), cfg.S3, logger).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(payload, '\n'))
			return err
		},
	})

	return cmd
}

// tokenCmd signs a session token for local testing. The secret comes from
// JWT_SECRET.
func tokenCmd() *cobra.Command {
	var (
		email string
		admin bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}

			token, err := auth.IssueToken(secret, model.Identity{UserID: args[0], Email: email, IsAdmin: admin}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

// signWebhookCmd signs a webhook body read from a file (or stdin) for the
// mock provider, printing the header to send with it.
func signWebhookCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign-webhook [file]",
		Short: "Sign a mock provider webhook body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				body []byte
				err  error
			)
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}

			if secret == "" {
				secret = os.Getenv("MOCK_WEBHOOK_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or MOCK_WEBHOOK_SECRET is required")
			}

			g := payment.NewMock(payment.MockConfig{WebhookSecret: secret}, zerolog.Nop())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", g.SignatureHeader(), g.Sign(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "mock webhook secret")
	return cmd
}
