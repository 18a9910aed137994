package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httptransport "github.com/kestrel-ai/reactor/internal/transport/http"
)

func buildTokenCmd() *cobra.Command {
	var (
		tenantID string
		secret   string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a tenant",
		Long:  `Issue an HS256 bearer token whose subject claim is the given tenant ID, for use against /chat and /stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required and must match the server's server.auth_secret")
			}
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}
			token, err := httptransport.IssueToken(tenantID, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID to embed as the token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret matching server.auth_secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
