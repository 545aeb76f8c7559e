package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/antonovme52/vaibim-main/internal/auth"
	"github.com/antonovme52/vaibim-main/internal/config"
	"github.com/antonovme52/vaibim-main/pkg/utils"
)

var tokenSecret string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with session tokens",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Verify a session token and print its claims",
	Long: `Verify a session token's signature and expiry with the server secret and
print its claims. The session id is masked.

The secret is taken from --secret, or from SECRET_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			config.LoadEnvFile()
			secret = utils.GetEnvWithDefault("SECRET_KEY", "")
		}
		if secret == "" {
			return errors.New("no secret: pass --secret or set SECRET_KEY")
		}

		claims, err := auth.ParseSessionToken(args[0], secret)
		if err != nil {
			return fmt.Errorf("token rejected: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session:  %s\n", utils.MaskToken(claims.ID))
		fmt.Fprintf(out, "User ID:  %d\n", claims.UserID)
		fmt.Fprintf(out, "Username: %s\n", claims.Username)
		fmt.Fprintf(out, "Issuer:   %s\n", claims.Issuer)
		if claims.IssuedAt != nil {
			fmt.Fprintf(out, "Issued:   %s\n", claims.IssuedAt.Time.Format(time.RFC3339))
		}
		if claims.ExpiresAt != nil {
			fmt.Fprintf(out, "Expires:  %s (in %s)\n",
				claims.ExpiresAt.Time.Format(time.RFC3339),
				time.Until(claims.ExpiresAt.Time).Round(time.Second))
		}
		return nil
	},
}

func init() {
	tokenInspectCmd.Flags().StringVar(&tokenSecret, "secret", "", "Secret the token was signed with")
	tokenCmd.AddCommand(tokenInspectCmd)
	rootCmd.AddCommand(tokenCmd)
}
