package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
)

// Command groups auth helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
	}

	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var (
		secret    string
		userID    string
		email     string
		issuer    string
		audience  string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint an HS256-signed bearer token for dev/local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			claims := jwt.MapClaims{
				"sub":   userID,
				"email": email,
				"iat":   now.Unix(),
				"exp":   now.Add(expiresIn).Unix(),
			}
			if issuer != "" {
				claims["iss"] = issuer
			}
			if audience != "" {
				claims["aud"] = audience
			}

			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared HS256 signing secret (must match the API server's JWT_SECRET)")
	cmd.Flags().StringVar(&userID, "user-id", "", "sub claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&issuer, "issuer", "", "iss claim (optional)")
	cmd.Flags().StringVar(&audience, "audience", "", "aud claim (optional)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")

	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}
