package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chat-relay/internal/auth"
)

var tokenName string
var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "mint an identity token for relays started with IDENTITY_SECRET",
	Long: `token prints a signed token that lets a client announce one name, for example

export IDENTITY_SECRET=somesecret
token=$(server token --name alice --ttl 12h)
wscat -c "ws://localhost:5000/ws?token=$token"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load(envFile)

		secret := os.Getenv("IDENTITY_SECRET")
		if secret == "" {
			return errors.New("IDENTITY_SECRET is not set")
		}

		token, err := auth.IssueIdentityToken(secret, tokenName, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name the token grants")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
}
