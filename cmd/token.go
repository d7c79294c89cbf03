package cmd

import (
	"errors"
	"fmt"
	"time"

	"draw_queue/internal/auth"
	"draw_queue/internal/config"

	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for local testing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		c, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("cannot load a config: %w", err)
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = c.Auth.TokenTTL
		}
		tok, err := auth.NewAuthenticator(c.Auth.AccessSecret).GenerateToken(tokenUser, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user id to put in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
}
