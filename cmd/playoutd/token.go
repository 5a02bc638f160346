package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/playout-core/internal/api"
)

func tokenCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Mint an API access token signed with security.jwt.secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath(), true)
			if err != nil {
				return err
			}
			token, err := api.IssueToken(cfg.Security.JWT, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
