package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock-finder/internal/auth"
	"stock-finder/internal/config"
	"stock-finder/internal/rbac"
)

func newTokenCmd() *cobra.Command {
	var operatorID, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token for an operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnown(role) {
				return fmt.Errorf("unknown role %q (want one of %v)", role, rbac.All)
			}
			config.LoadDotEnv()
			cfg, err := config.LoadCLI()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := m.Issue(time.Now(), operatorID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "operator id (required)")
	cmd.Flags().StringVar(&role, "role", rbac.RoleOperator, "role to grant")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
