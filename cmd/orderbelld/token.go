package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/orderbell/internal/auth"
	"github.com/nhle/orderbell/internal/config"
	"github.com/nhle/orderbell/internal/model"
)

func newTokenCmd(cfgPath *string) *cobra.Command {
	var userID, name, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a staff token signed with the server's private key",
		Example: "  orderbelld token --user a1 --role admin\n" +
			"  orderbelld token --user r7 --name Sam --role rider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !model.IsStaff(role) {
				return fmt.Errorf("role must be admin, super-admin or rider, got %q", role)
			}

			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			provider, err := auth.NewProvider(cfg.JWT)
			if err != nil {
				return fmt.Errorf("loading jwt keys: %w", err)
			}

			token, err := provider.Sign(userID, name, role)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "staff user id (rider id for riders)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", model.RoleAdmin, "admin, super-admin or rider")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
