package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/orderbell/internal/credential"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored staff token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := credential.DeleteToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
