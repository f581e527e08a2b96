package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/orderbell/internal/model"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "orderbell",
		Short:         "Live order notifications for store staff",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", model.DefaultConfigPath(), "path to the client config file")

	root.AddCommand(newLoginCmd(&cfgPath), newLogoutCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "orderbell:", err)
		os.Exit(1)
	}
}
