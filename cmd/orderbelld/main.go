package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()
	if err := godotenv.Load(); err != nil {
		zlog.Logger.Debug().Msg("no .env file found, reading from environment")
	}

	var cfgPath string
	root := &cobra.Command{
		Use:           "orderbelld",
		Short:         "Order notification server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config/config.yaml", "path to the server config file")

	root.AddCommand(newServeCmd(&cfgPath), newTokenCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		zlog.Logger.Error().Err(err).Msg("orderbelld failed")
		os.Exit(1)
	}
}
