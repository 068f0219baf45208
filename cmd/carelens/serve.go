package main

import (
	"CareLens/internal/config"
	"CareLens/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			cfg.ConfigureLogger()
			return server.Run(cfg)
		},
	}
}
