package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/personafeed/config"
	srv "github.com/mohammad-safakhou/personafeed/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the curation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			deps, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			return srv.Run(cfg, deps)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
