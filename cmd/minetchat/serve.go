package main

import (
	"os"

	"github.com/Desarso/minetchat"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the landing page and the relay endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(os.Stderr)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
				gin.SetMode(gin.ReleaseMode)
			}

			app, err := minetchat.NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
