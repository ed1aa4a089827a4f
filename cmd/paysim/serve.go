package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"github.com/alovak/paysim/processor"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the payment simulator.

Configuration comes from --config, a .env file and PAYSIM_* variables.

Examples:
  paysim serve
  paysim serve --addr :8080
  PAYSIM_STORE_BACKEND=sqlite PAYSIM_STORE_DSN=paysim.db paysim serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := processor.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			app := processor.NewApp(logger, cfg)
			if err := app.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("signal received", slog.String("addr", app.Addr))
			app.Shutdown()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http_addr)")

	return cmd
}
