package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pinchat/internal/app"
	"github.com/vovakirdan/pinchat/internal/config"
	"github.com/vovakirdan/pinchat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	overrides  config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "pinchat",
		Short:         "PIN room chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml (default ./config.yaml)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	flags := serve.Flags()
	flags.StringVar(&opts.overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&opts.overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&opts.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.overrides.Store.Driver, "store", "", "store driver (sqlite, postgres, memory)")

	root.AddCommand(serve, newAdminCmd(opts), newChatCmd())
	// Running the bare binary serves, like the previous flag-only entrypoint.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(flags)

	return root
}

// loadConfig resolves configuration and the logger that goes with it.
func loadConfig(opts *rootOptions) (*config.Config, *zerolog.Logger, error) {
	bootLogger := log.New("info", "console")
	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.UpdateFrom(opts.overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("path", path).Msg("configuration loaded")
	return &cfg, logger, nil
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting pinchat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
