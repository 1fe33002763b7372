package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osvaldomontes/kitamanager"
	"github.com/osvaldomontes/kitamanager/logging"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	configPath string
	envFile    string
	addr       string
	logLevel   string
	logFormat  string
}

func newServeCommand() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a config file (toml, yaml or json)")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address, overrides addr")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "json or console")
	return cmd
}

func runServe(cmd *cobra.Command, f serveFlags) error {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f.envFile, err)
		}
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = f.addr
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	logger, err := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app := kitamanager.New(cfg.siteConfig(), kitamanager.WithLogger(logger))
	if err := app.Setup(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	return <-errc
}
