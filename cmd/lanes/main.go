package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/qepting91/reddit-lanes/internal/app"
	"github.com/qepting91/reddit-lanes/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	// 1. Setup
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 2. Commands
	if err := newRoot(&cfg, logger).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRoot(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "lanes",
		Short:        "Reddit lanes dashboard",
		Long:         "Tracks a set of subreddits as lanes, keeps their hot posts fresh and serves a dashboard.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "lane database directory")
	root.PersistentFlags().StringVar(&cfg.CollectorMode, "mode", cfg.CollectorMode, "collector: relay, api or mock")

	root.AddCommand(
		newServeCmd(cfg, logger),
		newAddCmd(cfg, logger),
		newRefreshCmd(cfg, logger),
		newRemoveCmd(cfg, logger),
		newClearCmd(cfg, logger),
		newListCmd(cfg, logger),
		newExportCmd(cfg, logger),
	)
	return root
}

// withApp opens the app, restores saved lanes, runs fn and closes the app.
func withApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(*app.App) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := app.New(*cfg, logger, app.Deps{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Closing app failed", "err", err)
		}
	}()
	a.Restore(ctx)
	return fn(a)
}

// report prints an outcome and turns a failure into an error for the exit code.
func report(cmd *cobra.Command, out app.Outcome) error {
	if !out.Success {
		return errors.New(out.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	return nil
}
