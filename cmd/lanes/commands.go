package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/qepting91/reddit-lanes/internal/app"
	"github.com/qepting91/reddit-lanes/internal/config"
	"github.com/qepting91/reddit-lanes/internal/dashboard"
	"github.com/qepting91/reddit-lanes/internal/ingest"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Restore lanes, seed from CSV and serve the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				ctx := cmd.Context()

				// Load Inputs
				added, err := a.SeedFromFile(ctx, cfg.SeedFile)
				if err != nil {
					logger.Warn("Seeding skipped", "file", cfg.SeedFile, "err", err)
				}
				keywords, err := ingest.LoadKeywords(cfg.KeywordsFile)
				if err != nil {
					logger.Warn("No keywords loaded", "file", cfg.KeywordsFile, "err", err)
				}
				logger.Info("Lanes ready", "lanes", a.Stats().Lanes, "seeded", added, "keywords", len(keywords))

				srv := dashboard.NewServer(a, keywords, logger)
				defer srv.Close()

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error { return srv.ListenAndServe(gctx, ":"+cfg.Port) })
				g.Go(func() error { return a.AutoRefresh(gctx) })
				err = g.Wait()
				logger.Info("Shutdown complete")
				return err
			})
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "dashboard port")
	cmd.Flags().BoolVar(&cfg.AutoRefresh, "auto-refresh", cfg.AutoRefresh, "refresh all lanes periodically")
	cmd.Flags().DurationVar(&cfg.RefreshInterval, "interval", cfg.RefreshInterval, "auto-refresh interval")
	return cmd
}

func newAddCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "add <subreddit>...",
		Short: "Add lanes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				var errs []error
				for _, sub := range args {
					if err := report(cmd, a.AddLane(cmd.Context(), sub)); err != nil {
						errs = append(errs, fmt.Errorf("r/%s: %w", sub, err))
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newRefreshCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "refresh [lane-id]",
		Short: "Refresh one lane, or every lane with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give a lane id or --all")
			}
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				if all {
					return report(cmd, a.RefreshAll(cmd.Context()))
				}
				return report(cmd, a.RefreshLane(cmd.Context(), args[0]))
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "refresh every lane")
	return cmd
}

func newRemoveCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <lane-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a lane",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				return report(cmd, a.RemoveLane(cmd.Context(), args[0]))
			})
		},
	}
}

func newClearCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every lane and the saved snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				return report(cmd, a.ClearAll(cmd.Context()))
			})
		},
	}
}

func newListCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved lanes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSUBREDDIT\tPOSTS\tUPDATED\tERROR")
				for _, l := range a.Lanes() {
					fmt.Fprintf(tw, "%s\tr/%s\t%d\t%s\t%s\n",
						l.ID, l.Subreddit, len(l.Posts), l.UpdatedAt.Format("2006-01-02 15:04"), l.Error)
				}
				return tw.Flush()
			})
		},
	}
}

func newExportCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every saved post as NDJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, logger, func(a *app.App) error {
				n, err := a.Export(out)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				logger.Info("Export complete", "file", out, "posts", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "data/current.json", "output file")
	return cmd
}
