// Package app wires the fetch client, collector, store, persistence and
// orchestrator together and exposes the command surface used by the CLI and
// the dashboard.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/qepting91/reddit-lanes/internal/collector"
	"github.com/qepting91/reddit-lanes/internal/config"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/ingest"
	"github.com/qepting91/reddit-lanes/internal/lanes"
	"github.com/qepting91/reddit-lanes/internal/observable"
	"github.com/qepting91/reddit-lanes/internal/state"
	"github.com/qepting91/reddit-lanes/internal/storage"
)

// Outcome is what every command returns: never an error, always a message
// fit for display.
type Outcome struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Lane    *domain.Lane   `json:"lane,omitempty"`
	Summary *lanes.Summary `json:"summary,omitempty"`
	// Err is the cause of a failed command, for callers that need to branch
	// on it.
	Err error `json:"-"`
}

func failed(err error) Outcome {
	return Outcome{Message: domain.UserMessage(err), Err: err}
}

// Deps overrides the collaborators New would otherwise build from config.
type Deps struct {
	Collector domain.Collector
	KV        storage.KV
	Notifier  lanes.Notifier
}

type App struct {
	cfg     config.Config
	logger  *slog.Logger
	kv      storage.KV
	store   *state.Store
	manager *lanes.Manager
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	coll := deps.Collector
	if coll == nil {
		c, err := collector.NewCollector(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("init collector: %w", err)
		}
		coll = c
	}

	kv := deps.KV
	if kv == nil {
		if cfg.DataDir == "" {
			kv = storage.NewMemoryKV()
		} else {
			p, err := storage.OpenPebble(cfg.DataDir, nil)
			if err != nil {
				return nil, err
			}
			kv = p
		}
	}

	store := state.New(observable.WithErrorHandler(func(err error) {
		logger.Error("Lane listener failed", "err", err)
	}))
	snaps := storage.NewSnapshots(kv, cfg.StorageKey, logger)
	manager := lanes.NewManager(store, coll, snaps, logger, lanes.Options{
		PostLimit:   cfg.PostLimit,
		Concurrency: cfg.RefreshConcurrency,
		Notifier:    deps.Notifier,
	})

	logger.Info("App initialized", "mode", cfg.CollectorMode, "data_dir", cfg.DataDir)
	return &App{cfg: cfg, logger: logger, kv: kv, store: store, manager: manager}, nil
}

func (a *App) Store() *state.Store { return a.store }

func (a *App) Manager() *lanes.Manager { return a.manager }

// Lanes returns the current lanes in insertion order.
func (a *App) Lanes() []domain.Lane { return a.store.All() }

// Restore loads the persisted lanes. A corrupt or unreadable snapshot is
// logged and the app starts empty.
func (a *App) Restore(ctx context.Context) int {
	n, err := a.manager.Restore(ctx)
	if err != nil {
		a.logger.Error("Restoring lanes failed, starting empty", "err", err)
		return 0
	}
	return n
}

// Seed adds every listed subreddit that has no lane yet. Failures are logged
// and skipped. It returns the number of lanes added.
func (a *App) Seed(ctx context.Context, subs []string) int {
	added := 0
	for _, sub := range subs {
		if _, ok := a.store.GetBySubreddit(sub); ok {
			continue
		}
		if _, err := a.manager.Add(ctx, sub); err != nil {
			if ctx.Err() != nil {
				break
			}
			a.logger.Warn("Seeding lane failed", "sub", sub, "err", err)
			continue
		}
		added++
	}
	return added
}

// SeedFromFile seeds from a subreddit CSV. A missing file seeds nothing.
func (a *App) SeedFromFile(ctx context.Context, path string) (int, error) {
	subs, err := ingest.LoadSubreddits(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("load seed file: %w", err)
	}
	return a.Seed(ctx, subs), nil
}

func (a *App) AddLane(ctx context.Context, subreddit string) Outcome {
	lane, err := a.manager.Add(ctx, subreddit)
	if err != nil {
		return failed(err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Added r/%s successfully", lane.Subreddit),
		Lane:    &lane,
	}
}

// RefreshLane reports a fetch failure as an unsuccessful outcome that still
// carries the lane with its previous posts.
func (a *App) RefreshLane(ctx context.Context, id string) Outcome {
	lane, err := a.manager.Refresh(ctx, id)
	if err != nil {
		return failed(err)
	}
	if lane.HasError() {
		return Outcome{
			Message: fmt.Sprintf("Failed to refresh r/%s: %s", lane.Subreddit, lane.Error),
			Lane:    &lane,
		}
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Refreshed r/%s successfully", lane.Subreddit),
		Lane:    &lane,
	}
}

func (a *App) RefreshAll(ctx context.Context) Outcome {
	sum := a.manager.RefreshAll(ctx)
	return Outcome{
		Success: sum.Failed == 0,
		Message: sum.Message(),
		Summary: &sum,
	}
}

func (a *App) RemoveLane(ctx context.Context, id string) Outcome {
	if err := a.manager.Remove(ctx, id); err != nil {
		return failed(err)
	}
	return Outcome{Success: true, Message: "Lane removed successfully"}
}

func (a *App) ClearAll(ctx context.Context) Outcome {
	n := a.manager.ClearAll(ctx)
	return Outcome{Success: true, Message: fmt.Sprintf("All lanes cleared (%d removed)", n)}
}

// Export writes every post as NDJSON to path.
func (a *App) Export(path string) (int, error) {
	return storage.ExportPosts(path, a.store.All())
}

// Stats is the dashboard summary line.
type Stats struct {
	Lanes int `json:"lanes"`
	Posts int `json:"posts"`
}

func (a *App) Stats() Stats {
	cur := a.store.All()
	return Stats{Lanes: len(cur), Posts: domain.TotalPosts(cur)}
}

// AutoRefresh runs refresh-all on the configured interval until ctx is done.
// It returns immediately when auto-refresh is off.
func (a *App) AutoRefresh(ctx context.Context) error {
	if !a.cfg.AutoRefresh {
		return nil
	}
	err := a.manager.Run(ctx, a.cfg.RefreshInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() error {
	a.store.Cell().Close()
	return a.kv.Close()
}
