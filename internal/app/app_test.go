package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/qepting91/reddit-lanes/internal/collector"
	"github.com/qepting91/reddit-lanes/internal/config"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		CollectorMode:      "mock",
		PostLimit:          5,
		RefreshConcurrency: 2,
		StorageKey:         storage.DefaultKey,
	}
}

func newTestApp(t *testing.T, kv storage.KV) *App {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	a, err := New(testConfig(), nil, Deps{
		Collector: &collector.MockClient{},
		KV:        kv,
	})
	assert.Equal(t, err, nil)
	return a
}

func TestCommandSurface(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	out := a.AddLane(ctx, "r/GoLang")
	assert.Equal(t, out.Success, true)
	assert.Equal(t, out.Message, "Added r/golang successfully")
	assert.Equal(t, len(out.Lane.Posts), 5)
	id := out.Lane.ID

	out = a.AddLane(ctx, "golang")
	assert.Equal(t, out.Success, false)
	assert.Equal(t, out.Message, "That subreddit is already on your dashboard")

	out = a.AddLane(ctx, "x")
	assert.Equal(t, out.Success, false)
	assert.NotEqual(t, out.Message, "")

	out = a.RefreshLane(ctx, id)
	assert.Equal(t, out.Success, true)
	assert.Equal(t, out.Message, "Refreshed r/golang successfully")

	out = a.RefreshLane(ctx, "missing")
	assert.Equal(t, out.Success, false)
	assert.Equal(t, out.Message, "Lane not found")

	a.AddLane(ctx, "rust")
	out = a.RefreshAll(ctx)
	assert.Equal(t, out.Success, true)
	assert.Equal(t, out.Summary.Succeeded, 2)
	assert.Equal(t, a.Stats(), Stats{Lanes: 2, Posts: 10})

	out = a.RemoveLane(ctx, id)
	assert.Equal(t, out.Success, true)
	out = a.RemoveLane(ctx, id)
	assert.Equal(t, out.Success, false)
	assert.Equal(t, out.Message, "Lane not found")

	out = a.ClearAll(ctx)
	assert.Equal(t, out.Success, true)
	assert.Equal(t, len(a.Lanes()), 0)
}

type failingCollector struct{ err error }

func (f failingCollector) FetchPosts(context.Context, string, int) ([]domain.Post, error) {
	return nil, f.err
}

func TestRefreshFailureOutcome(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	seed := newTestApp(t, kv)
	lane := seed.AddLane(ctx, "golang").Lane

	a, err := New(testConfig(), nil, Deps{
		Collector: failingCollector{err: &domain.FetchError{Kind: domain.FetchNotFound, Status: 404}},
		KV:        kv,
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, a.Restore(ctx), 1)

	out := a.RefreshLane(ctx, lane.ID)
	assert.Equal(t, out.Success, false)
	assert.Equal(t, out.Message, "Failed to refresh r/golang: Subreddit does not exist or is private")
	assert.Equal(t, len(out.Lane.Posts), len(lane.Posts))

	out = a.AddLane(ctx, "rust")
	assert.Equal(t, out.Success, false)
	assert.Equal(t, out.Message, "Subreddit does not exist or is private")
	assert.Equal(t, len(a.Lanes()), 1)
}

func TestRestoreAcrossRestart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	first := newTestApp(t, kv)
	first.AddLane(ctx, "golang")
	first.AddLane(ctx, "rust")

	second := newTestApp(t, kv)
	assert.Equal(t, second.Restore(ctx), 2)
	assert.Equal(t, second.Store().Subreddits(), []string{"golang", "rust"})
}

func TestRestoreCorruptStartsEmpty(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Set(storage.DefaultKey, []byte("[{"))
	a := newTestApp(t, kv)
	assert.Equal(t, a.Restore(context.Background()), 0)
	assert.Equal(t, len(a.Lanes()), 0)
}

func TestSeedFromFile(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	a.AddLane(ctx, "golang")

	path := filepath.Join(t.TempDir(), "subs.csv")
	err := os.WriteFile(path, []byte("subreddit\ngolang\nrust\n_bad\nprogramming\n"), 0o644)
	assert.Equal(t, err, nil)

	n, err := a.SeedFromFile(ctx, path)
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 2)
	assert.Equal(t, a.Store().Subreddits(), []string{"golang", "rust", "programming"})

	n, err = a.SeedFromFile(ctx, filepath.Join(t.TempDir(), "absent.csv"))
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 0)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	a.AddLane(ctx, "golang")

	n, err := a.Export(filepath.Join(t.TempDir(), "posts.ndjson"))
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 5)
}

func TestAutoRefreshDisabled(t *testing.T) {
	a := newTestApp(t, nil)
	assert.Equal(t, a.AutoRefresh(context.Background()), nil)
}

func TestNewWithPebble(t *testing.T) {
	cfg := testConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "lanes")
	a, err := New(cfg, nil, Deps{Collector: &collector.MockClient{}})
	assert.Equal(t, err, nil)

	out := a.AddLane(context.Background(), "golang")
	assert.Equal(t, out.Success, true)
	assert.Equal(t, a.Close(), nil)

	b, err := New(cfg, nil, Deps{Collector: &collector.MockClient{}})
	assert.Equal(t, err, nil)
	defer b.Close()
	assert.Equal(t, b.Restore(context.Background()), 1)
}
