// Package lanes sequences the lane lifecycle: validation, fetching, store
// mutation and persistence for add, refresh, remove and clear.
package lanes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/state"
	"golang.org/x/sync/errgroup"
)

// Persister saves and restores the lane snapshot.
type Persister interface {
	Save(ctx context.Context, lanes []domain.Lane) error
	Load(ctx context.Context) ([]domain.Lane, error)
	Clear(ctx context.Context) error
}

// Options tune a Manager. Zero values take defaults.
type Options struct {
	PostLimit   int
	Concurrency int
	Notifier    Notifier
	Now         func() time.Time
	NewID       func() string
}

const (
	DefaultPostLimit   = 10
	DefaultConcurrency = 4
)

// Manager is the only writer of lane state.
//
// Each refresh takes a generation number for its lane; a fetch result is
// applied only if the lane still exists and no later refresh or removal has
// happened since, so a slow fetch can never overwrite newer state or revive a
// removed lane.
type Manager struct {
	store     *state.Store
	collector domain.Collector
	persister Persister
	logger    *slog.Logger
	notifier  Notifier

	limit       int
	concurrency int
	now         func() time.Time
	newID       func() string

	mu     sync.Mutex
	gens   map[string]uint64
	adding map[string]struct{}

	saveMu sync.Mutex
}

// NewLaneID returns "lane_" followed by a UUIDv7.
func NewLaneID() string {
	return "lane_" + uuid.Must(uuid.NewV7()).String()
}

func NewManager(store *state.Store, collector domain.Collector, persister Persister, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:       store,
		collector:   collector,
		persister:   persister,
		logger:      logger,
		notifier:    opts.Notifier,
		limit:       opts.PostLimit,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		newID:       opts.NewID,
		gens:        make(map[string]uint64),
		adding:      make(map[string]struct{}),
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: logger}
	}
	if m.limit <= 0 {
		m.limit = DefaultPostLimit
	}
	if m.concurrency <= 0 {
		m.concurrency = DefaultConcurrency
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	if m.newID == nil {
		m.newID = NewLaneID
	}
	return m
}

// Store returns the lane store the manager writes to.
func (m *Manager) Store() *state.Store { return m.store }

// Add validates the name, fetches the first page of posts and inserts the
// lane. Nothing is inserted if any step fails.
func (m *Manager) Add(ctx context.Context, subreddit string) (domain.Lane, error) {
	name := domain.NormalizeSubreddit(subreddit)
	if err := domain.ValidateSubreddit(name); err != nil {
		return domain.Lane{}, err
	}
	if _, ok := m.store.GetBySubreddit(name); ok || !m.reserve(name) {
		return domain.Lane{}, fmt.Errorf("r/%s: %w", name, domain.ErrDuplicateSubreddit)
	}
	defer m.release(name)

	m.logger.Info("Adding lane", "sub", name)
	posts, err := m.collector.FetchPosts(ctx, name, m.limit)
	if err != nil {
		m.logger.Warn("Add failed", "sub", name, "err", err)
		return domain.Lane{}, fmt.Errorf("add r/%s: %w", name, err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	lane := domain.NewLane(m.newID(), name, posts, m.now())
	if err := m.store.Add(lane); err != nil {
		return domain.Lane{}, err
	}
	m.logger.Info("Lane added", "sub", name, "lane", lane.ID, "posts", len(posts))
	m.persist(ctx)
	return lane, nil
}

// Refresh refetches a lane's posts. Fetch failures are recorded on the lane
// and do not produce an error; the old posts stay visible. It fails with
// domain.ErrLaneNotFound, or with ctx.Err() when ctx ends during the fetch, in
// which case the lane only drops its loading flag and nothing is saved.
func (m *Manager) Refresh(ctx context.Context, id string) (domain.Lane, error) {
	gen := m.begin(id)
	lane, err := m.store.Modify(id, func(cur domain.Lane) (domain.Lane, bool) {
		return cur.WithLoading(true), m.current(id, gen)
	})
	if err != nil {
		m.forget(id)
		return domain.Lane{}, err
	}

	posts, fetchErr := m.collector.FetchPosts(ctx, lane.Subreddit, m.limit)
	if posts == nil {
		posts = []domain.Post{}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		lane, err = m.store.Modify(id, func(cur domain.Lane) (domain.Lane, bool) {
			return cur.WithLoading(false), m.current(id, gen)
		})
		if err != nil {
			return domain.Lane{}, err
		}
		m.logger.Info("Refresh cancelled", "sub", lane.Subreddit, "lane", id)
		return lane, ctxErr
	}

	applied := false
	now := m.now()
	lane, err = m.store.Modify(id, func(cur domain.Lane) (domain.Lane, bool) {
		if !m.current(id, gen) {
			return cur, false
		}
		applied = true
		if fetchErr != nil {
			return cur.WithError(domain.UserMessage(fetchErr)), true
		}
		return cur.WithPosts(posts, now), true
	})
	if err != nil {
		m.logger.Info("Discarding refresh for removed lane", "lane", id)
		return domain.Lane{}, err
	}
	if !applied {
		m.logger.Debug("Discarding superseded refresh", "lane", id, "sub", lane.Subreddit)
		return lane, nil
	}

	if fetchErr != nil {
		m.logger.Warn("Refresh failed", "sub", lane.Subreddit, "lane", id, "err", fetchErr)
	} else {
		m.logger.Info("Lane refreshed", "sub", lane.Subreddit, "lane", id, "posts", len(posts))
	}
	m.persist(ctx)
	return lane, nil
}

// Summary reports a refresh-all run.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Errors maps subreddit to the failure message.
	Errors map[string]string `json:"errors,omitempty"`
}

// Message renders the summary for display.
func (s Summary) Message() string {
	switch {
	case s.Total == 0:
		return "No lanes to refresh"
	case s.Failed == 0:
		return fmt.Sprintf("Successfully refreshed %d lanes", s.Succeeded)
	default:
		return fmt.Sprintf("Refreshed %d lanes, %d failed", s.Succeeded, s.Failed)
	}
}

// RefreshAll refreshes every lane concurrently. One lane failing never stops
// the others.
func (m *Manager) RefreshAll(ctx context.Context) Summary {
	lanes := m.store.All()
	sum := Summary{Total: len(lanes), Errors: map[string]string{}}
	if len(lanes) == 0 {
		return sum
	}

	type result struct {
		lane domain.Lane
		err  error
	}
	results := make([]result, len(lanes))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, l := range lanes {
		i, l := i, l
		g.Go(func() error {
			lane, err := m.Refresh(ctx, l.ID)
			results[i] = result{lane: lane, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		switch {
		case r.err != nil:
			sum.Failed++
			sum.Errors[lanes[i].Subreddit] = domain.UserMessage(r.err)
		case r.lane.HasError():
			sum.Failed++
			sum.Errors[lanes[i].Subreddit] = r.lane.Error
		default:
			sum.Succeeded++
		}
	}

	level := LevelSuccess
	if sum.Failed > 0 {
		level = LevelWarning
	}
	m.notifier.Notify(ctx, Notice{Level: level, Message: sum.Message()})
	return sum
}

// Remove deletes a lane. A failed save is reported but the lane stays removed.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if !m.store.Remove(id) {
		return fmt.Errorf("lane %s: %w", id, domain.ErrLaneNotFound)
	}
	m.forget(id)
	m.logger.Info("Lane removed", "lane", id)
	m.persist(ctx)
	return nil
}

// ClearAll removes every lane and deletes the stored snapshot. It returns the
// number of lanes removed.
func (m *Manager) ClearAll(ctx context.Context) int {
	n := m.store.Count()
	m.store.ReplaceAll(nil)
	m.mu.Lock()
	m.gens = make(map[string]uint64)
	m.mu.Unlock()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if err := m.persister.Clear(context.WithoutCancel(ctx)); err != nil {
		m.reportPersistError(ctx, err)
	}
	m.logger.Info("Cleared lanes", "lanes", n)
	return n
}

// Restore loads the stored snapshot into the store. Loading flags left over
// from an interrupted session are cleared, and a repeated subreddit keeps its
// first lane.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	stored, err := m.persister.Load(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(stored))
	lanes := make([]domain.Lane, 0, len(stored))
	for _, l := range stored {
		l.Subreddit = domain.NormalizeSubreddit(l.Subreddit)
		if seen[l.Subreddit] {
			m.logger.Warn("Dropping repeated lane from snapshot", "sub", l.Subreddit, "lane", l.ID)
			continue
		}
		seen[l.Subreddit] = true
		lanes = append(lanes, l.WithLoading(false))
	}

	if _, err := m.store.ReplaceAll(lanes); err != nil {
		return 0, err
	}
	m.logger.Info("Restored lanes", "lanes", len(lanes))
	return len(lanes), nil
}

// Run refreshes all lanes every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.logger.Info("Auto-refresh started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.store.Count() == 0 {
				continue
			}
			m.RefreshAll(ctx)
		}
	}
}

// persist saves the store as it is when the save starts. Saves are
// serialized, and a failure is reported without touching in-memory state.
func (m *Manager) persist(ctx context.Context) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if err := m.persister.Save(context.WithoutCancel(ctx), m.store.All()); err != nil {
		m.reportPersistError(ctx, err)
	}
}

func (m *Manager) reportPersistError(ctx context.Context, err error) {
	m.logger.Error("Persisting lanes failed", "err", err)
	m.notifier.Notify(ctx, Notice{Level: LevelError, Message: domain.UserMessage(err)})
}

func (m *Manager) reserve(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.adding[name]; busy {
		return false
	}
	m.adding[name] = struct{}{}
	return true
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.adding, name)
}

func (m *Manager) begin(id string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[id]++
	return m.gens[id]
}

func (m *Manager) current(id string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[id] == gen
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gens, id)
}
