// Package storage persists the lane list to a key-value store and exports
// posts as NDJSON.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/qepting91/reddit-lanes/internal/domain"
)

// DefaultKey is the key the lane snapshot is stored under.
const DefaultKey = "reddit_lanes"

// laneRecord is the on-disk form of a lane.
type laneRecord struct {
	ID        string        `json:"id"`
	Subreddit string        `json:"subreddit"`
	Posts     []domain.Post `json:"posts"`
	IsLoading bool          `json:"isLoading"`
	Error     *string       `json:"error"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Snapshots writes and reads the whole lane list under one key.
type Snapshots struct {
	kv     KV
	key    string
	logger *slog.Logger
}

func NewSnapshots(kv KV, key string, logger *slog.Logger) *Snapshots {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshots{kv: kv, key: key, logger: logger}
}

// Encode renders lanes in the persisted schema.
func Encode(lanes []domain.Lane) ([]byte, error) {
	records := make([]laneRecord, len(lanes))
	for i, l := range lanes {
		r := laneRecord{
			ID:        l.ID,
			Subreddit: l.Subreddit,
			Posts:     l.Posts,
			IsLoading: l.IsLoading,
			CreatedAt: l.CreatedAt,
			UpdatedAt: l.UpdatedAt,
		}
		if r.Posts == nil {
			r.Posts = []domain.Post{}
		}
		if l.Error != "" {
			msg := l.Error
			r.Error = &msg
		}
		records[i] = r
	}
	return json.Marshal(records)
}

// Decode parses the persisted schema.
func Decode(data []byte) ([]domain.Lane, error) {
	var records []laneRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	lanes := make([]domain.Lane, 0, len(records))
	for _, r := range records {
		if r.ID == "" || r.Subreddit == "" {
			continue
		}
		l := domain.Lane{
			ID:        r.ID,
			Subreddit: r.Subreddit,
			Posts:     r.Posts,
			IsLoading: r.IsLoading,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
		if r.Error != nil {
			l.Error = *r.Error
		}
		lanes = append(lanes, l)
	}
	return lanes, nil
}

// Save writes the full lane list.
func (s *Snapshots) Save(ctx context.Context, lanes []domain.Lane) error {
	if err := ctx.Err(); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	data, err := Encode(lanes)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := s.kv.Set(s.key, data); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	s.logger.Debug("Saved lanes", "lanes", len(lanes), "bytes", len(data))
	return nil
}

// Load reads the lane list. A missing key yields an empty list.
func (s *Snapshots) Load(ctx context.Context) ([]domain.Lane, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	data, err := s.kv.Get(s.key)
	if errors.Is(err, ErrNotFound) {
		return []domain.Lane{}, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	lanes, err := Decode(data)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	return lanes, nil
}

// Clear deletes the snapshot.
func (s *Snapshots) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	if err := s.kv.Delete(s.key); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}
