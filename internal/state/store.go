// Package state holds the authoritative in-memory set of lanes.
package state

import (
	"fmt"

	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/observable"
)

// Store keeps lanes in insertion order. Every mutation is an atomic
// read-modify-write on an observable cell, and subscribers are only told
// about changes that alter a lane's value.
type Store struct {
	lanes *observable.Cell[[]domain.Lane]
}

func New(opts ...observable.Option) *Store {
	return &Store{lanes: observable.New[[]domain.Lane](nil, domain.LanesEqual, opts...)}
}

// Subscribe registers fn for lane list changes. The slices passed to fn must
// not be modified.
func (s *Store) Subscribe(fn observable.Listener[[]domain.Lane]) (unsubscribe func()) {
	return s.lanes.Subscribe(fn)
}

// Cell exposes the underlying cell for derived views.
func (s *Store) Cell() *observable.Cell[[]domain.Lane] { return s.lanes }

// Add inserts a lane. The subreddit and id must both be unused.
func (s *Store) Add(lane domain.Lane) error {
	lane.Subreddit = domain.NormalizeSubreddit(lane.Subreddit)
	_, err := s.lanes.Update(func(cur []domain.Lane) ([]domain.Lane, error) {
		for _, l := range cur {
			if l.Subreddit == lane.Subreddit {
				return nil, fmt.Errorf("r/%s: %w", lane.Subreddit, domain.ErrDuplicateSubreddit)
			}
			if l.ID == lane.ID {
				return nil, fmt.Errorf("lane id %s already in use", lane.ID)
			}
		}
		next := make([]domain.Lane, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, lane), nil
	})
	return err
}

// Remove deletes the lane with id and reports whether it was present.
func (s *Store) Remove(id string) bool {
	removed := false
	s.lanes.Update(func(cur []domain.Lane) ([]domain.Lane, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return cur, nil
		}
		removed = true
		next := make([]domain.Lane, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...), nil
	})
	return removed
}

// ReplaceAll swaps the whole list. Subscribers are notified only when the new
// list differs by value. It reports whether anything changed.
func (s *Store) ReplaceAll(lanes []domain.Lane) (bool, error) {
	next := make([]domain.Lane, len(lanes))
	seen := make(map[string]bool, len(lanes))
	for i, l := range lanes {
		l.Subreddit = domain.NormalizeSubreddit(l.Subreddit)
		if seen[l.Subreddit] {
			return false, fmt.Errorf("r/%s: %w", l.Subreddit, domain.ErrDuplicateSubreddit)
		}
		seen[l.Subreddit] = true
		next[i] = l
	}
	return s.lanes.Update(func([]domain.Lane) ([]domain.Lane, error) { return next, nil })
}

// UpdateOne replaces the lane that has lane.ID. It reports whether the stored
// value changed.
func (s *Store) UpdateOne(lane domain.Lane) (bool, error) {
	lane.Subreddit = domain.NormalizeSubreddit(lane.Subreddit)
	return s.lanes.Update(func(cur []domain.Lane) ([]domain.Lane, error) {
		i := indexOf(cur, lane.ID)
		if i < 0 {
			return nil, fmt.Errorf("lane %s: %w", lane.ID, domain.ErrLaneNotFound)
		}
		if cur[i].Equal(lane) {
			return cur, nil
		}
		for j, l := range cur {
			if j != i && l.Subreddit == lane.Subreddit {
				return nil, fmt.Errorf("r/%s: %w", lane.Subreddit, domain.ErrDuplicateSubreddit)
			}
		}
		next := make([]domain.Lane, len(cur))
		copy(next, cur)
		next[i] = lane
		return next, nil
	})
}

// Modify runs fn on the current lane with id while holding the store's lock
// and stores the result when fn returns true. fn must not call the store. It
// returns the lane as stored afterwards.
func (s *Store) Modify(id string, fn func(cur domain.Lane) (domain.Lane, bool)) (domain.Lane, error) {
	var result domain.Lane
	_, err := s.lanes.Update(func(cur []domain.Lane) ([]domain.Lane, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, fmt.Errorf("lane %s: %w", id, domain.ErrLaneNotFound)
		}
		next, apply := fn(cur[i])
		if !apply || cur[i].Equal(next) {
			result = cur[i]
			return cur, nil
		}
		next.ID = cur[i].ID
		next.Subreddit = cur[i].Subreddit
		result = next
		out := make([]domain.Lane, len(cur))
		copy(out, cur)
		out[i] = next
		return out, nil
	})
	return result, err
}

// Get returns the lane with id.
func (s *Store) Get(id string) (domain.Lane, bool) {
	cur := s.lanes.Get()
	if i := indexOf(cur, id); i >= 0 {
		return cur[i], true
	}
	return domain.Lane{}, false
}

// GetBySubreddit looks a lane up by name; the name is normalized first.
func (s *Store) GetBySubreddit(name string) (domain.Lane, bool) {
	name = domain.NormalizeSubreddit(name)
	for _, l := range s.lanes.Get() {
		if l.Subreddit == name {
			return l, true
		}
	}
	return domain.Lane{}, false
}

// All returns a copy of the lanes in insertion order.
func (s *Store) All() []domain.Lane {
	cur := s.lanes.Get()
	out := make([]domain.Lane, len(cur))
	copy(out, cur)
	return out
}

// Subreddits lists the lane names in insertion order.
func (s *Store) Subreddits() []string {
	cur := s.lanes.Get()
	out := make([]string, len(cur))
	for i, l := range cur {
		out[i] = l.Subreddit
	}
	return out
}

func (s *Store) Count() int { return len(s.lanes.Get()) }

func (s *Store) TotalPosts() int { return domain.TotalPosts(s.lanes.Get()) }

func indexOf(lanes []domain.Lane, id string) int {
	for i, l := range lanes {
		if l.ID == id {
			return i
		}
	}
	return -1
}
