package domain

import "time"

// Lane is one tracked subreddit with its fetched posts and status.
//
// Lanes are passed by value; the With* methods return modified copies so a
// lane held by an observer never changes underneath it. IsLoading and a
// non-empty Error are never set together.
type Lane struct {
	ID        string    `json:"id"`
	Subreddit string    `json:"subreddit"`
	Posts     []Post    `json:"posts"`
	IsLoading bool      `json:"isLoading"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewLane builds an active lane from its first successful fetch.
func NewLane(id, subreddit string, posts []Post, now time.Time) Lane {
	return Lane{
		ID:        id,
		Subreddit: NormalizeSubreddit(subreddit),
		Posts:     posts,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithLoading toggles the loading flag. Entering the loading state clears any
// recorded error; UpdatedAt is left alone.
func (l Lane) WithLoading(loading bool) Lane {
	l.IsLoading = loading
	if loading {
		l.Error = ""
	}
	return l
}

// WithPosts replaces the post list after a successful fetch.
func (l Lane) WithPosts(posts []Post, now time.Time) Lane {
	l.Posts = posts
	l.IsLoading = false
	l.Error = ""
	l.UpdatedAt = now
	return l
}

// WithError records a failed fetch. Posts are kept.
func (l Lane) WithError(msg string) Lane {
	l.Error = msg
	l.IsLoading = false
	return l
}

// HasError reports whether the last fetch failed.
func (l Lane) HasError() bool { return l.Error != "" }

// Equal compares the status fields first and only walks the posts when
// everything else matches.
func (l Lane) Equal(o Lane) bool {
	if l.ID != o.ID ||
		l.Subreddit != o.Subreddit ||
		l.IsLoading != o.IsLoading ||
		l.Error != o.Error ||
		!l.CreatedAt.Equal(o.CreatedAt) ||
		!l.UpdatedAt.Equal(o.UpdatedAt) {
		return false
	}
	return PostsEqual(l.Posts, o.Posts)
}

// LanesEqual compares two ordered lane lists.
func LanesEqual(a, b []Lane) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// TotalPosts sums the post counts of all lanes.
func TotalPosts(lanes []Lane) int {
	n := 0
	for _, l := range lanes {
		n += len(l.Posts)
	}
	return n
}
