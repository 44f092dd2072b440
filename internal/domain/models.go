package domain

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// FeedHost is prepended to a post permalink to build its public URL.
const FeedHost = "https://www.reddit.com"

// Post is an immutable projection of one feed item.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	Permalink    string    `json:"permalinkPath"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Subreddit    string    `json:"subreddit"`
	URL          string    `json:"url,omitempty"`
	NSFW         bool      `json:"over18,omitempty"`
	IsVideo      bool      `json:"isVideo,omitempty"`
}

// Equal reports whether two posts carry the same values.
func (p Post) Equal(o Post) bool {
	return p.ID == o.ID &&
		p.Title == o.Title &&
		p.Author == o.Author &&
		p.Score == o.Score &&
		p.CommentCount == o.CommentCount &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.Permalink == o.Permalink &&
		p.ThumbnailURL == o.ThumbnailURL &&
		p.Subreddit == o.Subreddit &&
		p.URL == o.URL &&
		p.NSFW == o.NSFW &&
		p.IsVideo == o.IsVideo
}

// HasThumbnail reports whether the thumbnail is an absolute http(s) URL.
// The feed uses placeholders such as "self" or "nsfw" for posts without one.
func (p Post) HasThumbnail() bool {
	switch p.ThumbnailURL {
	case "", "self", "default", "image", "nsfw", "spoiler":
		return false
	}
	u, err := url.Parse(p.ThumbnailURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// RedditURL returns the post's discussion page.
func (p Post) RedditURL() string {
	return FeedHost + p.Permalink
}

// FormatScore renders scores of a thousand or more as "1.2k".
func (p Post) FormatScore() string {
	if p.Score >= 1000 {
		return fmt.Sprintf("%.1fk", float64(p.Score)/1000)
	}
	return fmt.Sprintf("%d", p.Score)
}

// PostsEqual compares two post lists element by element. Lists sharing the
// same backing array are equal without a walk.
func PostsEqual(a, b []Post) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 || &a[0] == &b[0] {
		return true
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Collector defines the interface for data fetching
type Collector interface {
	FetchPosts(ctx context.Context, subreddit string, limit int) ([]Post, error)
}
