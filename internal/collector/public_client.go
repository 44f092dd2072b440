package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/qepting91/reddit-lanes/internal/domain"
)

// Fetcher is the relay transport the public client reads through.
type Fetcher interface {
	Get(ctx context.Context, target string) (json.RawMessage, error)
}

// PublicClient reads the public JSON listing of a subreddit through relays.
type PublicClient struct {
	fetcher Fetcher
	baseURL string
	logger  *slog.Logger
}

type redditJSONResponse struct {
	Data struct {
		Children []struct {
			Data *redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Thumbnail   string  `json:"thumbnail"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Over18      bool    `json:"over_18"`
	IsVideo     bool    `json:"is_video"`
}

func NewPublicClient(fetcher Fetcher, baseURL string, logger *slog.Logger) *PublicClient {
	if baseURL == "" {
		baseURL = domain.FeedHost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicClient{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ListingURL is the feed address for a subreddit.
func (pc *PublicClient) ListingURL(sub string, limit int) string {
	return fmt.Sprintf("%s/r/%s.json?limit=%d&raw_json=1", pc.baseURL, sub, limit)
}

// FetchPosts returns the subreddit's posts in feed order. Transport failures
// are returned as errors; a body that is valid JSON but not a listing yields
// zero posts.
func (pc *PublicClient) FetchPosts(ctx context.Context, sub string, limit int) ([]domain.Post, error) {
	body, err := pc.fetcher.Get(ctx, pc.ListingURL(sub, limit))
	if err != nil {
		return nil, err
	}

	var rResp redditJSONResponse
	if err := json.Unmarshal(body, &rResp); err != nil {
		pc.logger.Warn("Unexpected listing shape", "sub", sub, "err", err)
		return []domain.Post{}, nil
	}

	posts := make([]domain.Post, 0, len(rResp.Data.Children))
	for _, child := range rResp.Data.Children {
		if child.Data == nil {
			continue
		}
		posts = append(posts, child.Data.toPost(sub))
	}
	return posts, nil
}

func (d *redditPost) toPost(fallbackSub string) domain.Post {
	sub := d.Subreddit
	if sub == "" {
		sub = fallbackSub
	}
	return domain.Post{
		ID:           d.ID,
		Title:        d.Title,
		Author:       d.Author,
		Score:        d.Score,
		CommentCount: max(d.NumComments, 0),
		CreatedAt:    unixFloat(d.CreatedUTC),
		Permalink:    d.Permalink,
		ThumbnailURL: d.Thumbnail,
		Subreddit:    sub,
		URL:          d.URL,
		NSFW:         d.Over18,
		IsVideo:      d.IsVideo,
	}
}

func unixFloat(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
