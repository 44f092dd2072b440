package collector

import (
	"context"
	"errors"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"golang.org/x/time/rate"
)

// APIClient reads listings through the authenticated Reddit API.
type APIClient struct {
	client  *reddit.Client
	limiter *rate.Limiter
}

func NewAPIClient(id, secret, user, pass, userAgent string) (*APIClient, error) {
	creds := reddit.Credentials{ID: id, Secret: secret, Username: user, Password: pass}

	client, err := reddit.NewClient(creds, reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}

	// API Rate Limit: ~60 reqs/min (safe buffer)
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)

	return &APIClient{client: client, limiter: limiter}, nil
}

func (ac *APIClient) FetchPosts(ctx context.Context, sub string, limit int) ([]domain.Post, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, _, err := ac.client.Subreddit.HotPosts(ctx, sub, &reddit.ListOptions{Limit: limit})
	if err != nil {
		return nil, apiError(err)
	}

	result := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		var created time.Time
		if p.Created != nil {
			created = p.Created.Time.UTC()
		}
		result = append(result, domain.Post{
			ID:           p.ID,
			Title:        p.Title,
			Author:       p.Author,
			Score:        p.Score,
			CommentCount: max(p.NumberOfComments, 0),
			CreatedAt:    created,
			Permalink:    p.Permalink,
			Subreddit:    p.SubredditName,
			URL:          p.URL,
			NSFW:         p.NSFW,
		})
	}
	return result, nil
}

// apiError classifies API failures the same way the relay client does. Anything
// that is not a semantic status is reported as a generic network failure.
func apiError(err error) error {
	var rerr *reddit.ErrorResponse
	if errors.As(err, &rerr) && rerr.Response != nil {
		if ferr := domain.FetchErrorForStatus(rerr.Response.StatusCode); ferr != nil {
			ferr.Err = err
			return ferr
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.FetchError{Kind: domain.FetchTimeout, Err: err}
	}
	return &domain.FetchError{Kind: domain.FetchAllRelaysExhausted, Err: err}
}
