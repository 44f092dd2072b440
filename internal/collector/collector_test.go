package collector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/qepting91/reddit-lanes/internal/config"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/relay"
)

type stubFetcher struct {
	body   string
	err    error
	target string
}

func (s *stubFetcher) Get(_ context.Context, target string) (json.RawMessage, error) {
	s.target = target
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.body), nil
}

const listing = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {"id": "abc", "title": "Hello", "author": "gopher", "score": -2,
        "num_comments": 4, "permalink": "/r/golang/comments/abc/hello/", "created_utc": 1700000000.5,
        "thumbnail": "https://b.thumbs.redditmedia.com/x.jpg", "subreddit": "golang", "over_18": true}},
      {"kind": "t3"},
      {"kind": "t3", "data": {"id": "def", "title": "World", "author": "gopher2", "score": 10,
        "num_comments": 0, "permalink": "/r/golang/comments/def/world/", "created_utc": 1700000100,
        "thumbnail": "self"}}
    ]
  }
}`

func TestPublicClientProjectsPosts(t *testing.T) {
	f := &stubFetcher{body: listing}
	pc := NewPublicClient(f, "https://www.reddit.com/", nil)

	posts, err := pc.FetchPosts(context.Background(), "golang", 10)
	assert.Equal(t, err, nil)
	assert.Equal(t, f.target, "https://www.reddit.com/r/golang.json?limit=10&raw_json=1")
	assert.Equal(t, len(posts), 2)

	p := posts[0]
	assert.Equal(t, p.ID, "abc")
	assert.Equal(t, p.Score, -2)
	assert.Equal(t, p.CommentCount, 4)
	assert.Equal(t, p.NSFW, true)
	assert.Equal(t, p.HasThumbnail(), true)
	assert.Equal(t, p.CreatedAt.Equal(time.Unix(1700000000, 500000000)), true)

	// subreddit falls back to the requested one
	assert.Equal(t, posts[1].Subreddit, "golang")
	assert.Equal(t, posts[1].HasThumbnail(), false)
}

func TestPublicClientToleratesOddShapes(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `{"data": {"children": []}}`, `{"data": "nope"}`} {
		pc := NewPublicClient(&stubFetcher{body: body}, "", nil)
		posts, err := pc.FetchPosts(context.Background(), "golang", 5)
		assert.Equal(t, err, nil)
		assert.Equal(t, len(posts), 0)
	}
}

func TestPublicClientPassesFetchErrors(t *testing.T) {
	want := &domain.FetchError{Kind: domain.FetchRateLimited, Status: 429}
	pc := NewPublicClient(&stubFetcher{err: want}, "", nil)
	_, err := pc.FetchPosts(context.Background(), "golang", 5)

	var ferr *domain.FetchError
	assert.Equal(t, errors.As(err, &ferr), true)
	assert.Equal(t, ferr.Kind, domain.FetchRateLimited)
}

func TestMockClient(t *testing.T) {
	mc := &MockClient{}
	a, err := mc.FetchPosts(context.Background(), "golang", 3)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(a), 3)
	b, _ := mc.FetchPosts(context.Background(), "golang", 3)
	assert.Equal(t, a[1].Score, b[1].Score)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&MockClient{Latency: time.Second}).FetchPosts(ctx, "golang", 3)
	assert.Equal(t, errors.Is(err, context.Canceled), true)
}

func TestNewCollector(t *testing.T) {
	c, err := NewCollector(config.Config{CollectorMode: "mock"}, nil)
	assert.Equal(t, err, nil)
	_, ok := c.(*MockClient)
	assert.Equal(t, ok, true)

	c, err = NewCollector(config.Config{CollectorMode: "relay", UserAgent: "test/1.0"}, nil)
	assert.Equal(t, err, nil)
	_, ok = c.(*PublicClient)
	assert.Equal(t, ok, true)

	_, err = NewCollector(config.Config{CollectorMode: "relay"}, nil)
	assert.NotEqual(t, err, nil)

	_, err = NewCollector(config.Config{CollectorMode: "telepathy"}, nil)
	assert.NotEqual(t, err, nil)
}

func TestNewRelayClientDefaults(t *testing.T) {
	rc, err := NewRelayClient(config.Config{UserAgent: "test/1.0"}, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, rc.Relays(), relay.DefaultRelays)
}
