package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/qepting91/reddit-lanes/internal/domain"
)

// MockClient implements domain.Collector but returns fake data
type MockClient struct {
	Latency time.Duration
}

func NewMockClient() *MockClient {
	return &MockClient{Latency: 500 * time.Millisecond}
}

func (mc *MockClient) FetchPosts(ctx context.Context, sub string, limit int) ([]domain.Post, error) {
	// Simulate network latency (nice for testing concurrency)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mc.Latency):
	}

	h := fnv.New64a()
	h.Write([]byte(sub))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	now := time.Now().UTC()

	posts := make([]domain.Post, 0, limit)
	for i := 0; i < limit; i++ {
		id := fmt.Sprintf("mock_%s_%d", sub, i)
		posts = append(posts, domain.Post{
			ID:           id,
			Title:        fmt.Sprintf("[%s] Simulated post #%d", sub, i),
			Author:       "simulated_user",
			Score:        rng.Intn(500) - 20,
			CommentCount: rng.Intn(50),
			CreatedAt:    now.Add(-time.Duration(i) * time.Hour),
			Permalink:    fmt.Sprintf("/r/%s/comments/%s/", sub, id),
			Subreddit:    sub,
			URL:          "http://localhost/mock-url",
		})
	}
	return posts, nil
}
