package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/go-playground/assert/v2"
	"github.com/qepting91/reddit-lanes/internal/domain"
)

func sampleLanes(n, m int) []domain.Lane {
	base := time.Date(2024, 3, 9, 8, 7, 6, 123456789, time.UTC)
	lanes := make([]domain.Lane, 0, n)
	for i := 0; i < n; i++ {
		posts := make([]domain.Post, 0, m)
		for j := 0; j < m; j++ {
			posts = append(posts, domain.Post{
				ID:           fmt.Sprintf("p%d_%d", i, j),
				Title:        fmt.Sprintf("Post %d of lane %d", j, i),
				Author:       "gopher",
				Score:        j*10 - 5,
				CommentCount: j,
				CreatedAt:    base.Add(-time.Duration(j) * time.Minute),
				Permalink:    fmt.Sprintf("/r/sub%d/comments/p%d_%d/", i, i, j),
				ThumbnailURL: "https://example.com/t.jpg",
				Subreddit:    fmt.Sprintf("sub%d", i),
			})
		}
		l := domain.NewLane(fmt.Sprintf("lane_%d", i), fmt.Sprintf("sub%d", i), posts, base.Add(time.Duration(i)*time.Second))
		if i%2 == 1 {
			l = l.WithError("rate limited")
		}
		lanes = append(lanes, l)
	}
	return lanes
}

func newPebble(t *testing.T) *PebbleKV {
	t.Helper()
	kv, err := OpenPebble("lanes", &pebble.Options{FS: vfs.NewMem()})
	assert.Equal(t, err, nil)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, kv := range map[string]KV{"memory": NewMemoryKV(), "pebble": newPebble(t)} {
		t.Run(name, func(t *testing.T) {
			s := NewSnapshots(kv, "", nil)
			want := sampleLanes(4, 5)

			assert.Equal(t, s.Save(context.Background(), want), nil)
			got, err := s.Load(context.Background())
			assert.Equal(t, err, nil)
			assert.Equal(t, len(got), 4)
			assert.Equal(t, domain.LanesEqual(got, want), true)
			for i := range want {
				assert.Equal(t, got[i].Subreddit, want[i].Subreddit)
				assert.Equal(t, got[i].Posts[2].Title, want[i].Posts[2].Title)
			}
		})
	}
}

func TestLoadMissingKey(t *testing.T) {
	s := NewSnapshots(NewMemoryKV(), "", nil)
	got, err := s.Load(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, len(got), 0)
}

func TestLoadCorrupt(t *testing.T) {
	kv := NewMemoryKV()
	kv.Set(DefaultKey, []byte("{not json"))
	_, err := NewSnapshots(kv, "", nil).Load(context.Background())

	var perr *domain.PersistenceError
	assert.Equal(t, errors.As(err, &perr), true)
	assert.Equal(t, perr.Op, "load")
}

func TestSaveFailure(t *testing.T) {
	kv := NewMemoryKV()
	kv.Fail = errors.New("quota exceeded")
	err := NewSnapshots(kv, "", nil).Save(context.Background(), sampleLanes(1, 1))

	var perr *domain.PersistenceError
	assert.Equal(t, errors.As(err, &perr), true)
	assert.Equal(t, perr.Op, "save")
}

func TestClear(t *testing.T) {
	kv := newPebble(t)
	s := NewSnapshots(kv, "custom", nil)
	assert.Equal(t, s.Save(context.Background(), sampleLanes(2, 1)), nil)
	assert.Equal(t, s.Clear(context.Background()), nil)

	got, err := s.Load(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, len(got), 0)
	_, err = kv.Get("custom")
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestPersistedSchema(t *testing.T) {
	data, err := Encode(sampleLanes(2, 1))
	assert.Equal(t, err, nil)

	var raw []map[string]any
	assert.Equal(t, json.Unmarshal(data, &raw), nil)
	assert.Equal(t, len(raw), 2)
	assert.Equal(t, raw[0]["error"], nil)
	assert.Equal(t, raw[1]["error"], "rate limited")
	assert.Equal(t, raw[0]["isLoading"], false)
	assert.Equal(t, raw[0]["createdAt"], "2024-03-09T08:07:06.123456789Z")

	posts := raw[0]["posts"].([]any)
	post := posts[0].(map[string]any)
	assert.Equal(t, post["permalinkPath"], "/r/sub0/comments/p0_0/")
}

func TestDecodeSkipsIncompleteRecords(t *testing.T) {
	lanes, err := Decode([]byte(`[{"id":"a","subreddit":"go"},{"id":"","subreddit":"x"},{"id":"b"}]`))
	assert.Equal(t, err, nil)
	assert.Equal(t, len(lanes), 1)
	assert.Equal(t, lanes[0].ID, "a")
}

func TestExportPosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.ndjson")
	n, err := ExportPosts(path, sampleLanes(2, 3))
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 6)

	f, err := os.Open(path)
	assert.Equal(t, err, nil)
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var p domain.Post
		assert.Equal(t, json.Unmarshal(sc.Bytes(), &p), nil)
		lines++
	}
	assert.Equal(t, lines, 6)
}

func TestExportPostsBadPath(t *testing.T) {
	_, err := ExportPosts(filepath.Join(t.TempDir(), "missing", "dir", "x.ndjson"), sampleLanes(1, 2))
	assert.NotEqual(t, err, nil)
}

type failingCloser struct {
	bytes.Buffer
}

func (failingCloser) Close() error { return errors.New("flush failed") }

func TestWriterReportsCloseError(t *testing.T) {
	w := &WriterService{
		FilePath: "posts.ndjson",
		Open: func(string, int, os.FileMode) (io.WriteCloser, error) {
			return &failingCloser{}, nil
		},
	}
	input := make(chan domain.Post, 2)
	input <- domain.Post{ID: "p1"}
	close(input)

	var wg sync.WaitGroup
	wg.Add(1)
	w.Start(&wg, input)
	wg.Wait()

	n, err := w.Result()
	assert.Equal(t, n, 1)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, err.Error(), "flush failed")
}
