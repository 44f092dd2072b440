package storage

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/qepting91/reddit-lanes/internal/domain"
)

// WriterService drains posts from a channel into an NDJSON file. It is the
// only goroutine touching the file.
type WriterService struct {
	FilePath string
	Append   bool
	// Open replaces os.OpenFile when set.
	Open func(name string, flag int, perm os.FileMode) (io.WriteCloser, error)

	mu      sync.Mutex
	written int
	err     error
}

func (w *WriterService) Start(wg *sync.WaitGroup, input <-chan domain.Post) {
	defer wg.Done()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if w.Append {
		flags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
	}
	open := w.Open
	if open == nil {
		open = func(name string, flag int, perm os.FileMode) (io.WriteCloser, error) {
			return os.OpenFile(name, flag, perm)
		}
	}
	f, err := open(w.FilePath, flags, 0644)
	if err != nil {
		w.setErr(err)
		// keep draining so producers never block
		for range input {
		}
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			w.setErr(err)
		}
	}()

	enc := json.NewEncoder(f)

	for post := range input {
		// Write as NDJSON
		if err := enc.Encode(post); err != nil {
			w.setErr(err)
			continue
		}
		w.mu.Lock()
		w.written++
		w.mu.Unlock()
	}
}

// Result returns how many posts were written and the first error seen.
func (w *WriterService) Result() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.err
}

func (w *WriterService) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// ExportPosts writes every post of every lane, lane by lane, to path.
func ExportPosts(path string, lanes []domain.Lane) (int, error) {
	w := &WriterService{FilePath: path}
	input := make(chan domain.Post, 100)
	var wg sync.WaitGroup
	wg.Add(1)
	go w.Start(&wg, input)

	for _, l := range lanes {
		for _, p := range l.Posts {
			input <- p
		}
	}
	close(input)
	wg.Wait()
	return w.Result()
}
