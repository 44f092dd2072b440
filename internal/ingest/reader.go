// Package ingest reads the CSV seed files: subreddits to open lanes for and
// keywords to chart.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/qepting91/reddit-lanes/internal/domain"
)

// LoadSubreddits reads the first column of a CSV file with a header row.
// Invalid or repeated names are skipped (fail-soft); names come back
// normalized in file order.
func LoadSubreddits(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSubreddits(f)
}

func ReadSubreddits(src io.Reader) ([]string, error) {
	r := csv.NewReader(stripBOM(src))
	r.FieldsPerRecord = -1

	var subs []string
	seen := make(map[string]bool)
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				slog.Warn("Skipping malformed seed row", "line", line, "err", err)
				continue
			}
			return subs, err
		}
		if line == 1 || len(record) == 0 {
			continue // header
		}

		sub := domain.NormalizeSubreddit(record[0])
		if err := domain.ValidateSubreddit(sub); err != nil {
			slog.Warn("Skipping invalid subreddit", "line", line, "err", err)
			continue
		}
		if seen[sub] {
			continue
		}
		seen[sub] = true
		subs = append(subs, sub)
	}
	return subs, nil
}

// LoadKeywords reads lower-cased keywords from the first column, skipping the
// header and blanks.
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1
	var kws []string
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line++
			continue
		}
		if line > 0 && len(rec) > 0 {
			if kw := strings.ToLower(strings.TrimSpace(rec[0])); kw != "" {
				kws = append(kws, kw)
			}
		}
		line++
	}
	return kws, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
