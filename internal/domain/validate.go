package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MinSubredditLen = 2
	MaxSubredditLen = 21
)

// NormalizeSubreddit trims, lower-cases and drops a leading "r/" or "/r/".
func NormalizeSubreddit(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "/")
	s = strings.TrimPrefix(s, "r/")
	return strings.TrimSpace(s)
}

// ValidateSubreddit checks an already normalized name. It never panics and
// returns a *ValidationError describing the first rule broken.
func ValidateSubreddit(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return &ValidationError{Name: name, Reason: "subreddit name cannot be empty"}
	case n < MinSubredditLen:
		return &ValidationError{Name: name, Reason: "subreddit name must be at least 2 characters"}
	case n > MaxSubredditLen:
		return &ValidationError{Name: name, Reason: "subreddit name cannot be longer than 21 characters"}
	case strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_"):
		return &ValidationError{Name: name, Reason: "subreddit name cannot start or end with an underscore"}
	}
	for i := 0; i < len(name); i++ {
		if !isSubredditByte(name[i]) {
			return &ValidationError{Name: name, Reason: "subreddit name can only contain letters, numbers and underscores"}
		}
	}
	return nil
}

func isSubredditByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
