package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSubreddit is returned when a lane for the subreddit already exists.
	ErrDuplicateSubreddit = errors.New("subreddit already has a lane")
	// ErrLaneNotFound is returned when a lane id is unknown to the store.
	ErrLaneNotFound = errors.New("lane not found")
)

// ValidationError reports a malformed subreddit name.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid subreddit %q: %s", e.Name, e.Reason)
}

// FetchKind classifies a failed remote fetch.
type FetchKind int

const (
	FetchNotFound FetchKind = iota + 1
	FetchForbidden
	FetchRateLimited
	FetchAllRelaysExhausted
	FetchTimeout
	FetchMalformedResponse
)

func (k FetchKind) String() string {
	switch k {
	case FetchNotFound:
		return "not_found"
	case FetchForbidden:
		return "forbidden"
	case FetchRateLimited:
		return "rate_limited"
	case FetchAllRelaysExhausted:
		return "all_relays_exhausted"
	case FetchTimeout:
		return "timeout"
	case FetchMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// FetchError is returned by collectors and the relay client.
type FetchError struct {
	Kind   FetchKind
	Status int    // HTTP status when one was received
	Relay  string // relay prefix of the failing attempt, if any
	Err    error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Relay != "" {
		msg += " via " + e.Relay
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether the failure describes a relay rather than the
// remote resource, so another relay may succeed.
func (e *FetchError) Temporary() bool {
	switch e.Kind {
	case FetchTimeout, FetchMalformedResponse, FetchAllRelaysExhausted:
		return true
	}
	return false
}

// FetchErrorForStatus maps the semantic HTTP statuses to a terminal FetchError.
// It returns nil for any other status.
func FetchErrorForStatus(status int) *FetchError {
	switch status {
	case 404:
		return &FetchError{Kind: FetchNotFound, Status: status}
	case 403:
		return &FetchError{Kind: FetchForbidden, Status: status}
	case 429:
		return &FetchError{Kind: FetchRateLimited, Status: status}
	}
	return nil
}

// PersistenceError wraps a failure of the host key-value store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UserMessage turns any error from the lane operations into a message fit for
// display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		verr *ValidationError
		ferr *FetchError
		perr *PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		return capitalize(verr.Reason)
	case errors.Is(err, ErrDuplicateSubreddit):
		return "That subreddit is already on your dashboard"
	case errors.Is(err, ErrLaneNotFound):
		return "Lane not found"
	case errors.As(err, &ferr):
		switch ferr.Kind {
		case FetchNotFound:
			return "Subreddit does not exist or is private"
		case FetchForbidden:
			return "Subreddit is private or cannot be accessed"
		case FetchRateLimited:
			return "Rate limit exceeded. Please wait a few minutes and try again"
		default:
			return "Network error: cannot reach Reddit. Please check your connection"
		}
	case errors.As(err, &perr):
		return "Could not save your lanes"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled"
	}
	return "Something went wrong: " + err.Error()
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
