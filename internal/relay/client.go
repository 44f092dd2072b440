// Package relay reaches the remote feed through a rotating list of relay
// endpoints. Each logical request tries the relays in order starting from the
// one that last succeeded; relay-level failures (timeouts, transport errors,
// unexpected statuses, non-JSON bodies) move on to the next relay, while 404,
// 403 and 429 describe the remote resource and end the request at once.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/qepting91/reddit-lanes/internal/domain"
	"golang.org/x/time/rate"
)

// DefaultRelays are public CORS relays that accept a percent-encoded target.
var DefaultRelays = []string{
	"https://api.allorigins.win/raw?url=",
	"https://corsproxy.io/?",
	"https://cors.bridged.cc/",
	"https://jsonp.afeld.me/?url=",
}

// DefaultObsolete are relay prefixes that older snapshots may have baked into
// target URLs.
var DefaultObsolete = []string{
	"https://cors-anywhere.herokuapp.com/",
}

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Config configures a Client.
type Config struct {
	Relays     []string
	Obsolete   []string
	Timeout    time.Duration
	UserAgent  string
	Limiter    *rate.Limiter // nil means unlimited
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	relays    []string
	obsolete  []string
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	http      *http.Client
	logger    *slog.Logger

	mu      sync.Mutex
	current int
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.Relays) == 0 {
		return nil, errors.New("relay: at least one relay is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		relays:    append([]string(nil), cfg.Relays...),
		obsolete:  cfg.Obsolete,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		limiter:   cfg.Limiter,
		http:      cfg.HTTPClient,
		logger:    logger,
	}
	if c.obsolete == nil {
		c.obsolete = DefaultObsolete
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

// Current returns the index of the relay tried first on the next call.
func (c *Client) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Relays returns the configured relay prefixes.
func (c *Client) Relays() []string {
	return append([]string(nil), c.relays...)
}

// Clean removes any obsolete relay prefixes from target. It is idempotent.
func (c *Client) Clean(target string) string {
	for {
		trimmed := false
		for _, p := range c.obsolete {
			if p != "" && strings.HasPrefix(target, p) {
				target = strings.TrimPrefix(target, p)
				trimmed = true
			}
		}
		if !trimmed {
			return target
		}
	}
}

// Get fetches target through the relays and returns its JSON body.
func (c *Client) Get(ctx context.Context, target string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target = c.Clean(target)
	encoded := url.QueryEscape(target)

	c.mu.Lock()
	start := c.current
	c.mu.Unlock()

	var last error
	for i := range c.relays {
		idx := (start + i) % len(c.relays)
		relay := c.relays[idx]

		c.logger.Debug("trying relay", "relay", relay, "index", idx, "target", target)
		body, err := c.attempt(ctx, relay, relay+encoded)
		if err == nil {
			c.mu.Lock()
			c.current = idx
			c.mu.Unlock()
			return body, nil
		}

		var ferr *domain.FetchError
		if errors.As(err, &ferr) && !ferr.Temporary() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("relay failed", "relay", relay, "index", idx, "err", err)
		last = err
	}

	return nil, &domain.FetchError{
		Kind: domain.FetchAllRelaysExhausted,
		Err:  fmt.Errorf("%d relays tried: %w", len(c.relays), last),
	}
}

// GetJSON fetches target and decodes it into v.
func (c *Client) GetJSON(ctx context.Context, target string, v any) error {
	body, err := c.Get(ctx, target)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (c *Client) attempt(ctx context.Context, relay, proxied string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxied, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchMalformedResponse, Relay: relay, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.FetchError{Kind: domain.FetchTimeout, Relay: relay, Err: err}
		}
		return nil, fmt.Errorf("relay %s: %w", relay, err)
	}
	defer resp.Body.Close()

	if ferr := domain.FetchErrorForStatus(resp.StatusCode); ferr != nil {
		ferr.Relay = relay
		return nil, ferr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("relay %s: unexpected status %d", relay, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.FetchError{Kind: domain.FetchTimeout, Relay: relay, Err: err}
		}
		return nil, fmt.Errorf("relay %s: read body: %w", relay, err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || (body[0] != '{' && body[0] != '[') || !json.Valid(body) {
		return nil, &domain.FetchError{
			Kind:   domain.FetchMalformedResponse,
			Status: resp.StatusCode,
			Relay:  relay,
			Err:    errors.New("body is not a JSON object or array"),
		}
	}
	return json.RawMessage(body), nil
}
