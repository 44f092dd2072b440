package collector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/qepting91/reddit-lanes/internal/config"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/relay"
	"golang.org/x/time/rate"
)

// NewCollector selects the correct implementation based on the mode
func NewCollector(cfg config.Config, logger *slog.Logger) (domain.Collector, error) {
	switch cfg.CollectorMode {
	case "relay", "public":
		if cfg.UserAgent == "" {
			return nil, fmt.Errorf("REDDIT_USER_AGENT is required for relay mode")
		}
		client, err := NewRelayClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewPublicClient(client, cfg.FeedBaseURL, logger), nil
	case "api":
		return NewAPIClient(cfg.ClientID, cfg.ClientSecret, cfg.Username, cfg.Password, cfg.UserAgent)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'relay', 'api', or 'mock')", cfg.CollectorMode)
	}
}

// NewRelayClient builds the relay transport from configuration.
func NewRelayClient(cfg config.Config, logger *slog.Logger) (*relay.Client, error) {
	relays := cfg.Relays
	if len(relays) == 0 {
		relays = relay.DefaultRelays
	}
	limit := rate.Inf
	if cfg.RelayRateInterval > 0 {
		limit = rate.Every(cfg.RelayRateInterval)
	}
	burst := cfg.RelayRateBurst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.RelayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return relay.New(relay.Config{
		Relays:    relays,
		Timeout:   timeout,
		UserAgent: cfg.UserAgent,
		Limiter:   rate.NewLimiter(limit, burst),
	}, logger)
}
