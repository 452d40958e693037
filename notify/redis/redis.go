// Package redis publishes document events on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/mstream/notify"
)

// DefaultChannel is the default pub/sub channel.
const DefaultChannel = "mstream:document_stored"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// Config configures the Redis notifier.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL     string
	Channel string
	// Timeout bounds one PUBLISH (default 5s).
	Timeout time.Duration
	Retries int
	// Backoff is the first retry delay (default notify.DefaultBackoff).
	Backoff time.Duration
}

// Notifier publishes events via Redis PUBLISH.
type Notifier struct {
	config Config
	client *goredis.Client
}

// New creates a Redis notifier. The connection is opened lazily.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = notify.DefaultBackoff
	}
	return &Notifier{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends event as JSON to the configured channel.
func (n *Notifier) Publish(ctx context.Context, event *notify.DocumentStored) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	return notify.Retry(ctx, "redis", n.config.Retries, n.config.Backoff, func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
		err := n.client.Publish(pctx, n.config.Channel, body).Err()
		if errors.Is(err, goredis.ErrClosed) {
			return notify.Permanent(err)
		}
		return err
	})
}

// Close closes the connection pool.
func (n *Notifier) Close() error {
	return n.client.Close()
}

var _ notify.Notifier = (*Notifier)(nil)
