package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/config"
	"github.com/pithecene-io/mstream/notify"
	"github.com/pithecene-io/mstream/notify/redis"
	"github.com/pithecene-io/mstream/notify/webhook"
)

// Notifier types.
const (
	notifyWebhook = "webhook"
	notifyRedis   = "redis"
)

// NotifyFlags returns the flags configuring document_stored events.
func NotifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "notify",
			Usage: "Publish a document_stored event after --store: webhook, redis",
		},
		&cli.StringFlag{
			Name:  "notify-url",
			Usage: "Webhook URL or redis://host:port[/db]",
		},
		&cli.StringFlag{
			Name:  "notify-channel",
			Usage: "Redis pub/sub channel (default: " + redis.DefaultChannel + ")",
		},
		&cli.DurationFlag{
			Name:  "notify-timeout",
			Usage: "Per-attempt timeout",
			Value: 10 * time.Second,
		},
		&cli.IntFlag{
			Name:  "notify-retries",
			Usage: "Retries after a failed attempt",
			Value: 3,
		},
		&cli.StringSliceFlag{
			Name:  "notify-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
	}
}

type notifyConfig struct {
	kind    string
	url     string
	channel string
	headers map[string]string
	timeout time.Duration
	retries int
}

// parseNotifyConfig resolves notifier settings for kind. Config headers are
// merged under --notify-header.
func parseNotifyConfig(c *cli.Context, cfg *config.Config, kind string) (*notifyConfig, error) {
	nc := configVal(cfg, func(c *config.Config) config.NotifyConfig { return c.Notify })

	switch kind {
	case notifyWebhook, notifyRedis:
	default:
		return nil, fmt.Errorf("unknown notify type %q (want webhook or redis)", kind)
	}

	out := &notifyConfig{
		kind:    kind,
		url:     resolveString(c, "notify-url", nc.URL),
		channel: resolveString(c, "notify-channel", nc.Channel),
		timeout: resolveDuration(c, "notify-timeout", nc.Timeout.Duration),
		retries: c.Int("notify-retries"),
		headers: make(map[string]string, len(nc.Headers)),
	}
	if out.url == "" {
		return nil, fmt.Errorf("--notify-url is required when --notify=%s", kind)
	}
	if !c.IsSet("notify-retries") && nc.Retries != nil {
		out.retries = *nc.Retries
	}
	for k, v := range nc.Headers {
		out.headers[k] = v
	}
	for _, h := range c.StringSlice("notify-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --notify-header %q: want key=value", h)
		}
		out.headers[k] = v
	}
	return out, nil
}

func (nc *notifyConfig) open() (notify.Notifier, error) {
	if nc.kind == notifyRedis {
		return redis.New(redis.Config{
			URL:     nc.url,
			Channel: nc.channel,
			Timeout: nc.timeout,
			Retries: nc.retries,
		})
	}
	return webhook.New(webhook.Config{
		URL:     nc.url,
		Headers: nc.headers,
		Timeout: nc.timeout,
		Retries: nc.retries,
	})
}

// openNotifiers returns the configured notifiers, or nil when --notify and
// notify.type are both unset.
func openNotifiers(c *cli.Context, cfg *config.Config) ([]notify.Notifier, error) {
	kind := resolveString(c, "notify", configVal(cfg, func(c *config.Config) string { return c.Notify.Type }))
	if kind == "" {
		return nil, nil
	}
	nc, err := parseNotifyConfig(c, cfg, kind)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitInvalidInput)
	}
	n, err := nc.open()
	if err != nil {
		return nil, cli.Exit(err.Error(), exitInvalidInput)
	}
	return []notify.Notifier{n}, nil
}
