package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/config"
	"github.com/pithecene-io/mstream/log"
	"github.com/pithecene-io/mstream/metrics"
	"github.com/pithecene-io/mstream/sink"
)

// Precedence for every setting: explicit CLI flag, then config file, then
// the flag default.

func resolveString(c *cli.Context, flag, cfgVal string) string {
	if c.IsSet(flag) || cfgVal == "" {
		return c.String(flag)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, flag string, cfgVal int) int {
	if c.IsSet(flag) || cfgVal == 0 {
		return c.Int(flag)
	}
	return cfgVal
}

func resolveBool(c *cli.Context, flag string, cfgVal bool) bool {
	if c.IsSet(flag) {
		return c.Bool(flag)
	}
	return cfgVal || c.Bool(flag)
}

func resolveDuration(c *cli.Context, flag string, cfgVal time.Duration) time.Duration {
	if c.IsSet(flag) || cfgVal == 0 {
		return c.Duration(flag)
	}
	return cfgVal
}

// configVal reads a config value, tolerating a nil config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}

// loadConfig loads --config when given. Without it, returns nil.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitInvalidInput)
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg *config.Config) *log.Logger {
	level := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level }))
	return log.New(log.Options{Level: level, Output: c.App.ErrWriter})
}

// storeChoice holds the resolved document store settings.
type storeChoice struct {
	sink    sink.Config
	timeout time.Duration
}

func resolveStore(c *cli.Context, cfg *config.Config) storeChoice {
	get := func(f func(*config.Config) string) string { return configVal(cfg, f) }
	return storeChoice{
		sink: sink.Config{
			Backend:      resolveString(c, "storage-backend", get(func(c *config.Config) string { return c.Storage.Backend })),
			Path:         resolveString(c, "storage-path", get(func(c *config.Config) string { return c.StoragePath() })),
			Region:       resolveString(c, "storage-region", get(func(c *config.Config) string { return c.Storage.Region })),
			Endpoint:     resolveString(c, "storage-endpoint", get(func(c *config.Config) string { return c.Storage.Endpoint })),
			UsePathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })),
			Compression:  resolveString(c, "compression", get(func(c *config.Config) string { return c.Compression })),
		},
		timeout: resolveDuration(c, "storage-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Storage.Timeout.Duration })),
	}
}

// configured reports whether a store was asked for at all.
func (s storeChoice) configured() bool {
	return s.sink.Backend != ""
}

func (s storeChoice) context(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

func openStore(ctx context.Context, choice storeChoice, logger *log.Logger, collector *metrics.Collector) (*sink.Store, error) {
	if !choice.configured() {
		return nil, cli.Exit("--storage-backend is required (or storage.backend in the config file)", exitInvalidInput)
	}
	if err := choice.sink.Validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid storage config: %v", err), exitInvalidInput)
	}
	store, err := sink.New(ctx, choice.sink, logger, collector)
	if err != nil {
		return nil, storageExit(err)
	}
	return store, nil
}

// storageExit maps a store failure to exitStorage. Invalid document names
// are input errors.
func storageExit(err error) error {
	if errors.Is(err, sink.ErrInvalidName) {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	return cli.Exit(fmt.Sprintf("storage: %v", err), exitStorage)
}
