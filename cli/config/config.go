package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/mstream/types"
)

// Config is the mstream build configuration file.
// Every field is optional; CLI flags override what is set here.
type Config struct {
	Boundary    string            `yaml:"boundary" toml:"boundary"`
	Envelope    bool              `yaml:"envelope" toml:"envelope"`
	Mime        string            `yaml:"mime" toml:"mime"`
	BufferSize  int               `yaml:"buffer_size" toml:"buffer_size"`
	Fields      []types.FieldSpec `yaml:"fields" toml:"fields"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Compression string            `yaml:"compression" toml:"compression"`
	Log         LogConfig         `yaml:"log" toml:"log"`
	Notify      NotifyConfig      `yaml:"notify" toml:"notify"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Backend     string   `yaml:"backend" toml:"backend"`
	Path        string   `yaml:"path" toml:"path"`
	Region      string   `yaml:"region" toml:"region"`
	Endpoint    string   `yaml:"endpoint" toml:"endpoint"`
	S3PathStyle bool     `yaml:"s3_path_style" toml:"s3_path_style"`
	Prefix      string   `yaml:"prefix" toml:"prefix"`
	Timeout     Duration `yaml:"timeout" toml:"timeout"`
}

// NotifyConfig selects where document_stored events are published.
type NotifyConfig struct {
	// Type is "webhook" or "redis". Empty disables notifications.
	Type    string            `yaml:"type" toml:"type"`
	URL     string            `yaml:"url" toml:"url"`
	Channel string            `yaml:"channel,omitempty" toml:"channel"`
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers"`
	Timeout Duration          `yaml:"timeout,omitempty" toml:"timeout"`
	// Retries is a pointer so an explicit 0 can override the flag default.
	Retries *int `yaml:"retries,omitempty" toml:"retries"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// Duration wraps time.Duration so config files can say "30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler (used by the TOML decoder).
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the values that can be checked without touching the
// filesystem or the network.
func (c *Config) Validate() error {
	var errs error
	if c.BufferSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("buffer_size must not be negative, got %d", c.BufferSize))
	}
	switch c.Compression {
	case "", "none", "lz4":
	default:
		errs = multierr.Append(errs, fmt.Errorf("compression must be none or lz4, got %q", c.Compression))
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "fs", "s3":
		if c.Storage.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("storage.path is required for backend %q", c.Storage.Backend))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("storage.backend must be fs, s3 or memory, got %q", c.Storage.Backend))
	}

	switch c.Notify.Type {
	case "", "webhook", "redis":
	default:
		errs = multierr.Append(errs, fmt.Errorf("notify.type must be webhook or redis, got %q", c.Notify.Type))
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		errs = multierr.Append(errs, fmt.Errorf("notify.retries must not be negative, got %d", *c.Notify.Retries))
	}

	// Repeated names are legal in multipart/form-data.
	for i := range c.Fields {
		if err := c.Fields[i].Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fields[%d]: %w", i, err))
		}
	}
	return errs
}

// StoragePath joins the storage path and prefix.
func (c *Config) StoragePath() string {
	switch {
	case c.Storage.Prefix == "":
		return c.Storage.Path
	case c.Storage.Path == "":
		return c.Storage.Prefix
	default:
		return c.Storage.Path + "/" + c.Storage.Prefix
	}
}
