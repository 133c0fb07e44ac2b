package config

import (
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/piratepartyau/donate/pkg/db"
	"github.com/piratepartyau/donate/pkg/nonce"
	"github.com/piratepartyau/donate/pkg/payment"
	"github.com/piratepartyau/donate/pkg/server"
)

const (
	// DefaultSweepSchedule controls how often abandoned nonces are purged
	DefaultSweepSchedule = "@every 10m"
)

type Config struct {
	// Server is the web server configuration
	Server server.Config `toml:"server"`
	// Payment is the processor connection configuration
	Payment payment.Config `toml:"payment"`
	// Storage configuration
	Storage db.Config `toml:"storage"`
	// Tokens configures the single-use form nonces
	Tokens Tokens `toml:"tokens"`
	// Log is the optional logging configuration
	Log Log `toml:"log"`
}

type Tokens struct {
	// Lifetime is how long an issued nonce stays consumable.
	// Format is "30s", "5m" or "1h".
	Lifetime Duration `toml:"lifetime"`
	// SweepSchedule is a cron expression for purging expired nonces
	SweepSchedule string `toml:"sweep_schedule"`
}

type Log struct {
	// Debug enables debug level logging
	Debug bool `toml:"debug"`
	// Filename to write the log to (instead of stdout)
	Filename string `toml:"filename"`
}

// LoadConfig loads TOML configuration from a file path
func LoadConfig(path string) (*Config, error) {
	config := Config{}
	_, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config file")
	}

	config.applyDefaults(path)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Payment.Endpoint == "" {
		result = multierror.Append(result, errors.New("payment API endpoint is required"))
	}

	if c.Payment.SecretKey == "" {
		result = multierror.Append(result, errors.New("payment secret key is required"))
	}

	if c.Tokens.Lifetime.Duration < 0 {
		result = multierror.Append(result, errors.New("token lifetime must be positive"))
	}

	switch c.Storage.Type {
	case "badger":
		// Dir always has a default
	case "redis":
		if c.Storage.RedisURL == "" {
			result = multierror.Append(result, errors.New("redis URL is required for redis storage"))
		}
	default:
		result = multierror.Append(result, errors.Errorf("unknown storage type %q", c.Storage.Type))
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults(configPath string) {
	if c.Storage.Type == "" {
		c.Storage.Type = "badger"
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(filepath.Dir(configPath), "db")
	}

	if c.Tokens.Lifetime.Duration == 0 {
		c.Tokens.Lifetime.Duration = nonce.DefaultLifetime
	}

	if c.Tokens.SweepSchedule == "" {
		c.Tokens.SweepSchedule = DefaultSweepSchedule
	}

	if c.Server.Mode == "" {
		c.Server.Mode = "testing"
	}

	if c.Server.TemplatesGlob == "" {
		c.Server.TemplatesGlob = filepath.Join(filepath.Dir(configPath), "templates", "*.html")
	}
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}
