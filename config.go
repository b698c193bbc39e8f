package hostpool

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Duration wraps time.Duration so TOML values can be written as "500ms",
// "30s" and so on.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// HostConfig describes one endpoint.
type HostConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Protocol string `toml:"protocol"`
}

// URL builds the host's base URL, defaulting to http on port 8086.
func (h HostConfig) URL() string {
	protocol := h.Protocol
	if protocol == "" {
		protocol = "http"
	}
	port := h.Port
	if port == 0 {
		port = 8086
	}
	return fmt.Sprintf("%s://%s:%d", protocol, h.Host, port)
}

// Config is the TOML representation of a pool.
type Config struct {
	Hosts []HostConfig `toml:"hosts"`

	Backoff       string   `toml:"backoff"`
	BaseDelay     Duration `toml:"base_delay"`
	MaxDelay      Duration `toml:"max_delay"`
	Multiplier    float64  `toml:"multiplier"`
	DisableJitter bool     `toml:"disable_jitter"`

	Timeout          Duration `toml:"timeout"`
	FailureStatusMin int      `toml:"failure_status_min"`
	FailureStatusMax int      `toml:"failure_status_max"`

	MaxFailures       int      `toml:"max_failures"`
	FailureWindow     Duration `toml:"failure_window"`
	MaxFailurePercent float64  `toml:"max_failure_percent"`

	ReclaimInterval Duration `toml:"reclaim_interval"`
}

// LoadConfig reads and validates a TOML pool configuration.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	var c Config
	if err := toml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return errors.New("hostpool: config declares no hosts")
	}
	for _, h := range c.Hosts {
		if h.Host == "" {
			return errors.New("hostpool: host entry missing host name")
		}
	}
	switch BackoffKind(c.Backoff) {
	case "", BackoffConstant, BackoffExponential:
	default:
		return errors.Errorf("hostpool: unknown backoff strategy %q", c.Backoff)
	}
	return nil
}

// Options translates the config into pool options.
func (c *Config) Options(logger *zap.Logger) Options {
	return Options{
		Logger:            logger,
		Backoff:           BackoffKind(c.Backoff),
		BaseDelay:         c.BaseDelay.Duration,
		MaxDelay:          c.MaxDelay.Duration,
		Multiplier:        c.Multiplier,
		DisableJitter:     c.DisableJitter,
		Timeout:           c.Timeout.Duration,
		FailureStatusMin:  c.FailureStatusMin,
		FailureStatusMax:  c.FailureStatusMax,
		MaxFailures:       c.MaxFailures,
		FailureWindow:     c.FailureWindow.Duration,
		MaxFailurePercent: c.MaxFailurePercent,
		ReclaimInterval:   c.ReclaimInterval.Duration,
	}
}

// NewPool builds a Pool from the config.
func (c *Config) NewPool(transport Transport, logger *zap.Logger) (Pool, error) {
	urls := make([]string, len(c.Hosts))
	for i, h := range c.Hosts {
		urls[i] = h.URL()
	}
	return NewWithOptions(urls, transport, c.Options(logger))
}
