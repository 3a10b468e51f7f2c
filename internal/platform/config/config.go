// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the asylum server.
type Config struct {
	HTTPAddr string `env:"ASYLUM_HTTP_ADDR" envDefault:":3001"`
	LogLevel string `env:"ASYLUM_LOG_LEVEL" envDefault:"info"`

	// Upstream superhero API. The key never leaves the server.
	SuperheroBaseURL string `env:"SUPERHERO_BASE_URL" envDefault:"https://superheroapi.com/api"`
	SuperheroAPIKey  string `env:"SUPERHERO_API_KEY"`
	// RosterSourceURL points intake at another instance's proxy instead of the upstream.
	RosterSourceURL string        `env:"ROSTER_SOURCE_URL"`
	FetchTimeout    time.Duration `env:"ASYLUM_FETCH_TIMEOUT" envDefault:"10s"`
	FetchWorkers    int           `env:"ASYLUM_FETCH_WORKERS" envDefault:"4"`
	Villains        []string      `env:"ASYLUM_VILLAINS" envSeparator:"," envDefault:"joker,riddler,two-face,scarecrow,poison ivy,mr freeze,penguin,harley quinn,clayface,killer croc,bane,mister zsasz"`

	// Proxy responses are cached in memory; zero size disables the cache.
	CacheSize int           `env:"ASYLUM_CACHE_SIZE" envDefault:"256"`
	CacheTTL  time.Duration `env:"ASYLUM_CACHE_TTL" envDefault:"10m"`

	JournalDSN string `env:"ASYLUM_JOURNAL_DSN" envDefault:":memory:"`

	AlertSeconds       int           `env:"ASYLUM_ALERT_SECONDS" envDefault:"150"`
	TickUnit           time.Duration `env:"ASYLUM_TICK_UNIT" envDefault:"1s"`
	FirstEscapeDelay   time.Duration `env:"ASYLUM_FIRST_ESCAPE_DELAY" envDefault:"3s"`
	EscapeMinDelay     time.Duration `env:"ASYLUM_ESCAPE_MIN_DELAY" envDefault:"5s"`
	EscapeDelayRange   time.Duration `env:"ASYLUM_ESCAPE_DELAY_RANGE" envDefault:"5s"`
	MaxEscapesPerBatch int           `env:"ASYLUM_MAX_ESCAPES" envDefault:"4"`
	NoticeTTL          time.Duration `env:"ASYLUM_NOTICE_TTL" envDefault:"5s"`

	// Buffers and batching
	JournalBatch       int           `env:"ASYLUM_JOURNAL_BATCH" envDefault:"256"`
	ClientSendBuffer   int           `env:"ASYLUM_CLIENT_SEND_BUFFER" envDefault:"256"`
	EventPollInterval  time.Duration `env:"ASYLUM_EVENT_POLL_INTERVAL" envDefault:"200ms"`
	// MinActionInterval rate-limits actions per WebSocket client.
	MinActionInterval time.Duration `env:"ASYLUM_MIN_ACTION_INTERVAL" envDefault:"100ms"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.AlertSeconds <= 0:
		return fmt.Errorf("ASYLUM_ALERT_SECONDS must be positive, got %d", c.AlertSeconds)
	case c.TickUnit <= 0:
		return fmt.Errorf("ASYLUM_TICK_UNIT must be positive, got %s", c.TickUnit)
	case c.MaxEscapesPerBatch <= 0:
		return fmt.Errorf("ASYLUM_MAX_ESCAPES must be positive, got %d", c.MaxEscapesPerBatch)
	case c.EscapeMinDelay <= 0 || c.EscapeDelayRange < 0:
		return fmt.Errorf("invalid escape cadence %s + [0, %s)", c.EscapeMinDelay, c.EscapeDelayRange)
	case c.CacheSize > 0 && c.CacheTTL <= 0:
		return fmt.Errorf("ASYLUM_CACHE_TTL must be positive when caching, got %s", c.CacheTTL)
	case c.FetchWorkers <= 0:
		return fmt.Errorf("ASYLUM_FETCH_WORKERS must be positive, got %d", c.FetchWorkers)
	}
	return nil
}
