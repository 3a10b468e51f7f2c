package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, "https://superheroapi.com/api", cfg.SuperheroBaseURL)
	assert.Equal(t, 150, cfg.AlertSeconds)
	assert.Equal(t, time.Second, cfg.TickUnit)
	assert.Equal(t, 3*time.Second, cfg.FirstEscapeDelay)
	assert.Equal(t, 5*time.Second, cfg.EscapeMinDelay)
	assert.Equal(t, 5*time.Second, cfg.EscapeDelayRange)
	assert.Equal(t, 4, cfg.MaxEscapesPerBatch)
	assert.Equal(t, 5*time.Second, cfg.NoticeTTL)
	assert.Equal(t, ":memory:", cfg.JournalDSN)
	assert.Len(t, cfg.Villains, 12)
	assert.Contains(t, cfg.Villains, "poison ivy")
	assert.Contains(t, cfg.Villains, "mister zsasz")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ASYLUM_ALERT_SECONDS", "30")
	t.Setenv("ASYLUM_TICK_UNIT", "250ms")
	t.Setenv("ASYLUM_VILLAINS", "joker,bane")
	t.Setenv("SUPERHERO_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.AlertSeconds)
	assert.Equal(t, 250*time.Millisecond, cfg.TickUnit)
	assert.Equal(t, []string{"joker", "bane"}, cfg.Villains)
	assert.Equal(t, "secret", cfg.SuperheroAPIKey)
}

func TestLoad_RejectsNonPositiveAlert(t *testing.T) {
	t.Setenv("ASYLUM_ALERT_SECONDS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASYLUM_ALERT_SECONDS")
}

func TestLoad_CacheSettings(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)

	t.Setenv("ASYLUM_CACHE_TTL", "0s")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASYLUM_CACHE_TTL")

	t.Setenv("ASYLUM_CACHE_SIZE", "0")
	_, err = Load()
	require.NoError(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("ASYLUM_TICK_UNIT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
