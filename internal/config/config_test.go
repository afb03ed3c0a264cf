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

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "SPY", cfg.BenchmarkSymbol)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.02, cfg.RiskFreeRate)
	assert.False(t, cfg.DevMode)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BENCHMARK_SYMBOL", "VTI")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("RISK_FREE_RATE", "0.045")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "VTI", cfg.BenchmarkSymbol)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0.045, cfg.RiskFreeRate)
	assert.True(t, cfg.DevMode)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("CACHE_TTL", "whenever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestValidate_Rejections(t *testing.T) {
	base := Config{Port: 8080, CacheTTL: time.Hour, RiskFreeRate: 0.02}

	bad := base
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Port = 70000
	assert.Error(t, bad.Validate())

	bad = base
	bad.CacheTTL = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.RiskFreeRate = 1.5
	assert.Error(t, bad.Validate())

	assert.NoError(t, base.Validate())
}
