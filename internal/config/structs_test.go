package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigYAMLUnmarshaling(t *testing.T) {
	input := `
log_level: debug
scan:
  version_estimate: 3
  fallback: true
locator:
  density_threshold: 0.3
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
batch:
  include: ["*.png", "*.jpg"]
pdf:
  user_password: pw
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Scan.VersionEstimate)
	assert.True(t, cfg.Scan.Fallback)
	assert.InDelta(t, 0.3, cfg.Locator.DensityThreshold, 1e-9)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, []string{"*.png", "*.jpg"}, cfg.Batch.IncludePatterns)
	assert.Equal(t, "pw", cfg.PDF.UserPassword)
}

func TestConfigJSONOmitsPasswords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PDF.UserPassword = "secret"
	cfg.PDF.OwnerPassword = "owner"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "owner")
	assert.Contains(t, string(data), `"max_upload_mb":50`)

	var back Config
	require.NoError(t, json.Unmarshal(data, &back))
	back.PDF.UserPassword = "secret"
	back.PDF.OwnerPassword = "owner"
	assert.Equal(t, *cfg, back)
}
