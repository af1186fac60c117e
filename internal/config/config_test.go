// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfgDefault, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfgDefault.Logger.Level)
	assert.Equal(t, "console", cfgDefault.Logger.Format)
	assert.Equal(t, 8080, cfgDefault.Server.Port)
	assert.True(t, cfgDefault.Browser.Headless)
	assert.Equal(t, "https://profound-conkies-c25ade.netlify.app/#", cfgDefault.Portal.URL)
	assert.Equal(t, 10*time.Second, cfgDefault.Portal.StepTimeout)
	assert.Equal(t, 2*time.Second, cfgDefault.Portal.DownloadSettleWait)
	assert.Equal(t, 120*time.Second, cfgDefault.Checkpoint.Timeout)
	assert.Equal(t, "gemini-2.0-flash", cfgDefault.Oracle.Model)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9999
portal:
  url: "https://staging.example/#"
  step_timeout: 5s
checkpoint:
  timeout: 30s
logger:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "https://staging.example/#", cfg.Portal.URL)
	assert.Equal(t, 5*time.Second, cfg.Portal.StepTimeout)
	assert.Equal(t, 30*time.Second, cfg.Checkpoint.Timeout)
	assert.Equal(t, "debug", cfg.Logger.Level)
	// Untouched sections keep their defaults.
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "gemini-2.0-flash", cfg.Oracle.Model)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EIDAGENT_SERVER_PORT", "7070")
	t.Setenv("EIDAGENT_ORACLE_API_KEY", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Oracle.APIKey)
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"empty portal url", func(c *Config) { c.Portal.URL = "" }},
		{"zero step timeout", func(c *Config) { c.Portal.StepTimeout = 0 }},
		{"zero checkpoint timeout", func(c *Config) { c.Checkpoint.Timeout = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
