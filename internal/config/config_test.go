package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyvra-tech/node-reward-monitor/pkg/errors"
)

var configKeys = []string{
	"API_URL", "API_TOKEN", "API_TOKEN_NAME", "IDENTITIES_FILE", "WEBHOOK_URL",
	"USE_PROXY", "PROXY_URL", "POLL_INTERVAL", "RETRY_DELAY", "REQUEST_TIMEOUT",
	"JITTER_MIN", "JITTER_MAX", "TIME_OFFSET_HOURS", "ALWAYS_NOTIFY",
	"REPORT_REMOVED_NODES", "KEY_PREFIX_LENGTH", "MAX_CONCURRENT_IDENTITIES",
	"WEBHOOK_RATE_PER_MINUTE", "STATUS_REPORT_CRON", "SERVER_ENABLED",
	"SERVER_HOST", "SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/robot")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 300*time.Second, cfg.Schedule.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Schedule.RetryDelay)
	assert.Equal(t, 8*time.Hour, cfg.Monitor.TimeOffset)
	assert.Equal(t, 20, cfg.Monitor.KeyPrefixLength)
	assert.False(t, cfg.Monitor.AlwaysNotify)
	assert.True(t, cfg.Monitor.ReportRemovedNodes)
	assert.False(t, cfg.Proxy.Enabled)
	assert.Equal(t, "", cfg.Proxy.Effective())
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 4622, cfg.Server.Port)

	require.Len(t, cfg.Identities, 1)
	assert.Equal(t, "default", cfg.Identities[0].Name)
	assert.Equal(t, "secret", cfg.Identities[0].Credential)
	assert.False(t, cfg.MultiIdentity)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("API_TOKEN_NAME", "main")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/robot")
	t.Setenv("USE_PROXY", "true")
	t.Setenv("PROXY_URL", "http://proxy:3128")
	t.Setenv("POLL_INTERVAL", "60")
	t.Setenv("RETRY_DELAY", "1500ms")
	t.Setenv("TIME_OFFSET_HOURS", "0")
	t.Setenv("ALWAYS_NOTIFY", "true")
	t.Setenv("STATUS_REPORT_CRON", "0 9 * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Identities[0].Name)
	assert.Equal(t, "http://proxy:3128", cfg.Proxy.Effective())
	assert.Equal(t, time.Minute, cfg.Schedule.PollInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Schedule.RetryDelay)
	assert.Equal(t, time.Duration(0), cfg.Monitor.TimeOffset)
	assert.True(t, cfg.Monitor.AlwaysNotify)
	assert.Equal(t, "0 9 * * *", cfg.Schedule.StatusReportCron)
}

func TestLoad_IdentitiesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "identities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identities:
  - name: Token1
    token: first
  - name: Token2
    token: second
`), 0o600))
	t.Setenv("IDENTITIES_FILE", path)
	t.Setenv("API_TOKEN", "ignored")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/robot")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.MultiIdentity)
	require.Len(t, cfg.Identities, 2)
	assert.Equal(t, "Token2", cfg.Identities[1].Name)
	assert.Equal(t, "second", cfg.Identities[1].Credential)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Missing credentials",
			env:  map[string]string{"WEBHOOK_URL": "https://hooks.example.com/robot"},
		},
		{
			name: "Missing webhook",
			env:  map[string]string{"API_TOKEN": "secret"},
		},
		{
			name: "Inverted jitter",
			env: map[string]string{
				"API_TOKEN": "secret", "WEBHOOK_URL": "https://hooks.example.com/robot",
				"JITTER_MIN": "10s", "JITTER_MAX": "2s",
			},
		},
		{
			name: "Missing identities file",
			env: map[string]string{
				"IDENTITIES_FILE": "/nonexistent/identities.yaml",
				"WEBHOOK_URL":     "https://hooks.example.com/robot",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestParseIdentities(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		expectCount int
		expectError bool
	}{
		{
			name:        "Valid",
			data:        "identities:\n  - name: a\n    token: x\n  - name: b\n    token: y\n",
			expectCount: 2,
		},
		{name: "Empty list", data: "identities: []\n", expectError: true},
		{name: "Missing name", data: "identities:\n  - token: x\n", expectError: true},
		{name: "Missing token", data: "identities:\n  - name: a\n", expectError: true},
		{name: "Duplicate name", data: "identities:\n  - {name: a, token: x}\n  - {name: a, token: y}\n", expectError: true},
		{name: "Not YAML", data: "identities: [unclosed", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identities, err := ParseIdentities([]byte(tt.data))
			if tt.expectError {
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Len(t, identities, tt.expectCount)
		})
	}
}
