package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient(New(ClientDefaults))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, time.Second, cfg.Sync.BackoffBase)
	assert.Equal(t, 6, cfg.Sync.BackoffCap)
	assert.Equal(t, 15*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Conflict.ClockSkew)
	assert.Equal(t, 5*time.Minute, cfg.Conflict.ServerWinsAfter)
	assert.Equal(t, 5*time.Second, cfg.Background.AckTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadClient_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := `
server_url: http://sync.local:9000
sync:
  concurrency: 8
  backoff_base: 250ms
conflict:
  manual_version_conflicts: true
  significant_fields:
    inventory_item: [name, qty]
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("STOCKSYNC_SYNC_CONCURRENCY", "2")
	t.Setenv("STOCKSYNC_LOG_LEVEL", "debug")

	v := New(ClientDefaults)
	require.NoError(t, ReadFile(v, path))
	cfg, err := LoadClient(v)
	require.NoError(t, err)

	assert.Equal(t, "http://sync.local:9000", cfg.ServerURL)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.BackoffBase)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.True(t, cfg.Conflict.ManualVersionConflicts)
	assert.Equal(t, []string{"name", "qty"}, cfg.Conflict.SignificantFields["inventory_item"])
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestReadFile_Missing(t *testing.T) {
	v := New(ClientDefaults)
	assert.NoError(t, ReadFile(v, ""))
	assert.Error(t, ReadFile(v, filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		modify  func(*ClientConfig)
		name    string
		wantErr bool
	}{
		{name: "valid", modify: func(*ClientConfig) {}},
		{name: "zero concurrency", modify: func(c *ClientConfig) { c.Sync.Concurrency = 0 }, wantErr: true},
		{name: "negative retries", modify: func(c *ClientConfig) { c.Sync.MaxRetries = -1 }, wantErr: true},
		{name: "empty server", modify: func(c *ClientConfig) { c.ServerURL = "" }, wantErr: true},
		{name: "zero timeout", modify: func(c *ClientConfig) { c.Sync.RequestTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadClient(New(ClientDefaults))
			require.NoError(t, err)
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLoadServer(t *testing.T) {
	t.Setenv("STOCKSYNC_ADDR", ":9090")
	cfg, err := LoadServer(New(ServerDefaults))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 100, cfg.RateBurst)
}
