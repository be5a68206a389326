package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8686", cfg.Server.Listen)
	assert.Equal(t, "DEFAULT", cfg.Server.Project)
	assert.Equal(t, "elasticsearch", cfg.Archive.Provider)
	assert.Equal(t, "omnis-alert-records", cfg.Archive.Index)
	assert.Equal(t, "INFO", cfg.Logging.Level)

	assert.Equal(t, 10*time.Second, cfg.Provider.GetRequestTimeout())
	assert.Equal(t, 30*time.Second, cfg.Scheduler.GetResendInterval())
	assert.Equal(t, 10*time.Second, cfg.Scheduler.GetRepeatConfirmInterval())
	assert.Equal(t, time.Second, cfg.Scheduler.GetSyncInterval())
	assert.Equal(t, 5*time.Second, cfg.Slave.GetTimeout())
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  listen: ":9090"
  project: tjh
mysql:
  dsn: "user:pwd@tcp(127.0.0.1:3306)/omnis?parseTime=true"
archive:
  addresses: ["https://es:9200"]
  username: elastic
  password: secret
  index: alerts
  tlsSkipVerify: true
  provider: opensearch
provider:
  requestTimeout: 15s
scheduler:
  resendInterval: 1m
  repeatConfirmInterval: 20s
  syncInterval: 2s
slave:
  targets: ["http://slave-a:8686", "http://slave-b:8686"]
  timeout: 3s
logging:
  level: DEBUG
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "tjh", cfg.Server.Project)
	assert.NotEmpty(t, cfg.MySQL.DSN)
	assert.Equal(t, []string{"https://es:9200"}, cfg.Archive.Addresses)
	assert.Equal(t, "opensearch", cfg.Archive.Provider)
	assert.True(t, cfg.Archive.TLSSkipVerify)
	assert.Equal(t, 15*time.Second, cfg.Provider.GetRequestTimeout())
	assert.Equal(t, time.Minute, cfg.Scheduler.GetResendInterval())
	assert.Equal(t, 20*time.Second, cfg.Scheduler.GetRepeatConfirmInterval())
	assert.Equal(t, 2*time.Second, cfg.Scheduler.GetSyncInterval())
	assert.Len(t, cfg.Slave.Targets, 2)
	assert.Equal(t, 3*time.Second, cfg.Slave.GetTimeout())
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadEnvOverridesLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	cfg, err := Load(writeConfig(t, "logging:\n  level: DEBUG\n"))
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	cfg, err := Load(writeConfig(t, "provider:\n  requestTimeout: not-a-duration\n"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Provider.GetRequestTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unbalanced"))
	require.Error(t, err)
}
