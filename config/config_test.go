package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/state"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abihost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: badger
  data_dir: /var/lib/abihost
limits:
  max_storage_ops: 10
  max_execution_time: 250ms
log:
  level: debug
  format: json
server:
  addr: 127.0.0.1:8100
metrics:
  enabled: true
  addr: 127.0.0.1:9100
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, state.BadgerBackend, cfg.Storage.Backend)
	assert.Equal(t, uint32(10), cfg.Limits.MaxStorageOps)
	assert.Equal(t, 250*time.Millisecond, cfg.Limits.MaxExecutionTime)
	// unset fields keep their defaults
	assert.Equal(t, uint32(256), cfg.Limits.MaxKeySize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:8100", cfg.Server.Addr)
	assert.Equal(t, filepath.Join("/var/lib/abihost", "code"), cfg.CodeDir())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage: ["))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "limits:\n  memory_pages: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: \"\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server:\n  addr: \":9090\"\nmetrics:\n  enabled: true\n"))
	assert.Error(t, err)
}
