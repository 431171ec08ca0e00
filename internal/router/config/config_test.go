package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 336*time.Hour, cfg.DefaultStoppingPeriod)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.CollaboratorTimeout)
	assert.Equal(t, 4, cfg.DispatchWorkers)
	assert.Equal(t, 256, cfg.DispatchQueueSize)
	assert.Equal(t, uint64(5), cfg.DispatchMaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.DispatchBackoff)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	content := "SERVER_ADDRESS=127.0.0.1:9000\n" +
		"POSTGRES_CONN=postgres://u:p@db:5432/tenders\n" +
		"DEFAULT_STOPPING_PERIOD=48h\n" +
		"DISPATCH_WORKERS=2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))
	t.Setenv("DISPATCH_WORKERS", "8")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 48*time.Hour, cfg.DefaultStoppingPeriod)
	assert.Equal(t, 8, cfg.DispatchWorkers)
}

func TestLoadConfig_PostgresRequiresConn(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	for _, key := range []string{"POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DATABASE"} {
		t.Setenv(key, "")
	}

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestLoadConfig_PostgresConnFromParts(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_CONN", "")
	t.Setenv("POSTGRES_USERNAME", "app")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("POSTGRES_DATABASE", "tenders")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:secret@db:5432/tenders?sslmode=disable", cfg.PostgresConn)
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{StorageDriver: "sqlite", DefaultStoppingPeriod: time.Hour, DispatchWorkers: 1, DispatchQueueSize: 1}
	require.Error(t, cfg.Validate())
}
