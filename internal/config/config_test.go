package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.App.Port)
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, "memory", c.Blob.Driver)
	assert.Equal(t, 24*time.Hour, c.JWT.TTL)
	assert.Equal(t, 8, c.Fanout.Concurrency)
	assert.Equal(t, 2*time.Second, c.Subscription.RetryInterval)
	assert.False(t, c.RabbitMQ.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  port: ":9000"
store:
  driver: gorm
  db_driver: postgres
  dsn: postgres://localhost/rently
fanout:
  concurrency: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RENTLY_STORE_DB_DRIVER", "mysql")
	t.Setenv("RENTLY_JWT_TTL", "30m")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.App.Port)
	assert.Equal(t, "gorm", c.Store.Driver)
	assert.Equal(t, "mysql", c.Store.DBDriver)
	assert.Equal(t, "postgres://localhost/rently", c.Store.DSN)
	assert.Equal(t, 30*time.Minute, c.JWT.TTL)
	assert.Equal(t, 1, c.Fanout.Concurrency)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
