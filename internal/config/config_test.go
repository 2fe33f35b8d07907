package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "mapcask", cfg.Redis.Namespace)
	assert.Empty(t, cfg.S3.Bucket)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
log_level: debug
store_driver: redis
jwt_secret: from-file
redis:
  addr: cache:6379
kafka:
  brokers: [k1:9092]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port, "env wins over file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "mapcask.events", cfg.Kafka.Topic, "defaults survive a partial file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS)
}

func TestLoad_PostgresURLFromParts(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "cask")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://postgres:postgres@db:5432/cask?sslmode=disable", cfg.DatabaseURL)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}
