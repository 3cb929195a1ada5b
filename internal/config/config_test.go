package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
database:
  host: db.local
  user: posture
  name: posture
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 5*time.Second, cfg.DNSTimeout())
	assert.Equal(t, 1, cfg.DNS.Retries)
	assert.Equal(t, 24*time.Hour, cfg.MonitorInterval())
	assert.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.False(t, cfg.Minio.Enabled)
}

func TestParsePostgres(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: postgres
  host: pg.local
  user: posture
  password: pw
  name: posture
  sslmode: require
monitor:
  enabled: true
  intervalHours: 6
  allowedPlans: [pro, enterprise]
auth:
  acme: key-1
`))
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "host=pg.local port=5432 user=posture password=pw dbname=posture sslmode=require", cfg.PostgresDSN())
	assert.Equal(t, 6*time.Hour, cfg.MonitorInterval())
	assert.Equal(t, []string{"pro", "enterprise"}, cfg.Monitor.AllowedPlans)
	assert.Equal(t, map[string]string{"acme": "key-1"}, cfg.Auth)
}

func TestMySQLDSN(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)
	cfg.Database.Password = "s3cret"
	assert.Equal(t, "posture:s3cret@tcp(db.local:3306)/posture?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("MINIO_SECRET_KEY", "minio-env")

	cfg, err := Parse([]byte(minimal + "  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "minio-env", cfg.Minio.SecretKey)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"unknown driver":     minimal + "  driver: sqlite\n",
		"missing host":       "database:\n  user: u\n  name: n\n",
		"minio without host": minimal + "minio:\n  enabled: true\n  bucketName: b\n",
		"port out of range":  minimal + "server:\n  port: 70000\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.local", cfg.Database.Host)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")
}
