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
	conf, _, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "5050", conf.Server.Port)
	assert.Equal(t, 16667*time.Microsecond, conf.Server.TickRate)
	assert.Equal(t, "http", conf.Telemetry.Driver)
	assert.Equal(t, 5*time.Second, conf.Telemetry.Timeout)
	assert.False(t, conf.Database.Enabled)
	assert.Equal(t, "config/protocol.yaml", conf.Experiment.ProtocolPath)
}

func TestLoad_FileAndEnv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "config.yaml"), []byte(`
server:
  port: "6060"
  tick_rate: 10ms
telemetry:
  driver: redis
  redis_addr: localhost:6379
`), 0o644))
	t.Setenv("RTEXP_SERVER_PORT", "7070")

	conf, _, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "7070", conf.Server.Port)
	assert.Equal(t, 10*time.Millisecond, conf.Server.TickRate)
	assert.Equal(t, "redis", conf.Telemetry.Driver)
	assert.Equal(t, "localhost:6379", conf.Telemetry.RedisAddr)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("RTEXP_TELEMETRY_DRIVER", "carrier-pigeon")
	_, _, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_NATSNeedsURL(t *testing.T) {
	t.Setenv("RTEXP_TELEMETRY_DRIVER", "nats")
	_, _, err := Load(t.TempDir())
	require.Error(t, err)

	t.Setenv("RTEXP_TELEMETRY_NATS_URL", "nats://localhost:4222")
	conf, _, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "telemetry.trials", conf.Telemetry.NATSSubject)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h user=u password=p dbname=d port=1 sslmode=disable TimeZone=UTC", d.DSN())
}
