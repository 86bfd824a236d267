package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 4, cfg.Notify.Workers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("NOTIFY_WORKERS", "not-a-number")
	t.Setenv("INBOX_TTL", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Database.Driver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Notify.Workers, "invalid ints fall back to the default")
	assert.Equal(t, 48*time.Hour, cfg.Redis.InboxTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{Driver: StoreMemory},
			Notify:   NotifyConfig{Workers: 1, BufferSize: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = "99999" }, "invalid server port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown store driver"},
		{"postgres without host", func(c *Config) { c.Database.Driver = StorePostgres }, "database host"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }, "redis address"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka broker"},
		{"zero workers", func(c *Config) { c.Notify.Workers = 0 }, "notify workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "campus", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=campus sslmode=disable", c.DSN())
}
