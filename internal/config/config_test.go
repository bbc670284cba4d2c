package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	require.NoError(t, Init(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "reject-funding", cfg.LockedPolicy)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "csv", cfg.OutputFormat)
	assert.False(t, cfg.ExportPostgres)
	assert.False(t, cfg.ExportRedis)
	assert.Equal(t, 24*time.Hour, cfg.ExportRedisTTL)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, int64(10<<20), cfg.MaxBodyBytes)
	assert.Empty(t, cfg.JWTSecretKey)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("LEDGER_LOCKED_POLICY", "freeze")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OUTPUT_FORMAT", "json")
	t.Setenv("EXPORT_REDIS", "true")
	t.Setenv("EXPORT_REDIS_TTL", "2h")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_EXPIRY_HOURS", "2")

	v := viper.New()
	require.NoError(t, Init(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "freeze", cfg.LockedPolicy)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.True(t, cfg.ExportRedis)
	assert.Equal(t, 2*time.Hour, cfg.ExportRedisTTL)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
}

func TestInit_EnvFile(t *testing.T) {
	t.Run("values from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("LEDGER_LOCKED_POLICY=allow\nJWT_SECRET_KEY=s3cret\n"), 0o600))

		v := viper.New()
		require.NoError(t, Init(v, path))

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "allow", cfg.LockedPolicy)
		assert.Equal(t, "s3cret", cfg.JWTSecretKey)
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		v := viper.New()
		require.NoError(t, Init(v, filepath.Join(t.TempDir(), "missing.env")))
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		val   any
		field string
	}{
		{"policy", "ledger.locked_policy", "sometimes", "LockedPolicy"},
		{"log level", "log.level", "loud", "LogLevel"},
		{"output format", "output.format", "xml", "OutputFormat"},
		{"port", "server.port", "http", "ServerPort"},
		{"body size", "server.max_body_bytes", 0, "MaxBodyBytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			require.NoError(t, Init(v, ""))
			v.Set(tt.key, tt.val)

			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field+": failed")
		})
	}
}
