package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ruralpay/txengine/internal/validation"
	"github.com/spf13/viper"
)

// Config is the runtime configuration shared by the CLI and the server.
type Config struct {
	LockedPolicy string `validate:"oneof=reject-funding freeze allow"`
	LogLevel     string `validate:"required,oneof=debug info warn error"`
	LogFormat    string `validate:"required,oneof=json console"`
	OutputFormat string `validate:"required,oneof=csv json"`

	ExportPostgres bool
	ExportRedis    bool
	ExportRedisTTL time.Duration `validate:"gte=0"`

	ServerPort   string `validate:"required,numeric"`
	MaxBodyBytes int64  `validate:"gt=0"`
	JWTSecretKey string
	JWTExpiry    time.Duration `validate:"gt=0"`
}

var envBindings = map[string]string{
	"ledger.locked_policy":  "LEDGER_LOCKED_POLICY",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
	"output.format":         "OUTPUT_FORMAT",
	"export.postgres":       "EXPORT_POSTGRES",
	"export.redis":          "EXPORT_REDIS",
	"export.redis_ttl":      "EXPORT_REDIS_TTL",
	"server.port":           "PORT",
	"server.max_body_bytes": "SERVER_MAX_BODY_BYTES",
	"jwt.secret_key":        "JWT_SECRET_KEY",
	"jwt.expiry_hours":      "JWT_EXPIRY_HOURS",

	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",
}

// Init points v at an optional .env file and binds every known key to its
// environment variable. A missing .env file is not an error.
func Init(v *viper.Viper, envFile string) error {
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	v.SetDefault("ledger.locked_policy", "reject-funding")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("output.format", "csv")
	v.SetDefault("export.postgres", false)
	v.SetDefault("export.redis", false)
	v.SetDefault("export.redis_ttl", 24*time.Hour)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_body_bytes", int64(10<<20))
	v.SetDefault("jwt.expiry_hours", 24)

	if envFile == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", envFile, err)
	}

	// .env entries land under their variable names; surface them under the
	// dotted keys below env vars and flags.
	for key, env := range envBindings {
		if val := v.Get(strings.ToLower(env)); val != nil {
			v.SetDefault(key, val)
		}
	}
	return nil
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LockedPolicy:   v.GetString("ledger.locked_policy"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
		OutputFormat:   v.GetString("output.format"),
		ExportPostgres: v.GetBool("export.postgres"),
		ExportRedis:    v.GetBool("export.redis"),
		ExportRedisTTL: v.GetDuration("export.redis_ttl"),
		ServerPort:     v.GetString("server.port"),
		MaxBodyBytes:   v.GetInt64("server.max_body_bytes"),
		JWTSecretKey:   v.GetString("jwt.secret_key"),
		JWTExpiry:      time.Duration(v.GetInt("jwt.expiry_hours")) * time.Hour,
	}

	if err := validation.Default().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", validation.Summary(err))
	}
	return cfg, nil
}
