package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the sample server configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// RateLimit is calls per second per client on rate limited routes.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
}

// AuthConfig contains the credentials guarding the admin routes.
type AuthConfig struct {
	AdminUser     string `mapstructure:"admin_user" validate:"required"`
	AdminPassword string `mapstructure:"admin_password" validate:"required,min=8"`
	JWTSecret     string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// loadConfig reads .env, an optional config file and EXPOSE_* environment
// variables, in increasing order of precedence.
func loadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_password", "change-me-please")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix("EXPOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"server.addr", "server.log_level", "server.rate_limit",
		"auth.admin_user", "auth.admin_password", "auth.jwt_secret",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c ServerConfig) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
