// Package config loads docsign settings from an optional YAML file and
// DOCSIGN_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the api server and the CLI.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Signing  SigningConfig  `mapstructure:"signing"`
	Client   ClientConfig   `mapstructure:"client"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// SigningConfig controls how requests are created and expired.
type SigningConfig struct {
	Environment   string        `mapstructure:"environment"`
	BaseURL       string        `mapstructure:"base_url"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Location      string        `mapstructure:"location"`
}

// ClientConfig is used by the CLI to reach the api server.
type ClientConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration. path may be empty, in which case docsign.yaml is
// searched for in the working directory and /etc/docsign.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docsign")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/docsign")
	}

	setDefaults(v)

	v.SetEnvPrefix("DOCSIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("signing.environment", "sandbox")
	v.SetDefault("signing.base_url", "http://localhost:8080")
	v.SetDefault("signing.sweep_interval", "1m")
	v.SetDefault("signing.location", "Europe/Copenhagen")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.client_id", "")
	v.SetDefault("client.client_secret", "")
	v.SetDefault("client.timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// ValidateServer checks the settings the api server cannot start without.
func (c Config) ValidateServer() error {
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("config: auth.jwt_secret must be at least 32 characters")
	}
	switch c.Signing.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("config: signing.environment %q must be sandbox or production", c.Signing.Environment)
	}
	return nil
}

// LoadLocation resolves signing.location, falling back to UTC when empty.
func (c Config) LoadLocation() (*time.Location, error) {
	if c.Signing.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Signing.Location)
	if err != nil {
		return nil, fmt.Errorf("config: signing.location: %w", err)
	}
	return loc, nil
}
