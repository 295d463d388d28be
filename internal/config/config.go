// Package config loads the specbind server configuration from a YAML file,
// a .env file and SPECBIND_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SPECBIND_SERVER_ADDR.
const EnvPrefix = "SPECBIND"

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	API       APIConfig       `mapstructure:"api" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig contains listener and runtime settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Backend  string `mapstructure:"backend" validate:"required,oneof=nethttp chi gorilla fasthttp gin"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// APIConfig describes the mounted specification.
type APIConfig struct {
	SpecFile         string `mapstructure:"spec_file" validate:"required"`
	BasePath         string `mapstructure:"base_path"`
	SwaggerJSON      bool   `mapstructure:"swagger_json"`
	SwaggerUI        bool   `mapstructure:"swagger_ui"`
	ConsoleUIPath    string `mapstructure:"console_ui_path" validate:"omitempty,startswith=/"`
	ConsoleUIFromDir string `mapstructure:"console_ui_from_dir" validate:"omitempty,dir"`
	AuthAllPaths     bool   `mapstructure:"auth_all_paths"`
}

// RateLimitConfig enables per-client rate limiting when RPS is positive.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// CORSConfig lists the allowed origins for net/http based backends.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SecurityConfig holds credentials for the security evaluator.
type SecurityConfig struct {
	JWTSecret string   `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	APIKeys   []string `mapstructure:"api_keys"`
}

// Option adjusts a Load call.
type Option func(*viper.Viper)

// WithOverride sets key over every other source, for values given on the
// command line. An empty value is ignored.
func WithOverride(key, value string) Option {
	return func(v *viper.Viper) {
		if value != "" {
			v.Set(key, value)
		}
	}
}

// Load reads the configuration. configPath may be empty. A .env file in the
// working directory is loaded first when present; environment variables
// take precedence over file values, and overrides over both.
func Load(configPath string, opts ...Option) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.backend", "nethttp")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("api.swagger_json", true)
	v.SetDefault("api.swagger_ui", true)
	v.SetDefault("api.console_ui_path", "/ui")
	v.SetDefault("ratelimit.burst", 10)

	if configPath != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{
		"api.spec_file",
		"api.base_path",
		"api.console_ui_from_dir",
		"api.auth_all_paths",
		"ratelimit.rps",
		"cors.allowed_origins",
		"security.jwt_secret",
		"security.api_keys",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	for _, opt := range opts {
		opt(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return &cfg, nil
}
