// Package config handles loading and validating application configuration.
//
// Configuration is loaded from a YAML file with environment variable overrides.
// Environment variables use the ROUTERHELPER_ prefix (e.g., ROUTERHELPER_PORT).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server        Server        `yaml:"server"`
	Routing       Routing       `yaml:"routing"`
	Upstream      Upstream      `yaml:"upstream"`
	Log           Log           `yaml:"log"`
	Observability Observability `yaml:"observability"`
}

// Server configures the HTTP listener.
type Server struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// Routing configures route registration.
type Routing struct {
	// DefaultMethod applies to definitions registered without a method.
	DefaultMethod string `yaml:"default_method"`
	// PrefixCheck is off, warn or strict.
	PrefixCheck string `yaml:"prefix_check"`
}

// Upstream configures the service fetched by the upstream demo route.
// An empty URL disables the route.
type Upstream struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Log configures structured logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// CloudFormat is "", "gcp" or "gcp_with_resource".
	CloudFormat string `yaml:"cloud_format"`
}

// Observability configures optional OpenTelemetry tracing.
type Observability struct {
	OTelEnabled     bool   `yaml:"otel_enabled"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	OTelServiceName string `yaml:"otel_service_name"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: Server{
			Host:           "127.0.0.1",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			HandlerTimeout: 30 * time.Second,
		},
		Routing: Routing{
			DefaultMethod: "GET",
			PrefixCheck:   "off",
		},
		Upstream: Upstream{
			Timeout: 10 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Observability: Observability{
			OTelEndpoint:    "http://localhost:4318",
			OTelServiceName: "routerhelper",
		},
	}
}

// Load reads configuration from the given YAML file path, then applies
// environment variable overrides. If path is empty, only defaults and
// environment variables are used.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides reads ROUTERHELPER_* environment variables and overrides
// the corresponding config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROUTERHELPER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ROUTERHELPER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ROUTERHELPER_HANDLER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.HandlerTimeout = d
		}
	}
	if v := os.Getenv("ROUTERHELPER_DEFAULT_METHOD"); v != "" {
		cfg.Routing.DefaultMethod = strings.ToUpper(v)
	}
	if v := os.Getenv("ROUTERHELPER_PREFIX_CHECK"); v != "" {
		cfg.Routing.PrefixCheck = strings.ToLower(v)
	}
	if v := os.Getenv("ROUTERHELPER_UPSTREAM_URL"); v != "" {
		cfg.Upstream.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("ROUTERHELPER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ROUTERHELPER_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("ROUTERHELPER_LOG_CLOUD_FORMAT"); v != "" {
		cfg.Log.CloudFormat = strings.ToLower(v)
	}
	if v := os.Getenv("ROUTERHELPER_OTEL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.OTelEnabled = b
		}
	}
	if v := os.Getenv("ROUTERHELPER_OTEL_ENDPOINT"); v != "" {
		cfg.Observability.OTelEndpoint = strings.TrimSpace(v)
	}
}

// validate checks that the configuration is internally consistent.
func validate(cfg Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.HandlerTimeout < 0 {
		errs = append(errs, errors.New("server.handler_timeout must not be negative"))
	}

	validMethods := map[string]bool{"GET": true, "HEAD": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "OPTIONS": true, "*": true}
	if !validMethods[strings.ToUpper(cfg.Routing.DefaultMethod)] {
		errs = append(errs, fmt.Errorf("routing.default_method is not a routable method; got %q", cfg.Routing.DefaultMethod))
	}
	validChecks := map[string]bool{"": true, "off": true, "warn": true, "strict": true}
	if !validChecks[cfg.Routing.PrefixCheck] {
		errs = append(errs, fmt.Errorf("routing.prefix_check must be off, warn or strict; got %q", cfg.Routing.PrefixCheck))
	}

	if cfg.Upstream.URL != "" && !strings.HasPrefix(cfg.Upstream.URL, "http://") && !strings.HasPrefix(cfg.Upstream.URL, "https://") {
		errs = append(errs, fmt.Errorf("upstream.url must be an http(s) URL; got %q", cfg.Upstream.URL))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Errorf("log.format must be json, text or console; got %q", cfg.Log.Format))
	}
	validCloud := map[string]bool{"": true, "gcp": true, "gcp_with_resource": true}
	if !validCloud[cfg.Log.CloudFormat] {
		errs = append(errs, fmt.Errorf("log.cloud_format must be empty, gcp or gcp_with_resource; got %q", cfg.Log.CloudFormat))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address as "host:port".
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
