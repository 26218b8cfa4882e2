// Package application wires the core subsystems together: configuration
// loading, and the service facade consumed by the HTTP adapter.
package application

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/robostats/statproxy/infrastructure/upstream"
	"github.com/robostats/statproxy/internal/aggregate"
	"github.com/robostats/statproxy/internal/resolve"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// envPrefix is the prefix for environment overrides. Nested keys use a
// double underscore, e.g. STATPROXY_UPSTREAM__BASE_URL.
const envPrefix = "STATPROXY_"

// Config is the full process configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr" validate:"required"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the zap encoder: json or console.
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`

	// AliasFile optionally points to a YAML alias table that replaces the
	// built-in one. Loaded once at startup, immutable afterwards.
	AliasFile string `koanf:"alias_file"`

	// Upstream configures the statistics service client.
	Upstream upstream.Config `koanf:"upstream"`

	// Aggregate configures the fan-out aggregator.
	Aggregate aggregate.Config `koanf:"aggregate"`

	// Resolver configures the fuzzy-match scoring weights.
	Resolver resolve.Weights `koanf:"resolver"`
}

// DefaultConfig returns production defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "json",
		Upstream:  upstream.DefaultConfig(),
		Aggregate: aggregate.DefaultConfig(),
		Resolver:  resolve.DefaultWeights(),
	}
}

// LoadConfig builds a Config by layering defaults, an optional YAML file,
// and environment variables. Order of precedence (low -> high):
//  1. defaults (DefaultConfig)
//  2. file (YAML) if STATPROXY_CONFIG is set
//  3. env (prefix STATPROXY_, double underscore for nesting)
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		// STATPROXY_UPSTREAM__TIMEOUT_MS -> upstream.timeout_ms
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("loading env config: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Aliases loads the alias table named by the config, falling back to the
// built-in set when no file is configured.
func (c Config) Aliases() (*resolve.AliasTable, error) {
	if c.AliasFile == "" {
		return resolve.DefaultAliasTable(), nil
	}
	return resolve.LoadAliasTable(c.AliasFile)
}
