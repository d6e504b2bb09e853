// Package config loads codeflow settings from a YAML file and CODEFLOW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override, e.g. CODEFLOW_EXECUTOR_TIMEOUT=5s.
const EnvPrefix = "CODEFLOW_"

// Config is the complete application configuration.
type Config struct {
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Limits   LimitsConfig   `mapstructure:"limits" yaml:"limits"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ExecutorConfig selects and bounds the execution collaborator.
type ExecutorConfig struct {
	Kind      string        `mapstructure:"kind" yaml:"kind" validate:"oneof=goja node"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	NodePath  string        `mapstructure:"node_path" yaml:"node_path"`
	MaxEvents int           `mapstructure:"max_events" yaml:"max_events" validate:"gte=0"`
	// ProcessConfig is an optional YAML or JSON file with the node command's
	// arguments, environment and working directory.
	ProcessConfig string `mapstructure:"process_config" yaml:"process_config"`
}

// LimitsConfig bounds inbound sources.
type LimitsConfig struct {
	MaxSourceBytes int `mapstructure:"max_source_bytes" yaml:"max_source_bytes" validate:"gte=0"`
}

// StoreConfig selects the recording store.
type StoreConfig struct {
	Kind          string        `mapstructure:"kind" yaml:"kind" validate:"oneof=memory file redis badger"`
	Path          string        `mapstructure:"path" yaml:"path" validate:"required_if=Kind badger"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr" validate:"required_if=Kind redis"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	// EncryptionKey is a base64 AES-256 key; when set recordings are sealed at rest.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys" validate:"dive,base64"`
	// Redact lists patterns of variable names masked before recordings are stored.
	Redact []string `mapstructure:"redact" yaml:"redact"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr          string  `mapstructure:"addr" yaml:"addr" validate:"required"`
	RateLimit     float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
	MaxConcurrent int     `mapstructure:"max_concurrent" yaml:"max_concurrent" validate:"gte=1"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Executor: ExecutorConfig{
			Kind:      "goja",
			Timeout:   15 * time.Second,
			NodePath:  "node",
			MaxEvents: 100000,
		},
		Limits: LimitsConfig{MaxSourceBytes: 64 << 10},
		Store: StoreConfig{
			Kind:   "memory",
			Path:   ".codeflow/recordings",
			Prefix: "codeflow:",
		},
		Server: ServerConfig{
			Addr:          ":8080",
			RateLimit:     10,
			Burst:         20,
			MaxConcurrent: 4,
		},
		Log: LogConfig{Level: "info"},
	}
}

var validate = validator.New()

// Load reads path (optional) and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Environ())
}

// LoadWithEnv reads path (optional) and overrides from environ, a list of
// KEY=VALUE pairs. Unknown keys are ignored.
func LoadWithEnv(path string, environ []string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	overlayEnv(raw, environ)

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

var sections = []string{"executor", "limits", "store", "server", "log"}

// overlayEnv maps CODEFLOW_SECTION_KEY=value onto raw[section][key].
func overlayEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		for _, section := range sections {
			key, found := strings.CutPrefix(rest, section+"_")
			if !found || key == "" {
				continue
			}
			sub, _ := raw[section].(map[string]any)
			if sub == nil {
				sub = map[string]any{}
				raw[section] = sub
			}
			sub[key] = value
			break
		}
	}
}
