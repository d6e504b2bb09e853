package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the external runtime used to run instrumented programs.
type Config struct {
	// Command is the node binary. Defaults to "node" looked up on PATH.
	Command string `yaml:"command" json:"command"`
	// Args are extra runtime flags placed before the "-" script argument.
	Args []string `yaml:"args" json:"args"`
	// Environment is added to the child environment.
	Environment map[string]string `yaml:"env" json:"env"`
	// Timeout bounds a run. Zero uses DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Dir is the working directory of the child process.
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{Command: "node", Timeout: DefaultTimeout}
}

// LoadConfig reads a runtime configuration file (YAML or JSON).
// A missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read runtime config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var raw struct {
			Config
			Timeout string `json:"timeout"`
		}
		raw.Config = cfg
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		cfg = raw.Config
		if raw.Timeout != "" {
			d, err := time.ParseDuration(raw.Timeout)
			if err != nil {
				return cfg, fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
			}
			cfg.Timeout = d
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if cfg.Command == "" {
		cfg.Command = "node"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg, nil
}

func (c Config) env() []string {
	env := os.Environ()
	for k, v := range c.Environment {
		env = append(env, k+"="+v)
	}
	return env
}
