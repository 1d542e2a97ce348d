package authlink

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file on top of [DefaultConfig] and
// then applies AUTHLINK_* environment overrides. An empty path skips the
// file. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	err := envdecode.Decode(cfg)
	if err == nil || errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil
	}
	return fmt.Errorf("decode environment: %w", err)
}
