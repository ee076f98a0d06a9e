// Package config loads the optional server configuration file and watches
// it for runtime parameter changes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Params is the scalar triple a config file can set. A file-driven change
// flows through the same pending-parameter path as a client's
// CLIENT_PARAMUPDATE.
type Params struct {
	AtomMass    float32 `json:"atomMass"`
	Attenuation float32 `json:"attenuation"`
	Gravity     float32 `json:"gravity"`
}

// Config is the JSON shape of the server configuration file.
type Config struct {
	Params Params `json:"params"`
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Params.AtomMass <= 0 {
		return fmt.Errorf("atomMass must be positive, got %v", c.Params.AtomMass)
	}
	if c.Params.Attenuation <= 0 || c.Params.Attenuation > 1 {
		return fmt.Errorf("attenuation must be in (0, 1], got %v", c.Params.Attenuation)
	}
	return nil
}
