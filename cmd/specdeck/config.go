package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "specdeck.yaml"
	defaultEndpoint   = "http://localhost:8787"
	defaultListen     = ":8787"
)

// Config holds file-based defaults for the CLI. Flags override it.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Listen   string `yaml:"listen"`
	Script   string `yaml:"script"`
}

// loadConfig reads the config file. A missing default file is not an error;
// a missing explicitly named file is.
func loadConfig() (*Config, error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func resolveEndpoint(cfg *Config) string {
	if endpoint != "" {
		return endpoint
	}
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	return defaultEndpoint
}
