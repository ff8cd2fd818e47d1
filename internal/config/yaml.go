package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// configFileNames are tried in order when no explicit path is given.
var configFileNames = []string{"clipbuilder.yaml", "clipbuilder.yml"}

// FindConfigFile returns the first config file found in the working
// directory, or "" when none exists.
func FindConfigFile() string {
	for _, name := range configFileNames {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// LoadConfigFile reads a YAML config file on top of the defaults.
// Fields absent from the file keep their default values.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
