package cmd

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/doe-wizard/doe-opt/opt"
)

// DefaultsConfig represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict
// parsing: a typo in the file must cause an error, not a silent default.
type DefaultsConfig struct {
	Version    string          `yaml:"version"`
	Settings   *opt.Settings   `yaml:"settings"`
	Thresholds *opt.Thresholds `yaml:"thresholds"`
}

// loadDefaultsConfig parses defaults.yaml into a DefaultsConfig struct.
func loadDefaultsConfig(path string) DefaultsConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("Failed to read defaults file %s: %v", path, err)
	}
	var cfg DefaultsConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		logrus.Fatalf("Failed to parse defaults YAML %s: %v", path, err)
	}
	return cfg
}

// applyDefaultsFile overlays a defaults.yaml on top of flag-derived settings
// and thresholds. File sections win over flag defaults.
func applyDefaultsFile(path string, settings opt.Settings, thresholds opt.Thresholds) (opt.Settings, opt.Thresholds) {
	cfg := loadDefaultsConfig(path)
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}
	if cfg.Thresholds != nil {
		thresholds = *cfg.Thresholds
	}
	return settings, thresholds
}
