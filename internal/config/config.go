// Package config loads and validates the deployment configuration document
// produced by the setup wizard.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the deployment configuration document.
type Config struct {
	Region     string           `yaml:"region"`
	Model      ModelConfig      `yaml:"model"`
	Storage    StorageConfig    `yaml:"storage"`
	Throttling ThrottlingConfig `yaml:"throttling"`
	Theme      ThemeConfig      `yaml:"theme"`
}

// ModelConfig selects the AI models the provisioned stack will use.
type ModelConfig struct {
	ID             string `yaml:"id"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// StorageConfig sizes the database and object storage resources.
type StorageConfig struct {
	Tier          string `yaml:"tier"`
	TableCapacity int    `yaml:"table_capacity"`
}

// ThrottlingConfig caps the public API.
type ThrottlingConfig struct {
	RateLimit  int `yaml:"rate_limit"`
	BurstLimit int `yaml:"burst_limit"`
}

// ThemeConfig styles the embedded chat widget.
type ThemeConfig struct {
	PrimaryColor string `yaml:"primary_color"`
	Title        string `yaml:"title"`
}

// Load reads, parses, and validates the configuration document at path.
//
// A document missing any required section is rejected with an error naming
// every missing section, not just the first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Validation runs over the raw document so absent sections can be told
	// apart from zero-valued ones.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	result := Validate(raw)
	if result.HasErrors() {
		return nil, result.Errors[0]
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}
