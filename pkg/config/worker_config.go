// Package config provides configuration loading for the worker.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultInputDir  = "./data/input"
	defaultOutputDir = "./data/output"
)

// WorkerConfig is the structure of the optional worker.yaml file. Values
// given on the command line take precedence over the file.
type WorkerConfig struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`

	// Seed makes generated batches reproducible when non-zero.
	Seed int64 `yaml:"seed"`

	Tracing bool `yaml:"tracing"`
}

// DefaultWorkerConfig returns the configuration used when no file is given.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		InputDir:  defaultInputDir,
		OutputDir: defaultOutputDir,
	}
}

// LoadWorkerConfig loads worker configuration from a YAML file.
func LoadWorkerConfig(path string) (WorkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkerConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := DefaultWorkerConfig()

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return WorkerConfig{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if config.InputDir == "" {
		config.InputDir = defaultInputDir
	}

	if config.OutputDir == "" {
		config.OutputDir = defaultOutputDir
	}

	return config, nil
}

// LoadWorkerConfigOrDefault loads the file when it exists and falls back to
// defaults otherwise.
func LoadWorkerConfigOrDefault(path string) WorkerConfig {
	config, err := LoadWorkerConfig(path)
	if err != nil {
		return DefaultWorkerConfig()
	}

	return config
}
