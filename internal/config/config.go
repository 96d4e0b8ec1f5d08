// Package config holds all taxonorm configuration. A single Config is
// constructed once at process start (optional yaml file, then environment
// overrides, then validation) and passed by reference into every component.
// Core logic never reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is the fatal pre-flight error for a missing credential.
var ErrMissingAPIKey = errors.New("missing VIRTUAL_API_KEY: set the credential for the LLM backend")

// Config holds all pipeline configuration.
type Config struct {
	// LLM backend
	LLM LLMConfig `yaml:"llm"`

	// Clustering protocol settings
	Cluster ClusterConfig `yaml:"cluster"`

	// Dataset settings
	Dataset DatasetConfig `yaml:"dataset"`

	// Checkpoint store (empty path disables checkpointing)
	CheckpointDB string `yaml:"checkpoint_db"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai (default) or gemini
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"` // per-call timeout, e.g. "2m"
}

// ClusterConfig configures the seed and assignment phases.
type ClusterConfig struct {
	// SeedSize is the number of leading labels clustered in the one-shot
	// seed call.
	SeedSize int `yaml:"seed_size"`

	// MaxConcurrent caps in-flight assignment requests.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxExamples bounds example labels per group in the frozen summary.
	MaxExamples int `yaml:"max_examples"`

	// BatchTimeout bounds the whole assignment phase for one file,
	// e.g. "30m". "0" disables the batch bound (per-call timeouts still
	// apply).
	BatchTimeout string `yaml:"batch_timeout"`
}

// DatasetConfig configures input files and the output location.
type DatasetConfig struct {
	CategoryColumn string   `yaml:"category_column"`
	InputFiles     []string `yaml:"input_files"`
	OutputDir      string   `yaml:"output_dir"`
}

// Default returns the baseline configuration before file and environment
// overrides.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "GPT-OSS-120B",
			BaseURL:  "http://pluto/v1/",
			Timeout:  "2m",
		},
		Cluster: ClusterConfig{
			SeedSize:      200,
			MaxConcurrent: 200,
			MaxExamples:   6,
			BatchTimeout:  "30m",
		},
		Dataset: DatasetConfig{
			CategoryColumn: "Category",
			InputFiles: []string{
				"artifacts/visual_factors/positive_affect_increase.csv",
				"artifacts/visual_factors/positive_affect_decrease.csv",
				"artifacts/visual_factors/negative_affect_increase.csv",
				"artifacts/visual_factors/negative_affect_decrease.csv",
				"artifacts/visual_factors/stress_increase.csv",
				"artifacts/visual_factors/stress_decrease.csv",
				"mixed.csv",
			},
			OutputDir: "artifacts/visual_factors/output",
		},
	}
}

// Load builds a Config: defaults, then the yaml file at path (skipped when
// path is empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies recognized environment variables on top of the
// current values. Environment always wins over file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("VIRTUAL_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cluster.MaxConcurrent = n
		}
	}
	if v := os.Getenv("SEED_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cluster.SeedSize = n
		}
	}
	if v := os.Getenv("TAXONORM_CHECKPOINT_DB"); v != "" {
		c.CheckpointDB = v
	}
}

// GetLLMTimeout returns the per-call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// GetBatchTimeout returns the assignment batch bound as a duration.
// Zero disables the bound.
func (c *Config) GetBatchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Cluster.BatchTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// Validate checks pre-flight invariants. A missing credential is fatal
// before any file work begins.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Cluster.SeedSize <= 0 {
		return fmt.Errorf("seed_size must be positive, got %d", c.Cluster.SeedSize)
	}
	if c.Cluster.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.Cluster.MaxConcurrent)
	}
	if c.Cluster.MaxExamples <= 0 {
		return fmt.Errorf("max_examples must be positive, got %d", c.Cluster.MaxExamples)
	}
	if c.Dataset.CategoryColumn == "" {
		return fmt.Errorf("category_column must not be empty")
	}
	if len(c.Dataset.InputFiles) == 0 {
		return fmt.Errorf("no input files configured")
	}
	return nil
}
