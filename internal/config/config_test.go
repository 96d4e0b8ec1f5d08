package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithKey(t *testing.T) {
	t.Setenv("VIRTUAL_API_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, 200, cfg.Cluster.SeedSize)
	assert.Equal(t, 200, cfg.Cluster.MaxConcurrent)
	assert.Equal(t, 6, cfg.Cluster.MaxExamples)
	assert.Equal(t, "Category", cfg.Dataset.CategoryColumn)
	assert.Len(t, cfg.Dataset.InputFiles, 7)
}

func TestLoad_MissingKeyIsFatal(t *testing.T) {
	t.Setenv("VIRTUAL_API_KEY", "")

	_, err := Load("")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonorm.yaml")
	content := `
llm:
  model: from-file
  api_key: file-key
  timeout: 30s
cluster:
  seed_size: 10
dataset:
  category_column: Label
  input_files: ["one.csv"]
  output_dir: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("MODEL_NAME", "from-env")
	t.Setenv("SEED_SIZE", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env wins over file; untouched file values survive.
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, 25, cfg.Cluster.SeedSize)
	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, "Label", cfg.Dataset.CategoryColumn)
	assert.Equal(t, []string{"one.csv"}, cfg.Dataset.InputFiles)
}

func TestApplyEnvOverrides_IgnoresInvalidNumbers(t *testing.T) {
	cfg := Default()
	t.Setenv("MAX_CONCURRENT", "not-a-number")
	t.Setenv("SEED_SIZE", "-3")

	cfg.ApplyEnvOverrides()

	assert.Equal(t, 200, cfg.Cluster.MaxConcurrent)
	assert.Equal(t, 200, cfg.Cluster.SeedSize)
}

func TestDurationAccessors_FallbackOnGarbage(t *testing.T) {
	cfg := Default()
	cfg.LLM.Timeout = "not-a-duration"
	cfg.Cluster.BatchTimeout = ""

	assert.Equal(t, 2*time.Minute, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetBatchTimeout())
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero seed size", func(c *Config) { c.Cluster.SeedSize = 0 }},
		{"zero concurrency", func(c *Config) { c.Cluster.MaxConcurrent = 0 }},
		{"zero examples", func(c *Config) { c.Cluster.MaxExamples = 0 }},
		{"empty category column", func(c *Config) { c.Dataset.CategoryColumn = "" }},
		{"no inputs", func(c *Config) { c.Dataset.InputFiles = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.APIKey = "k"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
