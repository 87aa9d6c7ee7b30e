package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, filepath.Join(".lexigraph", "badger"), cfg.DataDir)
	assert.Equal(t, 4*runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 10, cfg.MaxResults)
	assert.Equal(t, ScoringFrequency, cfg.Scoring)
	assert.True(t, cfg.EvictAfterSave)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		require.NoError(t, cfg.loadFile(t.TempDir()))
		assert.Equal(t, Default(), cfg)
	})

	t.Run("Overlay", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "lexigraph.yml", `
dataDir: /var/lib/lexigraph
maxResults: 0
scoring: weighted
indexTimeout: 30s
evictAfterSave: false
stopwords: [the, of]
`)
		cfg := Default()
		require.NoError(t, cfg.loadFile(dir))

		assert.Equal(t, "/var/lib/lexigraph", cfg.DataDir)
		assert.Equal(t, 0, cfg.MaxResults)
		assert.Equal(t, ScoringWeighted, cfg.Scoring)
		assert.Equal(t, 30*time.Second, cfg.IndexTimeout)
		assert.False(t, cfg.EvictAfterSave)
		assert.Equal(t, []string{"the", "of"}, cfg.Stopwords)
		assert.Equal(t, 4*runtime.NumCPU(), cfg.Workers)
	})

	t.Run("YAMLExtension", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "lexigraph.yaml", "workers: 3\n")
		cfg := Default()
		require.NoError(t, cfg.loadFile(dir))
		assert.Equal(t, 3, cfg.Workers)
	})

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "lexigraph.yml", "workers: [not a number\n")
		assert.Error(t, Default().loadFile(dir))
	})
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := func(vars map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			v, ok := vars[key]
			return v, ok
		}
	}

	t.Run("AllFields", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		err := cfg.applyEnv(env(map[string]string{
			"LEXIGRAPH_DATA_DIR":         "/data",
			"LEXIGRAPH_WORKERS":          "2",
			"LEXIGRAPH_MAX_RESULTS":      "-1",
			"LEXIGRAPH_SCORING":          "weighted",
			"LEXIGRAPH_INDEX_TIMEOUT":    "1m",
			"LEXIGRAPH_EVICT_AFTER_SAVE": "false",
			"LEXIGRAPH_STOPWORDS":        "the, of ,,and",
			"LEXIGRAPH_LOG_LEVEL":        "debug",
		}))
		require.NoError(t, err)

		assert.Equal(t, "/data", cfg.DataDir)
		assert.Equal(t, 2, cfg.Workers)
		assert.Equal(t, -1, cfg.MaxResults)
		assert.Equal(t, ScoringWeighted, cfg.Scoring)
		assert.Equal(t, time.Minute, cfg.IndexTimeout)
		assert.False(t, cfg.EvictAfterSave)
		assert.Equal(t, []string{"the", "of", "and"}, cfg.Stopwords)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("BlankIgnored", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		require.NoError(t, cfg.applyEnv(env(map[string]string{"LEXIGRAPH_DATA_DIR": "  "})))
		assert.Equal(t, Default().DataDir, cfg.DataDir)
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()
		for _, key := range []string{"WORKERS", "MAX_RESULTS", "INDEX_TIMEOUT", "EVICT_AFTER_SAVE"} {
			cfg := Default()
			err := cfg.applyEnv(env(map[string]string{EnvPrefix + key: "bogus"}))
			assert.Error(t, err, key)
		}
	})
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lexigraph.yml", "scoring: weighted\nworkers: 5\n")
	writeFile(t, dir, ".env", "LEXIGRAPH_WORKERS=7\n")
	t.Cleanup(func() { os.Unsetenv("LEXIGRAPH_WORKERS") })

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ScoringWeighted, cfg.Scoring)
	assert.Equal(t, 7, cfg.Workers)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyDataDir", func(c *Config) { c.DataDir = "" }},
		{"ZeroWorkers", func(c *Config) { c.Workers = 0 }},
		{"UnknownScoring", func(c *Config) { c.Scoring = "bm25" }},
		{"NegativeTimeout", func(c *Config) { c.IndexTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
