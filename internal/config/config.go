// Package config loads lexigraph settings from defaults, an optional
// lexigraph.yml, a .env file and LEXIGRAPH_* environment variables, in
// increasing order of precedence. Command-line flags are applied last by the
// caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Scoring names accepted by Validate.
const (
	ScoringFrequency = "frequency"
	ScoringWeighted  = "weighted"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LEXIGRAPH_"

// Config holds runtime configuration.
type Config struct {
	// DataDir is the badger directory.
	DataDir string `yaml:"dataDir,omitempty"`

	// Workers bounds the indexing worker pool.
	Workers int `yaml:"workers,omitempty"`

	// MaxResults bounds extraction results. Zero or less disables truncation.
	MaxResults int `yaml:"maxResults"`

	// Scoring is frequency or weighted.
	Scoring string `yaml:"scoring,omitempty"`

	// IndexTimeout bounds the worker phase of indexing. Zero means none.
	IndexTimeout time.Duration `yaml:"indexTimeout,omitempty"`

	// EvictAfterSave drops graphs from the cache once indexed.
	EvictAfterSave bool `yaml:"evictAfterSave"`

	// Stopwords are dropped by strict tokenization.
	Stopwords []string `yaml:"stopwords,omitempty"`

	LogLevel string `yaml:"logLevel,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:        filepath.Join(".lexigraph", "badger"),
		Workers:        4 * runtime.NumCPU(),
		MaxResults:     10,
		Scoring:        ScoringFrequency,
		EvictAfterSave: true,
		LogLevel:       "info",
	}
}

// Load builds the configuration for the working directory dir.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(dir); err != nil {
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays lexigraph.yml or lexigraph.yaml from dir. A missing file
// leaves the configuration unchanged.
func (c *Config) loadFile(dir string) error {
	for _, name := range []string{"lexigraph.yml", "lexigraph.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sWORKERS: %w", EnvPrefix, err)
		}
		c.Workers = n
	}
	if v, ok := get("MAX_RESULTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sMAX_RESULTS: %w", EnvPrefix, err)
		}
		c.MaxResults = n
	}
	if v, ok := get("SCORING"); ok {
		c.Scoring = v
	}
	if v, ok := get("INDEX_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sINDEX_TIMEOUT: %w", EnvPrefix, err)
		}
		c.IndexTimeout = d
	}
	if v, ok := get("EVICT_AFTER_SAVE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %sEVICT_AFTER_SAVE: %w", EnvPrefix, err)
		}
		c.EvictAfterSave = b
	}
	if v, ok := get("STOPWORDS"); ok {
		c.Stopwords = splitList(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("dataDir must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	switch c.Scoring {
	case ScoringFrequency, ScoringWeighted:
	default:
		return fmt.Errorf("unknown scoring %q (want %s or %s)", c.Scoring, ScoringFrequency, ScoringWeighted)
	}
	if c.IndexTimeout < 0 {
		return fmt.Errorf("indexTimeout must not be negative, got %s", c.IndexTimeout)
	}
	return nil
}
