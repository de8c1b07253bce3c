// Package config provides configuration loading for ragd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults filling anything left unset.
package config

import (
	"errors"
	"fmt"

	"github.com/stratalabs/ragd/internal/chunker"
	"github.com/stratalabs/ragd/internal/telemetry"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete ragd configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
}

// LoggingConfig holds zap logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	// Dimension is the embedding dimension every namespace uses.
	Dimension int `koanf:"dimension"`
}

// CatalogConfig holds the document catalog configuration.
type CatalogConfig struct {
	// Path is the SQLite database file, or ":memory:".
	Path string `koanf:"path"`
}

// ProviderConfig describes one embedding provider in the fallback chain.
type ProviderConfig struct {
	// Type is tei, openai, or hash.
	Type    string `koanf:"type"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

// EmbeddingsConfig holds the ordered embedding provider chain.
type EmbeddingsConfig struct {
	// Providers are tried in order; the last entry is the terminal
	// fallback.
	Providers []ProviderConfig `koanf:"providers"`
}

// ChunkingConfig holds default chunking parameters for ingestion.
type ChunkingConfig struct {
	Strategy string `koanf:"strategy"`
	MaxSize  int    `koanf:"max_size"`
	Overlap  int    `koanf:"overlap"`
}

// Options converts the config into chunker options.
func (c ChunkingConfig) Options() chunker.Options {
	return chunker.Options{
		Strategy: chunker.Strategy(c.Strategy),
		MaxSize:  c.MaxSize,
		Overlap:  c.Overlap,
	}
}

// applyDefaults fills unset fields with defaults.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Store.Dimension == 0 {
		cfg.Store.Dimension = 384
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "ragd.db"
	}
	if len(cfg.Embeddings.Providers) == 0 {
		cfg.Embeddings.Providers = []ProviderConfig{{Type: "hash"}}
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = string(chunker.StrategySentence)
	}
	if cfg.Chunking.MaxSize == 0 {
		cfg.Chunking.MaxSize = 1000
	}
	cfg.Telemetry.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Store.Dimension <= 0 {
		return fmt.Errorf("%w: store dimension must be positive, got %d", ErrInvalidConfig, c.Store.Dimension)
	}
	for i, p := range c.Embeddings.Providers {
		switch p.Type {
		case "tei", "openai":
			if p.BaseURL == "" {
				return fmt.Errorf("%w: provider %d (%s) requires a base url", ErrInvalidConfig, i, p.Type)
			}
		case "hash":
		default:
			return fmt.Errorf("%w: unknown provider type %q", ErrInvalidConfig, p.Type)
		}
	}
	if err := c.Chunking.Options().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: telemetry sample rate must be in [0, 1], got %v", ErrInvalidConfig, c.Telemetry.SampleRate)
	}
	return nil
}
