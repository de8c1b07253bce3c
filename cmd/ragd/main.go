// Package main implements the ragd CLI for ingesting documents and querying
// namespaces from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratalabs/ragd/internal/catalog"
	"github.com/stratalabs/ragd/internal/config"
	"github.com/stratalabs/ragd/internal/embeddings"
	"github.com/stratalabs/ragd/internal/logging"
	"github.com/stratalabs/ragd/internal/service"
	"github.com/stratalabs/ragd/internal/telemetry"
	"github.com/stratalabs/ragd/internal/vectorstore"
)

var (
	// configPath is the YAML config file; empty uses env vars and defaults.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Document ingestion and retrieval over namespaced vector collections",
	Long: `ragd chunks documents, embeds the chunks, and stores them in namespaced
vector collections for similarity search with confidence scoring.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(namespaceCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildService assembles the full pipeline from configuration. The returned
// cleanup closes the catalog and the provider chain.
func buildService() (*service.Service, *config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	shutdownTelemetry, err := telemetry.Setup(context.Background(), cfg.Telemetry, version)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	cat, err := catalog.New(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening catalog: %w", err)
	}

	registry, err := vectorstore.NewRegistry(cfg.Store.Dimension, logger)
	if err != nil {
		_ = cat.Close()
		return nil, nil, nil, err
	}

	providers := make([]embeddings.Provider, 0, len(cfg.Embeddings.Providers))
	var completer embeddings.Completer
	for _, pc := range cfg.Embeddings.Providers {
		p, err := embeddings.NewProvider(embeddings.ProviderConfig{
			Provider:  pc.Type,
			Model:     pc.Model,
			BaseURL:   pc.BaseURL,
			APIKey:    pc.APIKey,
			Dimension: cfg.Store.Dimension,
		})
		if err != nil {
			_ = cat.Close()
			return nil, nil, nil, err
		}
		providers = append(providers, p)
		if c, ok := p.(embeddings.Completer); ok && completer == nil {
			completer = c
		}
	}

	gateway, err := embeddings.NewGateway(providers, logger)
	if err != nil {
		_ = cat.Close()
		return nil, nil, nil, err
	}
	if gateway.Dimension() != cfg.Store.Dimension {
		_ = cat.Close()
		return nil, nil, nil, fmt.Errorf("provider dimension %d does not match store dimension %d",
			gateway.Dimension(), cfg.Store.Dimension)
	}

	svc := service.New(cat, registry, gateway, nil, completer, logger)
	cleanup := func() {
		_ = gateway.Close()
		_ = cat.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
		_ = logger.Sync()
	}
	return svc, cfg, cleanup, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
