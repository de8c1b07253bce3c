package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratalabs/ragd/internal/chunker"
	"github.com/stratalabs/ragd/internal/service"
)

var (
	ingestNamespace string
	ingestID        string
	ingestTitle     string
	ingestText      string
	ingestStrategy  string
	ingestMaxSize   int
	ingestOverlap   int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into a namespace",
	Long: `Ingest one or more files, or raw text, into a namespace.

Examples:
  # Ingest files
  ragd ingest --namespace docs report.txt notes.txt

  # Ingest raw text
  ragd ingest --namespace docs --title "release notes" --text "..."

  # Paragraph chunking with a smaller chunk size
  ragd ingest --namespace docs --strategy paragraph --max-size 500 report.txt`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestNamespace, "namespace", "n", "", "target namespace (required)")
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document id (generated when empty; only valid for a single document)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "raw text to ingest instead of files")
	ingestCmd.Flags().StringVar(&ingestStrategy, "strategy", "", "chunking strategy: sentence, paragraph, token, title")
	ingestCmd.Flags().IntVar(&ingestMaxSize, "max-size", 0, "chunk size limit")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", 0, "chunk overlap")
	_ = ingestCmd.MarkFlagRequired("namespace")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestText == "" && len(args) == 0 {
		return fmt.Errorf("provide files to ingest or --text")
	}
	if ingestText != "" && len(args) > 0 {
		return fmt.Errorf("--text and file arguments are mutually exclusive")
	}
	if ingestID != "" && len(args) > 1 {
		return fmt.Errorf("--id cannot be used with multiple files")
	}

	svc, cfg, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	// Flags override the configured chunking defaults.
	opts := cfg.Chunking.Options()
	if ingestStrategy != "" {
		opts.Strategy = chunker.Strategy(ingestStrategy)
	}
	if ingestMaxSize > 0 {
		opts.MaxSize = ingestMaxSize
	}
	if ingestOverlap > 0 {
		opts.Overlap = ingestOverlap
	}

	ctx := cmd.Context()
	var results []*service.IngestResult

	if ingestText != "" {
		result, err := svc.Ingest(ctx, service.IngestRequest{
			NamespaceID: ingestNamespace,
			DocumentID:  ingestID,
			Title:       ingestTitle,
			Text:        ingestText,
			Chunking:    opts,
		})
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	for _, path := range args {
		result, err := svc.Ingest(ctx, service.IngestRequest{
			NamespaceID: ingestNamespace,
			DocumentID:  ingestID,
			Title:       ingestTitle,
			SourcePath:  path,
			Chunking:    opts,
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		results = append(results, result)
	}

	return printJSON(results)
}
