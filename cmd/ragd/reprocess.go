package main

import (
	"github.com/spf13/cobra"

	"github.com/stratalabs/ragd/internal/chunker"
)

var (
	reprocessStrategy string
	reprocessMaxSize  int
	reprocessOverlap  int
	reprocessWait     bool
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <namespace>",
	Short: "Re-chunk and re-embed every document in a namespace",
	Long: `Re-run the ingestion pipeline over all documents in the namespace
with new chunking options. Runs in the background unless --wait is given.

Examples:
  ragd reprocess docs --strategy paragraph --max-size 500
  ragd reprocess docs --strategy token --max-size 200 --overlap 20 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runReprocess,
}

var statusCmd = &cobra.Command{
	Use:   "status <namespace>",
	Short: "Show reprocessing status for a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()
		status, err := svc.ReprocessingStatus(args[0])
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessStrategy, "strategy", "", "chunking strategy: sentence, paragraph, token, title")
	reprocessCmd.Flags().IntVar(&reprocessMaxSize, "max-size", 0, "chunk size limit")
	reprocessCmd.Flags().IntVar(&reprocessOverlap, "overlap", 0, "chunk overlap")
	reprocessCmd.Flags().BoolVar(&reprocessWait, "wait", false, "block until the job finishes")
}

func runReprocess(cmd *cobra.Command, args []string) error {
	svc, cfg, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	opts := cfg.Chunking.Options()
	if reprocessStrategy != "" {
		opts.Strategy = chunker.Strategy(reprocessStrategy)
	}
	if reprocessMaxSize > 0 {
		opts.MaxSize = reprocessMaxSize
	}
	if reprocessOverlap > 0 {
		opts.Overlap = reprocessOverlap
	}

	job, err := svc.Reprocess(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}

	if reprocessWait {
		<-job.Done
		status, err := svc.ReprocessingStatus(args[0])
		if err != nil {
			return err
		}
		return printJSON(status)
	}

	return printJSON(map[string]any{
		"job_id":       job.ID,
		"namespace_id": job.NamespaceID,
		"started_at":   job.StartedAt,
	})
}
