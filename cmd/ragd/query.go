package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/ragd/internal/retrieval"
)

var (
	queryNamespace string
	queryK         int
	queryMinScore  float64
)

var queryCmd = &cobra.Command{
	Use:   "query <text...>",
	Short: "Search a namespace",
	Long: `Embed the query text and return the top matching chunks with an
aggregate confidence score.

Examples:
  ragd query --namespace docs how are refunds processed
  ragd query --namespace docs -k 10 --min-score 0.4 shipping policy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var answerCmd = &cobra.Command{
	Use:   "answer <question...>",
	Short: "Answer a question from a namespace's documents",
	Long: `Retrieve context for the question and generate an answer with the
configured completion provider.

Examples:
  ragd answer --namespace docs how are refunds processed`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnswer,
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, answerCmd} {
		cmd.Flags().StringVarP(&queryNamespace, "namespace", "n", "", "namespace to search (required)")
		cmd.Flags().IntVarP(&queryK, "k", "k", 0, "number of results (default 5)")
		cmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "minimum similarity score")
		_ = cmd.MarkFlagRequired("namespace")
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := svc.Query(cmd.Context(), queryNamespace, strings.Join(args, " "), queryK, queryMinScore)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runAnswer(cmd *cobra.Command, args []string) error {
	svc, _, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	answer, err := svc.Answer(cmd.Context(), retrieval.AnswerRequest{
		NamespaceID: queryNamespace,
		Question:    strings.Join(args, " "),
		K:           queryK,
		MinScore:    queryMinScore,
	})
	if err != nil {
		return err
	}
	return printJSON(answer)
}
