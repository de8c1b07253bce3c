package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stratalabs/ragd/internal/embeddings"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer using only the provided context. " +
	"If the context does not contain the answer, say so."

// AnswerRequest holds parameters for a retrieve-then-generate call.
type AnswerRequest struct {
	NamespaceID string
	Question    string
	K           int
	MinScore    float64
	MaxTokens   int
	Temperature float64
}

// Answer is a generated answer with its supporting retrieval.
type Answer struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence_score"`
	Sources    []string  `json:"sources"`
	Retrieval  *Response `json:"-"`
}

// Answer retrieves context for the question and asks the completion
// collaborator to generate an answer grounded in it.
func (e *Engine) Answer(ctx context.Context, completer embeddings.Completer, req AnswerRequest) (*Answer, error) {
	resp, err := e.Query(ctx, req.NamespaceID, req.Question, req.K, req.MinScore)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", BuildContext(resp.Results), req.Question)

	text, err := completer.Complete(ctx, embeddings.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: defaultSystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	seen := make(map[string]struct{})
	var sources []string
	for _, r := range resp.Results {
		if _, ok := seen[r.DocumentID]; ok {
			continue
		}
		seen[r.DocumentID] = struct{}{}
		sources = append(sources, r.DocumentID)
	}

	e.logger.Debug("answer generated",
		zap.String("namespace", req.NamespaceID),
		zap.Int("sources", len(sources)),
	)

	return &Answer{
		Text:       text,
		Confidence: resp.Confidence,
		Sources:    sources,
		Retrieval:  resp,
	}, nil
}
