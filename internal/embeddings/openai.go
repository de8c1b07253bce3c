package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIConfig holds configuration for an OpenAI-compatible provider.
// Works with OpenAI, OpenRouter and Ollama endpoints.
type OpenAIConfig struct {
	// BaseURL is the API base URL.
	// Default: "https://api.openai.com/v1"
	BaseURL string

	// APIKey is the bearer token. Optional for Ollama.
	APIKey string

	// Model is the embedding model name.
	// Default: "text-embedding-3-small"
	Model string

	// CompletionModel is the chat model used for Complete.
	// Default: "gpt-4o-mini"
	CompletionModel string
}

// ApplyDefaults sets default values for unset fields.
func (c *OpenAIConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.CompletionModel == "" {
		c.CompletionModel = "gpt-4o-mini"
	}
}

// OpenAIProvider generates embeddings and completions via an
// OpenAI-compatible HTTP API.
type OpenAIProvider struct {
	config    OpenAIConfig
	client    *http.Client
	dimension int
	metrics   *Metrics
}

// NewOpenAIProvider creates an OpenAI-compatible embedding provider.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	config.ApplyDefaults()

	return &OpenAIProvider{
		config:    config,
		client:    &http.Client{Timeout: 60 * time.Second},
		dimension: detectDimensionFromModel(config.Model),
		metrics:   NewMetrics(nil),
	}, nil
}

// embeddingRequest is the request body for the embeddings endpoint.
type embeddingRequest struct {
	Model string      `json:"model"`
	Input interface{} `json:"input"`
}

// embeddingResponse is the response body from the embeddings endpoint.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// chatRequest is the request body for the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response body from the chat completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Dimension returns the embedding dimension for the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op since the provider uses HTTP.
func (p *OpenAIProvider) Close() error {
	return nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	var parsed embeddingResponse
	if err := p.post(ctx, "/embeddings", embeddingRequest{Model: p.config.Model, Input: texts}, &parsed); err != nil {
		genErr = err
		return nil, genErr
	}

	if len(parsed.Data) != len(texts) {
		genErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(parsed.Data), len(texts))
		return nil, genErr
	}

	// The API may return entries out of order; place by index.
	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			genErr = fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, d.Index)
			return nil, genErr
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Complete generates completion text for a prompt via the chat endpoint.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var parsed chatResponse
	err := p.post(ctx, "/chat/completions", chatRequest{
		Model:       p.config.CompletionModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, &parsed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrCompletionFailed)
	}

	return parsed.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) post(ctx context.Context, path string, reqBody, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// Ensure OpenAIProvider implements Provider and Completer.
var (
	_ Provider  = (*OpenAIProvider)(nil)
	_ Completer = (*OpenAIProvider)(nil)
)
