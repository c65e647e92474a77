package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// EmbedderConfig configures the embedding backend. RateLimit paces batch
// embedding calls during ingestion so a bulk reindex cannot saturate the
// embedding server.
type EmbedderConfig struct {
	Model     string
	BaseURL   string
	RateLimit float64 // batch embedding calls per second
}

// Embedder produces unit-normalized vectors through an Ollama embedding
// model. The same text always embeds to the same vector.
type Embedder struct {
	config  EmbedderConfig
	client  *ollama.LLM
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 4
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query: empty response")
	}
	return normalize(vectors[0]), nil
}

// EmbedBatch embeds a batch of chunk texts, waiting on the rate limiter
// before each call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding batch: got %d vectors for %d texts", len(vectors), len(texts))
	}

	for i := range vectors {
		vectors[i] = normalize(vectors[i])
	}
	return vectors, nil
}

// normalize scales v to unit length; the index's cosine distances assume
// unit vectors.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
