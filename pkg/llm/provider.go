package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"
)

// GenerateOptions are the per-call generation parameters.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Provider is one interchangeable generation backend. GenerateStream
// forwards fragments in arrival order as soon as they are produced and
// closes the channel when the generation ends; cancelling the context
// abandons the in-flight call.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error)
}

// langchainProvider adapts a langchaingo model to the Provider interface.
type langchainProvider struct {
	name  string
	model llms.Model
}

func (p *langchainProvider) Name() string { return p.name }

func (p *langchainProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt,
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", p.name, err)
	}
	return response, nil
}

func (p *langchainProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error) {
	out := make(chan string)

	go func() {
		defer close(out)

		_, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt,
			llms.WithTemperature(opts.Temperature),
			llms.WithMaxTokens(opts.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case out <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil && ctx.Err() == nil {
			log.Printf("llm: %s stream ended with error: %v", p.name, err)
		}
	}()

	return out, nil
}
