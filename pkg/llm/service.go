package llm

import (
	"context"
	"errors"
	"log"

	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoProviders signals that the registry holds no configured backends at
// all. It is distinct from a configured backend failing a call, so callers
// can tell "not configured" from "provider failed".
var ErrNoProviders = errors.New("no generation providers configured")

// ServiceConfig describes the backends to register. OpenAI and Anthropic
// are only registered when their API keys are set.
type ServiceConfig struct {
	OllamaURL      string
	OllamaModel    string
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
}

// Service is the provider registry: a fixed set of named backends built
// once at startup from available configuration and credentials.
type Service struct {
	providers map[string]Provider
	order     []string
}

// NewService builds the registry. Backends that fail to initialize are
// logged and left out rather than failing startup.
func NewService(config ServiceConfig) *Service {
	if config.OllamaURL == "" {
		config.OllamaURL = "http://localhost:11434"
	}
	if config.OllamaModel == "" {
		config.OllamaModel = "llama3.1"
	}
	if config.OpenAIModel == "" {
		config.OpenAIModel = "gpt-4-turbo-preview"
	}
	if config.AnthropicModel == "" {
		config.AnthropicModel = "claude-3-sonnet-20240229"
	}

	s := &Service{providers: make(map[string]Provider)}

	if model, err := ollama.New(
		ollama.WithModel(config.OllamaModel),
		ollama.WithServerURL(config.OllamaURL),
	); err != nil {
		log.Printf("llm: ollama not available: %v", err)
	} else {
		s.Register(&langchainProvider{name: "ollama", model: model})
	}

	if config.OpenAIKey != "" {
		if model, err := openai.New(
			openai.WithToken(config.OpenAIKey),
			openai.WithModel(config.OpenAIModel),
		); err != nil {
			log.Printf("llm: openai not available: %v", err)
		} else {
			s.Register(&langchainProvider{name: "openai", model: model})
		}
	}

	if config.AnthropicKey != "" {
		if model, err := anthropic.New(
			anthropic.WithToken(config.AnthropicKey),
			anthropic.WithModel(config.AnthropicModel),
		); err != nil {
			log.Printf("llm: anthropic not available: %v", err)
		} else {
			s.Register(&langchainProvider{name: "anthropic", model: model})
		}
	}

	if len(s.order) == 0 {
		log.Printf("llm: no generation providers available")
	}
	return s
}

// Register adds a provider under its own name. Registration order decides
// the fallback choice when a requested provider is missing.
func (s *Service) Register(p Provider) {
	if s.providers == nil {
		s.providers = make(map[string]Provider)
	}
	if _, ok := s.providers[p.Name()]; !ok {
		s.order = append(s.order, p.Name())
	}
	s.providers[p.Name()] = p
}

// IsAvailable reports whether a provider is registered under name.
func (s *Service) IsAvailable(name string) bool {
	_, ok := s.providers[name]
	return ok
}

// Available lists registered provider names in registration order.
func (s *Service) Available() []string {
	return append([]string(nil), s.order...)
}

// resolve picks the requested provider, falling back to the first
// registered one when the requested name is missing.
func (s *Service) resolve(name string) (Provider, error) {
	if p, ok := s.providers[name]; ok {
		return p, nil
	}
	if len(s.order) == 0 {
		return nil, ErrNoProviders
	}
	fallback := s.providers[s.order[0]]
	log.Printf("llm: provider %q not available, using %q", name, fallback.Name())
	return fallback, nil
}

// Generate produces a complete response with the named provider.
func (s *Service) Generate(ctx context.Context, provider, prompt string, opts GenerateOptions) (string, error) {
	p, err := s.resolve(provider)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, prompt, opts)
}

// GenerateStream produces a streaming response with the named provider.
func (s *Service) GenerateStream(ctx context.Context, provider, prompt string, opts GenerateOptions) (<-chan string, error) {
	p, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}
	return p.GenerateStream(ctx, prompt, opts)
}
