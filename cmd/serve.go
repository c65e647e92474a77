package main

import (
	"context"
	"fmt"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/config"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/llm"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/rag"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/store"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/tree"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/vault"
	"github.com/FrancescoCavina02/Spiritual-chatbot/server"
)

// runServe wires the retrieval pipeline, the provider registry and the
// tree cache into the HTTP server and blocks until it stops.
func runServe(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is required (use -db-url or DATABASE_URL)")
	}
	if cfg.Vault.Path == "" {
		return fmt.Errorf("vault path is required (use -vault or VAULT_PATH)")
	}

	ctx := context.Background()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %v", err)
	}

	vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:  cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		SearchLimit: cfg.Database.SearchLimit,
	})
	if err != nil {
		return fmt.Errorf("connecting to vector store: %v", err)
	}
	defer vs.Close()

	engine := rag.NewWithConfig(rag.EngineConfig{
		TopK:         cfg.RAG.TopK,
		ContextLimit: cfg.RAG.ContextLimit,
	}, embedder, vs)

	generator := llm.NewService(llm.ServiceConfig{
		OllamaURL:      cfg.LLM.OllamaURL,
		OllamaModel:    cfg.LLM.OllamaModel,
		OpenAIKey:      cfg.LLM.OpenAIKey,
		OpenAIModel:    cfg.LLM.OpenAIModel,
		AnthropicKey:   cfg.LLM.AnthropicKey,
		AnthropicModel: cfg.LLM.AnthropicModel,
	})

	trees := tree.NewCache(func() ([]models.Note, error) {
		parser, err := vault.NewParser(cfg.Vault.Path, cfg.Vault.ExcludePatterns)
		if err != nil {
			return nil, err
		}
		return parser.ParseAll()
	})

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		DefaultProvider: cfg.LLM.DefaultProvider,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
	}, engine, generator, trees, vs)

	return srv.ListenAndServe()
}
