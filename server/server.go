// Package server is the HTTP transport shell over the retrieval core:
// request decoding, routing, and response encoding, with the pipeline
// itself behind small service interfaces.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/types"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/llm"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/rag"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/tree"
)

// RAGService is the retrieval surface consumed by the transport layer.
type RAGService interface {
	RetrieveContext(ctx context.Context, query, categoryFilter, bookFilter string) (string, []models.Citation, error)
	ConstructPrompt(query, context string, history []models.ChatMessage) string
	ParseCitations(response string) []string
	Search(ctx context.Context, query string, limit int, categoryFilter, bookFilter string) ([]rag.SearchHit, error)
}

// Generator is the generation surface consumed by the transport layer.
type Generator interface {
	Generate(ctx context.Context, provider, prompt string, opts llm.GenerateOptions) (string, error)
	GenerateStream(ctx context.Context, provider, prompt string, opts llm.GenerateOptions) (<-chan string, error)
	IsAvailable(name string) bool
	Available() []string
}

// StatsProvider exposes index statistics.
type StatsProvider interface {
	Statistics(ctx context.Context) (*types.IndexStats, error)
}

type Config struct {
	Port            string
	DefaultProvider string
	Temperature     float64
	MaxTokens       int
}

type Server struct {
	config    Config
	engine    RAGService
	generator Generator
	trees     *tree.Cache
	stats     StatsProvider
}

func New(config Config, engine RAGService, generator Generator, trees *tree.Cache, stats StatsProvider) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.DefaultProvider == "" {
		config.DefaultProvider = "ollama"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	return &Server{
		config:    config,
		engine:    engine,
		generator: generator,
		trees:     trees,
		stats:     stats,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/search/categories", s.handleSearchCategories)
	mux.HandleFunc("GET /api/search/books", s.handleSearchBooks)

	mux.HandleFunc("GET /api/tree/books", s.handleBooks)
	mux.HandleFunc("GET /api/tree/{category}/{book}", s.handleBookTree)
	mux.HandleFunc("POST /api/tree/rebuild", s.handleTreeRebuild)
	mux.HandleFunc("GET /api/navigation", s.handleNavigation)

	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("server: listening on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	available := s.generator.Available()

	defaultProvider := ""
	if s.generator.IsAvailable(s.config.DefaultProvider) {
		defaultProvider = s.config.DefaultProvider
	} else if len(available) > 0 {
		defaultProvider = available[0]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models":  available,
		"default": defaultProvider,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read statistics: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("server: error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
