package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/llm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type ChatRequest struct {
	Message        string               `json:"message"`
	Provider       string               `json:"provider,omitempty"`
	CategoryFilter string               `json:"category_filter,omitempty"`
	BookFilter     string               `json:"book_filter,omitempty"`
	ConversationID string               `json:"conversation_id,omitempty"`
	History        []models.ChatMessage `json:"history,omitempty"`
}

type ChatResponse struct {
	Message          string            `json:"message"`
	ConversationID   string            `json:"conversation_id"`
	Citations        []models.Citation `json:"citations"`
	CitedTitles      []string          `json:"cited_titles"`
	ModelUsed        string            `json:"model_used"`
	ProcessingTimeMS float64           `json:"processing_time_ms"`
}

// Message is one WebSocket frame.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	provider, err := s.pickProvider(req.Provider)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	ctx := r.Context()
	contextText, citations, err := s.engine.RetrieveContext(ctx, req.Message, req.CategoryFilter, req.BookFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("retrieval failed: %v", err))
		return
	}

	prompt := s.engine.ConstructPrompt(req.Message, contextText, req.History)

	answer, err := s.generator.Generate(ctx, provider, prompt, llm.GenerateOptions{
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrNoProviders) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, fmt.Sprintf("generation failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Message:          answer,
		ConversationID:   conversationID(req.ConversationID),
		Citations:        citations,
		CitedTitles:      s.engine.ParseCitations(answer),
		ModelUsed:        provider,
		ProcessingTimeMS: float64(time.Since(start).Microseconds()) / 1000,
	})
}

// pickProvider resolves the requested provider name, falling back to the
// first available one. An empty registry is reported as "not configured",
// distinct from a provider call failing later.
func (s *Server) pickProvider(requested string) (string, error) {
	if requested == "" {
		requested = s.config.DefaultProvider
	}
	if s.generator.IsAvailable(requested) {
		return requested, nil
	}

	available := s.generator.Available()
	if len(available) == 0 {
		return "", errors.New("no generation providers configured")
	}
	log.Printf("server: provider %q not available, using %q", requested, available[0])
	return available[0], nil
}

// handleWebSocket streams chat answers over a WebSocket connection. Each
// frame from the client is a ChatRequest; the reply is a citations frame,
// then text fragments as they arrive, then a done marker. Closing the
// connection cancels any in-flight generation.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("server: error reading message: %v", err)
			}
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("invalid request: %v", err)})
			continue
		}

		s.streamChat(ctx, conn, req)
	}
}

func (s *Server) streamChat(ctx context.Context, conn *websocket.Conn, req ChatRequest) {
	if strings.TrimSpace(req.Message) == "" {
		s.sendMessage(conn, Message{Type: "error", Content: "message is required"})
		return
	}

	provider, err := s.pickProvider(req.Provider)
	if err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
		return
	}

	contextText, citations, err := s.engine.RetrieveContext(ctx, req.Message, req.CategoryFilter, req.BookFilter)
	if err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("retrieval failed: %v", err)})
		return
	}

	// Citations go out before the first text fragment so the client can
	// render sources while the answer streams.
	if err := s.sendMessage(conn, Message{Type: "citations", Data: citations}); err != nil {
		return
	}

	// The generation gets its own context so a dead connection abandons
	// the backend call instead of letting it run to completion.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prompt := s.engine.ConstructPrompt(req.Message, contextText, req.History)
	stream, err := s.generator.GenerateStream(streamCtx, provider, prompt, llm.GenerateOptions{
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("generation failed: %v", err)})
		return
	}

	for fragment := range stream {
		if err := s.sendMessage(conn, Message{Type: "stream", Content: fragment}); err != nil {
			cancel()
			for range stream {
				// drain until the provider observes the cancellation
			}
			return
		}
	}

	s.sendMessage(conn, Message{Type: "done", Data: map[string]string{
		"model":           provider,
		"conversation_id": conversationID(req.ConversationID),
	}})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) error {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("server: error sending message: %v", err)
		return err
	}
	return nil
}

func conversationID(existing string) string {
	if existing != "" {
		return existing
	}
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
