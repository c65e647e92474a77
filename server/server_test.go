package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/types"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/llm"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/rag"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/tree"
	"github.com/FrancescoCavina02/Spiritual-chatbot/server"
)

type stubEngine struct {
	context   string
	citations []models.Citation
	hits      []rag.SearchHit

	gotQuery    string
	gotCategory string
	gotBook     string
	gotLimit    int
}

func (s *stubEngine) RetrieveContext(ctx context.Context, query, categoryFilter, bookFilter string) (string, []models.Citation, error) {
	s.gotQuery = query
	s.gotCategory = categoryFilter
	s.gotBook = bookFilter
	return s.context, s.citations, nil
}

func (s *stubEngine) ConstructPrompt(query, context string, history []models.ChatMessage) string {
	return "PROMPT: " + query
}

func (s *stubEngine) ParseCitations(response string) []string {
	var cited []string
	if strings.Contains(response, "[Source:") {
		cited = append(cited, "A New Earth - Chapter One")
	}
	return cited
}

func (s *stubEngine) Search(ctx context.Context, query string, limit int, categoryFilter, bookFilter string) ([]rag.SearchHit, error) {
	s.gotQuery = query
	s.gotLimit = limit
	s.gotCategory = categoryFilter
	s.gotBook = bookFilter
	return s.hits, nil
}

type stubGenerator struct {
	answer    string
	fragments []string
	available []string

	gotProvider string
	gotPrompt   string
}

func (s *stubGenerator) Generate(ctx context.Context, provider, prompt string, opts llm.GenerateOptions) (string, error) {
	s.gotProvider = provider
	s.gotPrompt = prompt
	return s.answer, nil
}

func (s *stubGenerator) GenerateStream(ctx context.Context, provider, prompt string, opts llm.GenerateOptions) (<-chan string, error) {
	out := make(chan string, len(s.fragments))
	for _, f := range s.fragments {
		out <- f
	}
	close(out)
	return out, nil
}

func (s *stubGenerator) IsAvailable(name string) bool {
	for _, a := range s.available {
		if a == name {
			return true
		}
	}
	return false
}

func (s *stubGenerator) Available() []string { return s.available }

type stubStats struct{}

func (s *stubStats) Statistics(ctx context.Context) (*types.IndexStats, error) {
	return &types.IndexStats{
		TotalChunks: 42,
		Notes:       7,
		Categories:  map[string]int{"Phil": 42},
		Books:       map[string]int{"A New Earth": 42},
	}, nil
}

func fixtureNotes() []models.Note {
	return []models.Note{
		{
			ID:       "root",
			Title:    "A New Earth",
			Category: "Phil",
			Book:     "A New Earth",
			FilePath: "Phil/A New Earth/Notes - A New Earth.md",
			Content:  "Overview. [[Chapter One]]",
		},
		{
			ID:       "ch1",
			Title:    "Chapter One",
			Category: "Phil",
			Book:     "A New Earth",
			FilePath: "Phil/A New Earth/Chapter One.md",
			Content:  "The flowering.",
		},
	}
}

func newTestServer(engine *stubEngine, generator server.Generator) *server.Server {
	trees := tree.NewCache(func() ([]models.Note, error) {
		return fixtureNotes(), nil
	})
	return server.New(server.Config{DefaultProvider: "ollama"}, engine, generator, trees, &stubStats{})
}

func defaultStubs() (*stubEngine, *stubGenerator) {
	engine := &stubEngine{
		context: "[Source: A New Earth - Chapter One]\nThe flowering.",
		citations: []models.Citation{
			{Title: "Chapter One", Category: "Phil", Book: "A New Earth", RelevanceScore: 0.9},
		},
	}
	generator := &stubGenerator{
		answer:    "Presence is key [Source: A New Earth - Chapter One].",
		fragments: []string{"Presence ", "is key."},
		available: []string{"ollama"},
	}
	return engine, generator
}

func doRequest(t *testing.T, s *server.Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestChat(t *testing.T) {
	engine, generator := defaultStubs()
	s := newTestServer(engine, generator)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", map[string]any{
		"message":         "What is presence?",
		"category_filter": "Phil",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message        string            `json:"message"`
		ConversationID string            `json:"conversation_id"`
		Citations      []models.Citation `json:"citations"`
		CitedTitles    []string          `json:"cited_titles"`
		ModelUsed      string            `json:"model_used"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, generator.answer, resp.Message)
	assert.Equal(t, "ollama", resp.ModelUsed)
	assert.True(t, strings.HasPrefix(resp.ConversationID, "conv_"))
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "Chapter One", resp.Citations[0].Title)
	assert.Equal(t, []string{"A New Earth - Chapter One"}, resp.CitedTitles)

	assert.Equal(t, "What is presence?", engine.gotQuery)
	assert.Equal(t, "Phil", engine.gotCategory)
	assert.Empty(t, engine.gotBook)
	assert.Equal(t, "PROMPT: What is presence?", generator.gotPrompt)
}

func TestChat_EmptyMessage(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodPost, "/api/chat", map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_InvalidBody(t *testing.T) {
	s := newTestServer(defaultStubs())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_NoProviders(t *testing.T) {
	engine, _ := defaultStubs()
	s := newTestServer(engine, &stubGenerator{available: nil})

	rec := doRequest(t, s, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChat_FallsBackToAvailableProvider(t *testing.T) {
	engine, generator := defaultStubs()
	s := newTestServer(engine, generator)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", map[string]any{
		"message":  "hello",
		"provider": "openai",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ollama", generator.gotProvider)
}

func TestModels(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ollama"}, resp.Models)
	assert.Equal(t, "ollama", resp.Default)
}

func TestStats(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats types.IndexStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 42, stats.TotalChunks)
	assert.Equal(t, 7, stats.Notes)
}

func TestBooks(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/tree/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalBooks int `json:"total_books"`
		Categories map[string][]struct {
			BookName  string `json:"book_name"`
			NoteCount int    `json:"note_count"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalBooks)
	require.Len(t, resp.Categories["Phil"], 1)
	assert.Equal(t, "A New Earth", resp.Categories["Phil"][0].BookName)
	assert.Equal(t, 2, resp.Categories["Phil"][0].NoteCount)
}

func TestBookTree(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/tree/Phil/A%20New%20Earth", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary tree.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "A New Earth", summary.Title)
	assert.True(t, summary.IsRoot)
	require.Len(t, summary.Children, 1)
	assert.Equal(t, "Chapter One", summary.Children[0].Title)
}

func TestBookTree_NotFound(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/tree/Phil/Missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTreeRebuild(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodPost, "/api/tree/rebuild", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rebuilt int `json:"rebuilt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Rebuilt)
}

func TestNavigation(t *testing.T) {
	s := newTestServer(defaultStubs())

	params := url.Values{
		"category": {"Phil"},
		"book":     {"A New Earth"},
		"path":     {"Phil/A New Earth/Chapter One.md"},
	}
	rec := doRequest(t, s, http.MethodGet, "/api/navigation?"+params.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var nav tree.NavigationContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nav))
	require.Len(t, nav.Breadcrumbs, 2)
	assert.Equal(t, "A New Earth", nav.Breadcrumbs[0].Title)
	assert.Equal(t, "Chapter One", nav.Breadcrumbs[1].Title)
	require.NotNil(t, nav.Parent)
	assert.True(t, nav.IsLeaf)
}

func TestNavigation_MissingParams(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/navigation?category=Phil", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	engine, generator := defaultStubs()
	engine.hits = []rag.SearchHit{
		{ID: "a", Content: "First passage.", Title: "Chapter One", Category: "Phil", Book: "A New Earth", RelevanceScore: 0.75},
	}
	s := newTestServer(engine, generator)

	rec := doRequest(t, s, http.MethodPost, "/api/search", map[string]any{
		"query":           "presence",
		"limit":           3,
		"category_filter": "Phil",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []rag.SearchHit `json:"results"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Chapter One", resp.Results[0].Title)
	assert.Equal(t, 0.75, resp.Results[0].RelevanceScore)

	assert.Equal(t, "presence", engine.gotQuery)
	assert.Equal(t, 3, engine.gotLimit)
	assert.Equal(t, "Phil", engine.gotCategory)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodPost, "/api/search", map[string]any{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchCategories(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/search/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Phil"}, resp.Categories)
}

func TestSearchBooks(t *testing.T) {
	s := newTestServer(defaultStubs())

	rec := doRequest(t, s, http.MethodGet, "/api/search/books", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Books []string `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"A New Earth"}, resp.Books)
}

func TestWebSocketChat(t *testing.T) {
	engine, generator := defaultStubs()
	s := newTestServer(engine, generator)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "What is presence?"}))

	var frame struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "citations", frame.Type)

	var answer strings.Builder
	for {
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type != "stream" {
			break
		}
		answer.WriteString(frame.Content)
	}
	assert.Equal(t, "done", frame.Type)
	assert.Equal(t, "Presence is key.", answer.String())
}

// slowStreamGenerator streams many fragments slowly and records whether
// the generation was cancelled or ran to completion.
type slowStreamGenerator struct {
	stubGenerator
	cancelled chan struct{}
	finished  chan struct{}
}

func newSlowStreamGenerator() *slowStreamGenerator {
	return &slowStreamGenerator{
		stubGenerator: stubGenerator{available: []string{"ollama"}},
		cancelled:     make(chan struct{}),
		finished:      make(chan struct{}),
	}
}

func (g *slowStreamGenerator) GenerateStream(ctx context.Context, provider, prompt string, opts llm.GenerateOptions) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for i := 0; i < 200; i++ {
			select {
			case <-ctx.Done():
				close(g.cancelled)
				return
			case out <- "fragment ":
			}
			time.Sleep(10 * time.Millisecond)
		}
		close(g.finished)
	}()
	return out, nil
}

func TestWebSocketDisconnectAbandonsGeneration(t *testing.T) {
	engine, _ := defaultStubs()
	generator := newSlowStreamGenerator()
	s := newTestServer(engine, generator)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "What is presence?"}))

	// Read the citations frame and the first fragment, then drop the
	// connection mid-stream.
	var frame struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "citations", frame.Type)
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "stream", frame.Type)
	require.NoError(t, conn.Close())

	select {
	case <-generator.cancelled:
	case <-generator.finished:
		t.Fatal("generation ran to completion after the client disconnected")
	case <-time.After(3 * time.Second):
		t.Fatal("generation was not cancelled after the client disconnected")
	}
}
