package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type SearchRequest struct {
	Query          string `json:"query"`
	Limit          int    `json:"limit,omitempty"`
	CategoryFilter string `json:"category_filter,omitempty"`
	BookFilter     string `json:"book_filter,omitempty"`
}

// handleSearch runs a direct semantic search over the index, bypassing
// prompt construction and generation entirely.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	hits, err := s.engine.Search(r.Context(), req.Query, req.Limit, req.CategoryFilter, req.BookFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("search failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
		"count":   len(hits),
	})
}

// handleSearchCategories lists the category facet values present in the
// index, for populating search filters.
func (s *Server) handleSearchCategories(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read statistics: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": sortedKeys(stats.Categories)})
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read statistics: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": sortedKeys(stats.Books)})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
