package server

import (
	"fmt"
	"net/http"

	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/tree"
)

type bookSummary struct {
	BookName     string `json:"book_name"`
	Title        string `json:"title"`
	FilePath     string `json:"file_path"`
	ChapterCount int    `json:"chapter_count"`
	NoteCount    int    `json:"note_count"`
}

// handleBooks lists every book with a built tree, grouped by category.
func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	trees, err := s.trees.Trees()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trees: %v", err))
		return
	}

	byCategory := make(map[string][]bookSummary)
	for _, node := range trees {
		root := node.Note
		byCategory[root.Category] = append(byCategory[root.Category], bookSummary{
			BookName:     root.Title,
			Title:        root.Title,
			FilePath:     root.FilePath,
			ChapterCount: len(node.Children),
			NoteCount:    node.CountNodes(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories":  byCategory,
		"total_books": len(trees),
	})
}

func (s *Server) handleBookTree(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	book := r.PathValue("book")

	node, ok, err := s.trees.Tree(category, book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trees: %v", err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no tree for %s/%s", category, book))
		return
	}

	writeJSON(w, http.StatusOK, node.Serialize())
}

func (s *Server) handleTreeRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.trees.Rebuild(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("rebuild failed: %v", err))
		return
	}

	trees, err := s.trees.Trees()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trees: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rebuilt": len(trees)})
}

// handleNavigation returns breadcrumbs, siblings, and children for a note
// within its book's tree. The note is addressed by its vault-relative path.
func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	book := r.URL.Query().Get("book")
	path := r.URL.Query().Get("path")
	if category == "" || book == "" || path == "" {
		writeError(w, http.StatusBadRequest, "category, book and path are required")
		return
	}

	node, ok, err := s.trees.Tree(category, book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load trees: %v", err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no tree for %s/%s", category, book))
		return
	}

	notes, err := s.trees.Notes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load notes: %v", err))
		return
	}

	for _, note := range notes {
		if note.FilePath == path {
			writeJSON(w, http.StatusOK, tree.NavigationFor(node, note))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("no note at %s", path))
}
