package rag

import (
	"context"
	"fmt"
	"math"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/types"
)

// SearchHit is one ranked chunk returned by a direct semantic search,
// scored by raw index similarity without the chat pipeline's rerank blend.
type SearchHit struct {
	ID             string  `json:"id"`
	Content        string  `json:"content"`
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	Book           string  `json:"book,omitempty"`
	FilePath       string  `json:"file_path"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Search embeds the query and returns the nearest chunks with their
// metadata, most similar first. Relevance is 1 − cosine distance, rounded
// to three decimals; like the rerank blend it is intentionally unclamped.
func (e *Engine) Search(ctx context.Context, query string, limit int, categoryFilter, bookFilter string) ([]SearchHit, error) {
	if limit <= 0 {
		limit = e.config.TopK
	}

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := e.index.Query(ctx, vector, limit, types.QueryFilter{
		Category: categoryFilter,
		Book:     bookFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, SearchHit{
			ID:             res.ID,
			Content:        res.Text,
			Title:          res.Metadata.Title,
			Category:       res.Metadata.Category,
			Book:           res.Metadata.Book,
			FilePath:       res.Metadata.FilePath,
			RelevanceScore: math.Round((1-float64(res.Distance))*1000) / 1000,
		})
	}
	return hits, nil
}
