// Package rag implements the retrieval pipeline: embed the query, fetch
// nearest chunks from the vector index, re-rank them, and assemble a
// word-budgeted, source-attributed context window.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/types"
)

// Score blend weights. Semantic similarity dominates; keyword overlap and
// link connectivity act as small corrective nudges.
const (
	similarityWeight = 0.7
	keywordWeight    = 0.2
	linkBonusStep    = 0.01
	linkBonusCap     = 0.1
)

// budgetWordRatio approximates token-to-word conversion for the context
// budget.
const budgetWordRatio = 0.75

const snippetLimit = 200

type EngineConfig struct {
	TopK         int // chunks fetched from the index per query
	ContextLimit int // context budget in tokens
}

type Engine struct {
	config   EngineConfig
	embedder types.Embedder
	index    types.VectorIndex
}

func NewWithConfig(config EngineConfig, embedder types.Embedder, index types.VectorIndex) *Engine {
	if config.TopK == 0 {
		config.TopK = 10
	}
	if config.ContextLimit == 0 {
		config.ContextLimit = 2000
	}
	return &Engine{config: config, embedder: embedder, index: index}
}

type rankedChunk struct {
	types.SearchResult
	FinalScore float64
}

// RetrieveContext runs the retrieval pipeline for a query. Zero matching
// chunks yield an empty context and an empty citation list, not an error;
// embedding and index failures propagate without retry or degradation.
func (e *Engine) RetrieveContext(ctx context.Context, query, categoryFilter, bookFilter string) (string, []models.Citation, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := e.index.Query(ctx, vector, e.config.TopK, types.QueryFilter{
		Category: categoryFilter,
		Book:     bookFilter,
	})
	if err != nil {
		return "", nil, fmt.Errorf("querying index: %w", err)
	}

	ranked := e.rerank(query, results)
	context, citations := e.assembleContext(ranked)

	log.Printf("rag: retrieved %d sources for query %.40q", len(citations), query)
	return context, citations, nil
}

// rerank blends the index's similarity with lexical-overlap and
// link-connectivity signals. Ties keep input order.
func (e *Engine) rerank(query string, results []types.SearchResult) []rankedChunk {
	queryWords := wordSet(query)

	ranked := make([]rankedChunk, 0, len(results))
	for _, res := range results {
		// The index's cosine distance can exceed 1, so the similarity
		// term may leave [0,1]; the blend is intentionally unclamped.
		similarity := 1.0 - float64(res.Distance)
		score := similarity * similarityWeight
		score += keywordOverlap(queryWords, res.Text) * keywordWeight
		score += linkBonus(res.Metadata.Links)

		ranked = append(ranked, rankedChunk{SearchResult: res, FinalScore: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

func wordSet(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		words[w] = struct{}{}
	}
	return words
}

// keywordOverlap is the fraction of query words present in the text.
func keywordOverlap(queryWords map[string]struct{}, text string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	matched := 0
	for w := range wordSet(text) {
		if _, ok := queryWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

// linkBonus rewards well-connected notes, capped. Malformed stored link
// metadata counts as zero links rather than failing the rerank.
func linkBonus(raw string) float64 {
	if raw == "" {
		return 0
	}
	var links []string
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return 0
	}
	bonus := float64(len(links)) * linkBonusStep
	if bonus > linkBonusCap {
		bonus = linkBonusCap
	}
	return bonus
}

// assembleContext greedily fills the word budget in rank order. The cutoff
// is checked before appending and is a hard stop: the first overflowing
// candidate ends the fill, it is not skipped over.
func (e *Engine) assembleContext(ranked []rankedChunk) (string, []models.Citation) {
	maxWords := int(float64(e.config.ContextLimit) * budgetWordRatio)

	var parts []string
	citations := []models.Citation{}
	totalWords := 0

	for _, chunk := range ranked {
		chunkWords := len(strings.Fields(chunk.Text))
		if totalWords+chunkWords > maxWords {
			break
		}

		meta := chunk.Metadata
		label := meta.Title
		if meta.Book != "" {
			label = meta.Book + " - " + meta.Title
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", label, chunk.Text))

		citations = append(citations, models.Citation{
			Title:          meta.Title,
			Category:       meta.Category,
			Book:           meta.Book,
			FilePath:       meta.FilePath,
			Snippet:        snippet(chunk.Text),
			RelevanceScore: math.Round(chunk.FinalScore*1000) / 1000,
		})
		totalWords += chunkWords
	}

	return strings.Join(parts, "\n\n---\n\n"), citations
}

// snippet truncates text for a citation, appending an ellipsis only when
// something was cut.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetLimit]) + "..."
}
