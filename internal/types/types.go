package types

import (
	"context"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
)

// Embedder converts text into fixed-dimension unit vectors. The dimension is
// fixed for the lifetime of the index.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkMetadata is the denormalized note metadata carried by every stored
// chunk. Links is the JSON-encoded list of outbound wiki links; consumers
// treat a malformed value as zero links.
type ChunkMetadata struct {
	NoteID      string
	Title       string
	Category    string
	Book        string
	FilePath    string
	ChunkIndex  int
	TotalChunks int
	Links       string
}

// SearchResult is one nearest neighbor returned by the vector index.
// Distance is the cosine distance reported by the index.
type SearchResult struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
	Distance float32
}

// QueryFilter narrows a vector query by exact metadata equality. Empty
// fields are ignored; when both are set, both must match. Values pass
// through unnormalized, so a case mismatch returns zero results.
type QueryFilter struct {
	Category string
	Book     string
}

// IndexStats reports chunk counts grouped by category and book.
type IndexStats struct {
	TotalChunks int            `json:"total_chunks"`
	Notes       int            `json:"notes"`
	Categories  map[string]int `json:"categories"`
	Books       map[string]int `json:"books"`
}

// VectorIndex stores embedded chunks and answers nearest-neighbor queries.
type VectorIndex interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, vector []float32, k int, filter QueryFilter) ([]SearchResult, error)
	Statistics(ctx context.Context) (*IndexStats, error)
	Close()
}
