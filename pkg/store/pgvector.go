package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/types"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	SearchLimit int
}

// VectorStore is a pgvector-backed chunk index. Chunk metadata is stored
// denormalized next to the embedding so queries need no joins.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "note_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 10
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{config: config, pool: pool}
	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			note_id TEXT NOT NULL,
			title TEXT,
			category TEXT,
			book TEXT,
			file_path TEXT,
			chunk_index INTEGER,
			total_chunks INTEGER,
			links JSONB,
			content TEXT,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Add upserts embedded chunks in one transaction. Chunks without an
// embedding are logged and skipped.
func (vs *VectorStore) Add(ctx context.Context, chunks []models.Chunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, note_id, title, category, book, file_path,
			chunk_index, total_chunks, links, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			links = EXCLUDED.links,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			log.Printf("store: chunk %s has no embedding, skipping", chunk.ID)
			continue
		}

		_, err = tx.Exec(ctx, stmt,
			chunk.ID,
			chunk.NoteID,
			sanitizeUTF8(chunk.Title),
			chunk.Category,
			chunk.Book,
			chunk.FilePath,
			chunk.ChunkIndex,
			chunk.TotalChunks,
			encodeLinks(chunk.Links),
			sanitizeUTF8(chunk.Text),
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %v", chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// Query returns the k nearest chunks by cosine distance, optionally
// restricted by exact category/book equality.
func (vs *VectorStore) Query(ctx context.Context, vector []float32, k int, filter types.QueryFilter) ([]types.SearchResult, error) {
	if k == 0 {
		k = vs.config.SearchLimit
	}

	query, args := vs.buildQuery(vector, k, filter)
	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var res types.SearchResult
		err := rows.Scan(
			&res.ID,
			&res.Text,
			&res.Metadata.NoteID,
			&res.Metadata.Title,
			&res.Metadata.Category,
			&res.Metadata.Book,
			&res.Metadata.FilePath,
			&res.Metadata.ChunkIndex,
			&res.Metadata.TotalChunks,
			&res.Metadata.Links,
			&res.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// buildQuery assembles the KNN statement with conjunctive equality filters.
func (vs *VectorStore) buildQuery(vector []float32, k int, filter types.QueryFilter) (string, []any) {
	args := []any{pgvector.NewVector(vector)}

	var where []string
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Book != "" {
		args = append(args, filter.Book)
		where = append(where, fmt.Sprintf("book = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, content, note_id, title, category, book, file_path,
			chunk_index, total_chunks, links::text, embedding <=> $1 AS distance
		FROM %s`, vs.config.TableName)
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}

	args = append(args, k)
	query += fmt.Sprintf("\n\t\tORDER BY embedding <=> $1\n\t\tLIMIT $%d", len(args))

	return query, args
}

// Statistics reports chunk counts by category and book plus the number of
// distinct notes represented.
func (vs *VectorStore) Statistics(ctx context.Context) (*types.IndexStats, error) {
	stats := &types.IndexStats{
		Categories: make(map[string]int),
		Books:      make(map[string]int),
	}

	totals := fmt.Sprintf(
		"SELECT COUNT(*), COUNT(DISTINCT note_id) FROM %s", vs.config.TableName)
	if err := vs.pool.QueryRow(ctx, totals).Scan(&stats.TotalChunks, &stats.Notes); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %v", err)
	}

	if err := vs.countGroups(ctx, "category", stats.Categories); err != nil {
		return nil, err
	}
	if err := vs.countGroups(ctx, "book", stats.Books); err != nil {
		return nil, err
	}
	return stats, nil
}

func (vs *VectorStore) countGroups(ctx context.Context, column string, out map[string]int) error {
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM %s WHERE %s <> '' GROUP BY %s",
		column, vs.config.TableName, column, column)

	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to count by %s: %v", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %v", column, err)
		}
		out[key] = count
	}
	return rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// encodeLinks serializes the outbound link list as a JSON array so readers
// can parse it safely; nil links become an empty array, never null.
func encodeLinks(links []string) string {
	if links == nil {
		links = []string{}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
