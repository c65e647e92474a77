package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/fatih/color"

	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/chunker"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/config"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/llm"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/store"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/vault"
)

// runIngest walks the vault, chunks every note, embeds the chunks in
// batches and upserts them into the vector store. Re-running it on an
// unchanged vault is a no-op apart from rewriting the same rows.
func runIngest(cfg *config.Config) error {
	if cfg.Vault.Path == "" {
		return fmt.Errorf("vault path is required (use -vault or VAULT_PATH)")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is required (use -db-url or DATABASE_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	parser, err := vault.NewParser(cfg.Vault.Path, cfg.Vault.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("opening vault: %v", err)
	}
	notes, err := parser.ParseAll()
	if err != nil {
		return fmt.Errorf("parsing vault: %v", err)
	}
	stats := vault.Statistics(notes)
	color.Green("✓ Parsed %d notes (%d words)", stats.TotalNotes, stats.TotalWords)
	printGroups("  categories", stats.Categories)

	c := chunker.NewWithConfig(chunker.Config{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
		MinChunkSize: cfg.Chunker.MinChunkSize,
	})
	chunks := c.ChunkAll(notes)
	color.Green("✓ Created %d chunks", len(chunks))

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

	bar := getProgressBar(len(chunks), " Embedding and storing")
	batchSize := cfg.Database.BatchSize
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch at %d: %v", i, err)
		}
		for j := range batch {
			batch[j].Embedding = vectors[j]
		}

		if err := vs.Add(ctx, batch); err != nil {
			return fmt.Errorf("storing batch at %d: %v", i, err)
		}
		bar.Add(len(batch))
	}
	bar.Finish()
	fmt.Println()

	indexStats, err := vs.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("reading index statistics: %v", err)
	}
	color.Green("✓ Index now holds %d chunks from %d notes", indexStats.TotalChunks, indexStats.Notes)
	return nil
}

func printGroups(label string, groups map[string]int) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %s (%d)\n", label, name, groups[name])
	}
}
