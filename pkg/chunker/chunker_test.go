package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/chunker"
)

func words(n int, prefix string) string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i%26))
	}
	return strings.Join(out, " ")
}

func TestChunker_ShortNoteSingleChunk(t *testing.T) {
	c := chunker.NewWithConfig(chunker.Config{})

	note := models.Note{ID: "phil_book_ch1", Content: "  A short reflection on presence.  "}
	chunks := c.Chunk(note)

	require.Len(t, chunks, 1)
	assert.Equal(t, "phil_book_ch1_chunk_0", chunks[0].ID)
	assert.Equal(t, "A short reflection on presence.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, "phil_book_ch1", chunks[0].NoteID)
}

func TestChunker_EmptyNote(t *testing.T) {
	c := chunker.NewWithConfig(chunker.Config{})

	assert.Nil(t, c.Chunk(models.Note{ID: "empty", Content: ""}))
	assert.Nil(t, c.Chunk(models.Note{ID: "blank", Content: "   \n\n  "}))
}

func TestChunker_SplitsOnHeaders(t *testing.T) {
	// 26 tokens / 1.3 = 20 words per chunk, 4 words of overlap.
	c := chunker.NewWithConfig(chunker.Config{
		ChunkSize:    26,
		ChunkOverlap: 6,
		MinChunkSize: 3,
	})

	para1 := "alpha bravo charlie delta echo foxtrot golf hotel india juliett"
	para2 := "kilo lima mike november oscar papa quebec romeo sierra tango"
	note := models.Note{
		ID:      "n",
		Content: "# One\n" + para1 + "\n# Two\n" + para2,
	}

	chunks := c.Chunk(note)
	require.Len(t, chunks, 2)

	assert.Equal(t, "# One\n"+para1, chunks[0].Text)
	// The second chunk carries the tail of the first, joined with " ... ".
	assert.True(t, strings.HasPrefix(chunks[1].Text, "golf hotel india juliett ... "), chunks[1].Text)
	assert.Contains(t, chunks[1].Text, "# Two")

	assert.Equal(t, "n_chunk_0", chunks[0].ID)
	assert.Equal(t, "n_chunk_1", chunks[1].ID)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, 2, chunk.TotalChunks)
	}
}

func TestChunker_SplitsOnParagraphs(t *testing.T) {
	c := chunker.NewWithConfig(chunker.Config{
		ChunkSize:    26,
		ChunkOverlap: 6,
		MinChunkSize: 3,
	})

	para1 := words(15, "x")
	para2 := words(15, "y")
	note := models.Note{ID: "n", Content: para1 + "\n\n" + para2}

	chunks := c.Chunk(note)
	require.Len(t, chunks, 2)
	assert.Equal(t, para1, chunks[0].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, para2))
	assert.Contains(t, chunks[1].Text, " ... ")
}

func TestChunker_DropsSectionsBelowMinimum(t *testing.T) {
	// 10 words per chunk with a 10-word floor: every section is too small.
	c := chunker.NewWithConfig(chunker.Config{
		ChunkSize:    13,
		ChunkOverlap: 3,
		MinChunkSize: 13,
	})

	note := models.Note{
		ID:      "n",
		Content: "# A\none two three\n# B\nfour five six\n# C\nseven eight nine",
	}

	assert.Empty(t, c.Chunk(note))
}

func TestChunker_PropagatesNoteMetadata(t *testing.T) {
	c := chunker.NewWithConfig(chunker.Config{})

	note := models.Note{
		ID:       "phil_earth_ch1",
		Title:    "Chapter One",
		Category: "Philosophy",
		Book:     "A New Earth",
		FilePath: "Philosophy/A New Earth/Chapter One.md",
		Links:    []string{"Chapter Two"},
		Content:  "Presence is the key.",
	}

	chunks := c.Chunk(note)
	require.Len(t, chunks, 1)
	assert.Equal(t, note.Title, chunks[0].Title)
	assert.Equal(t, note.Category, chunks[0].Category)
	assert.Equal(t, note.Book, chunks[0].Book)
	assert.Equal(t, note.FilePath, chunks[0].FilePath)
	assert.Equal(t, note.Links, chunks[0].Links)
}

func TestChunker_ChunkAllSkipsEmptyNotes(t *testing.T) {
	c := chunker.NewWithConfig(chunker.Config{})

	notes := []models.Note{
		{ID: "a", Content: "Something worth keeping."},
		{ID: "b", Content: ""},
		{ID: "c", Content: "Another note."},
	}

	chunks := c.ChunkAll(notes)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a_chunk_0", chunks[0].ID)
	assert.Equal(t, "c_chunk_0", chunks[1].ID)
}
