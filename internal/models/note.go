package models

// Note is an immutable unit of source content parsed from the vault.
// Its ID is a pure function of (category, book, title); two notes with the
// same triple collide and must be disambiguated upstream.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Book      string   `json:"book,omitempty"`
	FilePath  string   `json:"file_path"`
	Links     []string `json:"links"`
	WordCount int      `json:"word_count"`
}

// Chunk is a retrieval unit derived from a note, sized for embedding.
// Metadata from the parent note is denormalized so retrieval results can be
// displayed without a join.
type Chunk struct {
	ID          string `json:"id"`
	NoteID      string `json:"note_id"`
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`

	Title    string   `json:"title"`
	Category string   `json:"category"`
	Book     string   `json:"book,omitempty"`
	FilePath string   `json:"file_path"`
	Links    []string `json:"links"`

	// Embedding is nil until the chunk has been embedded.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Citation points from a generated answer back to a contributing source.
type Citation struct {
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	Book           string  `json:"book,omitempty"`
	FilePath       string  `json:"file_path"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ChatMessage is a single turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// VaultStats summarizes a parsed note collection.
type VaultStats struct {
	TotalNotes int            `json:"total_notes"`
	TotalWords int            `json:"total_words"`
	Categories map[string]int `json:"categories"`
	Books      map[string]int `json:"books"`
}
