package chunker

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
)

// Sizes are configured in tokens and converted to words with a fixed ratio.
const tokensPerWord = 1.3

var headerPattern = regexp.MustCompile(`^#{1,6}\s+.+$`)
var paragraphBreak = regexp.MustCompile(`\n{2,}`)

type Config struct {
	ChunkSize    int // target chunk size in tokens
	ChunkOverlap int // overlap between chunks in tokens
	MinChunkSize int // minimum chunk size in tokens
}

// Chunker splits notes into overlapping retrieval units, preferring
// structural boundaries (headers, then paragraphs) over raw size splits.
type Chunker struct {
	config Config

	wordsPerChunk int
	overlapWords  int
	minWords      int
}

func NewWithConfig(config Config) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 800
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 150
	}
	if config.MinChunkSize == 0 {
		config.MinChunkSize = 100
	}

	return Chunker{
		config:        config,
		wordsPerChunk: int(float64(config.ChunkSize) / tokensPerWord),
		overlapWords:  int(float64(config.ChunkOverlap) / tokensPerWord),
		minWords:      int(float64(config.MinChunkSize) / tokensPerWord),
	}
}

// Chunk splits a single note. Notes at or under the target size become
// exactly one chunk; empty notes and notes whose every section falls under
// the minimum size produce no chunks at all.
func (c *Chunker) Chunk(note models.Note) []models.Chunk {
	content := strings.TrimSpace(note.Content)
	if content == "" {
		return nil
	}

	if len(strings.Fields(content)) <= c.wordsPerChunk {
		return []models.Chunk{c.newChunk(note, content, 0, 1)}
	}

	texts := c.splitStructural(content)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, c.newChunk(note, text, i, len(texts)))
	}
	return chunks
}

// ChunkAll chunks every note, skipping the ones that contribute nothing.
func (c *Chunker) ChunkAll(notes []models.Note) []models.Chunk {
	var all []models.Chunk
	for _, note := range notes {
		chunks := c.Chunk(note)
		if len(chunks) == 0 {
			log.Printf("chunker: note %s produced no chunks", note.ID)
			continue
		}
		all = append(all, chunks...)
	}
	return all
}

func (c *Chunker) splitStructural(content string) []string {
	sections := splitByHeaders(content)

	var chunks []string
	for _, section := range sections {
		words := len(strings.Fields(section))
		if words <= c.wordsPerChunk {
			if words >= c.minWords {
				chunks = append(chunks, section)
			}
			continue
		}
		chunks = append(chunks, c.splitByParagraphs(section)...)
	}

	return c.addOverlap(chunks)
}

// splitByHeaders starts a new section at every markdown header line. When
// the content has no headers, the whole text is one section.
func splitByHeaders(content string) []string {
	var sections []string
	var current []string

	for _, line := range strings.Split(content, "\n") {
		if headerPattern.MatchString(line) {
			if len(current) > 0 {
				sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
			}
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
	}

	if len(sections) <= 1 {
		return []string{content}
	}
	return sections
}

// splitByParagraphs accumulates paragraphs into groups up to the target
// size. When no group survives the minimum-size floor, the whole section is
// returned as a single fallback chunk.
func (c *Chunker) splitByParagraphs(section string) []string {
	paragraphs := paragraphBreak.Split(section, -1)

	var chunks []string
	var group []string
	groupWords := 0

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		paraWords := len(strings.Fields(para))
		if groupWords+paraWords > c.wordsPerChunk {
			if len(group) > 0 {
				chunks = append(chunks, strings.Join(group, "\n\n"))
			}
			group = []string{para}
			groupWords = paraWords
			continue
		}
		group = append(group, para)
		groupWords += paraWords
	}

	if len(group) > 0 {
		text := strings.Join(group, "\n\n")
		if len(strings.Fields(text)) >= c.minWords {
			chunks = append(chunks, text)
		}
	}

	if len(chunks) == 0 {
		return []string{section}
	}
	return chunks
}

// addOverlap prepends the tail of the previous chunk to every chunk after
// the first, joined with an explicit " ... " separator for continuity.
func (c *Chunker) addOverlap(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}

	overlapped := make([]string, len(chunks))
	overlapped[0] = chunks[0]

	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		if len(prevWords) > c.overlapWords {
			tail := strings.Join(prevWords[len(prevWords)-c.overlapWords:], " ")
			overlapped[i] = tail + " ... " + chunks[i]
		} else {
			overlapped[i] = chunks[i]
		}
	}
	return overlapped
}

func (c *Chunker) newChunk(note models.Note, text string, index, total int) models.Chunk {
	return models.Chunk{
		ID:          fmt.Sprintf("%s_chunk_%d", note.ID, index),
		NoteID:      note.ID,
		Text:        strings.TrimSpace(text),
		ChunkIndex:  index,
		TotalChunks: total,
		Title:       note.Title,
		Category:    note.Category,
		Book:        note.Book,
		FilePath:    note.FilePath,
		Links:       note.Links,
	}
}
