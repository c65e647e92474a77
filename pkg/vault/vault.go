// Package vault parses an Obsidian-style markdown vault into notes. The
// directory layout carries the metadata: top-level folders are categories,
// second-level folders are books.
package vault

import (
	"crypto/md5"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/tree"
)

var defaultExcludePatterns = []string{".obsidian", "templates", "Archive"}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

type Parser struct {
	root            string
	excludePatterns []string
}

// NewParser creates a parser for the vault rooted at path.
func NewParser(path string, excludePatterns []string) (*Parser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("vault path %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %s is not a directory", path)
	}

	if len(excludePatterns) == 0 {
		excludePatterns = defaultExcludePatterns
	}
	return &Parser{root: path, excludePatterns: excludePatterns}, nil
}

// ParseAll walks the vault and parses every markdown file. Files that are
// empty, excluded, or unreadable are skipped, not errors.
func (p *Parser) ParseAll() ([]models.Note, error) {
	var notes []models.Note

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		if p.excluded(path) {
			return nil
		}

		note, err := p.parseNote(path)
		if err != nil {
			log.Printf("vault: skipping %s: %v", path, err)
			return nil
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking vault: %w", err)
	}

	log.Printf("vault: parsed %d notes from %s", len(notes), p.root)
	return notes, nil
}

func (p *Parser) excluded(path string) bool {
	for _, pattern := range p.excludePatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func (p *Parser) parseNote(path string) (models.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Note{}, err
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return models.Note{}, fmt.Errorf("empty file")
	}

	name := filepath.Base(path)
	title := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.HasPrefix(strings.ToLower(title), "notes - ") {
		title = title[len("Notes - "):]
	}

	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return models.Note{}, err
	}
	rel = filepath.ToSlash(rel)
	category, book := classify(rel)

	return models.Note{
		ID:        GenerateID(category, book, title),
		Title:     title,
		Content:   content,
		Category:  category,
		Book:      book,
		FilePath:  rel,
		Links:     tree.ExtractWikiLinks(content),
		WordCount: len(strings.Fields(content)),
	}, nil
}

// classify derives (category, book) from a vault-relative path. The
// category is the top-level folder and the book the second-level folder;
// files without those levels fall into "General" with no book.
func classify(rel string) (category, book string) {
	parts := strings.Split(rel, "/")
	category = "General"
	if len(parts) >= 2 {
		category = parts[0]
	}
	if len(parts) >= 3 {
		book = parts[1]
	}
	return category, book
}

// GenerateID builds the stable note identity from its classification triple.
// Over-long identities are truncated and suffixed with a short content hash
// so they stay collision-resistant.
func GenerateID(category, book, title string) string {
	var parts []string
	for _, part := range []string{Slugify(category), Slugify(book), Slugify(title)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	slug := strings.Join(parts, "_")

	if len(slug) > 100 {
		sum := md5.Sum([]byte(slug))
		slug = fmt.Sprintf("%s_%x", slug[:80], sum[:4])
	}
	return slug
}

// Slugify lowercases text and reduces it to word characters joined by
// hyphens.
func Slugify(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = slugStrip.ReplaceAllString(text, "")
	text = slugCollapse.ReplaceAllString(text, "-")
	return strings.Trim(text, "-")
}

// Statistics summarizes a parsed note collection.
func Statistics(notes []models.Note) models.VaultStats {
	stats := models.VaultStats{
		Categories: make(map[string]int),
		Books:      make(map[string]int),
	}
	for _, note := range notes {
		stats.TotalNotes++
		stats.TotalWords += note.WordCount
		stats.Categories[note.Category]++
		if note.Book != "" {
			stats.Books[note.Book]++
		}
	}
	return stats
}
