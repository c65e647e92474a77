package tree

import (
	"fmt"
	"log"
	"strings"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
)

// Cache holds the trees built from a note corpus, keyed by
// "{category}/{book}". It is built lazily on first access and only rebuilt
// through an explicit Rebuild call; the underlying corpus changing does not
// invalidate it. Rebuilds replace the map wholesale, so concurrent readers
// during a rebuild may briefly observe the previous generation.
type Cache struct {
	load   func() ([]models.Note, error)
	parser *Parser

	notes []models.Note
	trees map[string]*Node
}

// NewCache creates a cache over a note source. load is invoked on first
// access and again on every Rebuild.
func NewCache(load func() ([]models.Note, error)) *Cache {
	return &Cache{load: load, parser: NewParser()}
}

// Trees returns all built trees, loading and building them on first use.
func (c *Cache) Trees() (map[string]*Node, error) {
	if c.trees == nil {
		if err := c.Rebuild(); err != nil {
			return nil, err
		}
	}
	return c.trees, nil
}

// Tree returns the tree for a category/book pair.
func (c *Cache) Tree(category, book string) (*Node, bool, error) {
	trees, err := c.Trees()
	if err != nil {
		return nil, false, err
	}
	node, ok := trees[cacheKey(category, book)]
	return node, ok, nil
}

// Notes returns the corpus backing the current tree generation.
func (c *Cache) Notes() ([]models.Note, error) {
	if c.trees == nil {
		if err := c.Rebuild(); err != nil {
			return nil, err
		}
	}
	return c.notes, nil
}

// Rebuild reloads the corpus and reconstructs every tree.
func (c *Cache) Rebuild() error {
	notes, err := c.load()
	if err != nil {
		return fmt.Errorf("loading notes: %w", err)
	}

	trees := make(map[string]*Node)
	for _, root := range c.parser.FindRoots(notes) {
		tree := c.parser.BuildTree(root, notes)
		key := cacheKey(root.Category, bookName(root))
		trees[key] = tree
		log.Printf("tree: cached %s (%d nodes)", key, tree.CountNodes())
	}

	c.notes = notes
	c.trees = trees
	return nil
}

// bookName derives the cache key's book component from a root note's title.
// The vault parser already strips the "Notes - " prefix from titles, but a
// raw title is handled too.
func bookName(root models.Note) string {
	title := strings.TrimPrefix(root.Title, "Notes - ")
	return strings.TrimPrefix(title, "notes - ")
}

func cacheKey(category, book string) string {
	return category + "/" + book
}
