package tree

import (
	"log"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
)

// wikiLinkPattern matches [[Text]] and [[Text|Display]], capturing Text.
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]+)?\]\]`)

// maxDepth bounds recursive tree walks; descent past it stops rather than
// risking a stack overflow on pathological inputs.
const maxDepth = 64

// Node wraps a note inside a navigation tree.
type Node struct {
	Note      models.Note
	IsRoot    bool
	IsLeaf    bool
	Depth     int
	Parent    *Node
	Children  []*Node
	WikiLinks []string
}

// AddChild attaches child one level below n.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	child.Depth = n.Depth + 1
	n.Children = append(n.Children, child)
}

// Summary is the serialized form of a node, suitable for API responses.
type Summary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	FilePath      string    `json:"file_path"`
	IsRoot        bool      `json:"is_root"`
	IsLeaf        bool      `json:"is_leaf"`
	Depth         int       `json:"depth"`
	ChildrenCount int       `json:"children_count"`
	WikiLinks     []string  `json:"wiki_links"`
	Children      []Summary `json:"children"`
}

// Serialize converts the subtree rooted at n into its wire form.
func (n *Node) Serialize() Summary {
	return n.serialize(0)
}

func (n *Node) serialize(depth int) Summary {
	s := Summary{
		ID:            n.Note.ID,
		Title:         n.Note.Title,
		FilePath:      n.Note.FilePath,
		IsRoot:        n.IsRoot,
		IsLeaf:        n.IsLeaf,
		Depth:         n.Depth,
		ChildrenCount: len(n.Children),
		WikiLinks:     n.WikiLinks,
	}
	if depth >= maxDepth {
		return s
	}
	for _, child := range n.Children {
		s.Children = append(s.Children, child.serialize(depth+1))
	}
	return s
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *Node) CountNodes() int {
	count := 1
	for _, child := range n.Children {
		count += child.CountNodes()
	}
	return count
}

// ExtractWikiLinks returns the link texts embedded in content, duplicates
// removed preserving first-occurrence order.
func ExtractWikiLinks(content string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(content, -1)

	seen := make(map[string]bool)
	var links []string
	for _, m := range matches {
		text := strings.TrimSpace(m[1])
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		links = append(links, text)
	}
	return links
}

// IsRootNote reports whether the note's storage filename (not its title)
// marks it as the entry point of a tree.
func IsRootNote(note models.Note) bool {
	name := filepath.Base(note.FilePath)
	return strings.HasPrefix(strings.ToLower(name), "notes - ")
}

// Parser resolves wiki links against a note corpus and builds navigation
// trees. It indexes the corpus on every BuildTree call, so one parser can be
// reused across tree builds.
type Parser struct {
	notes   []models.Note
	byTitle map[string]models.Note
}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) index(notes []models.Note) {
	p.notes = notes
	p.byTitle = make(map[string]models.Note, len(notes))
	for _, note := range notes {
		if _, ok := p.byTitle[note.Title]; !ok {
			p.byTitle[note.Title] = note
		}
	}
}

// FindNoteByLinkText resolves free-form link text to a note. Strategies are
// tried in order, first match wins:
//
//  1. exact title match across the corpus
//  2. case-insensitive title match within the category
//  3. link text contained in a title within the category
//  4. case-insensitive filename (without extension) match within the category
//
// The chain trades precision for recall: a missed link truncates a subtree,
// which is non-fatal, so looser matches are worth trying. Iteration is over
// the ordered note slice, keeping resolution deterministic.
func (p *Parser) FindNoteByLinkText(linkText, category string) (models.Note, bool) {
	clean := strings.TrimSpace(linkText)
	lower := strings.ToLower(clean)

	if note, ok := p.byTitle[clean]; ok {
		return note, true
	}

	for _, note := range p.notes {
		if note.Category == category && strings.ToLower(note.Title) == lower {
			return note, true
		}
	}

	for _, note := range p.notes {
		if note.Category == category && strings.Contains(strings.ToLower(note.Title), lower) {
			return note, true
		}
	}

	for _, note := range p.notes {
		if note.Category != category {
			continue
		}
		name := filepath.Base(note.FilePath)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.ToLower(stem) == lower {
			return note, true
		}
	}

	log.Printf("tree: could not resolve link %q in category %q", linkText, category)
	return models.Note{}, false
}

// BuildTree builds a tree rooted at root by following wiki links through
// allNotes. A note appears at most once per tree: identities are added to a
// pass-wide visited set before recursing, so cyclic references stop
// silently instead of recursing forever.
func (p *Parser) BuildTree(root models.Note, allNotes []models.Note) *Node {
	p.index(allNotes)

	rootNode := &Node{Note: root, IsRoot: true}
	visited := map[string]bool{root.ID: true}
	p.buildRecursive(rootNode, root.Category, visited)
	return rootNode
}

func (p *Parser) buildRecursive(parent *Node, category string, visited map[string]bool) {
	parent.WikiLinks = ExtractWikiLinks(parent.Note.Content)

	if parent.Depth < maxDepth {
		for _, linkText := range parent.WikiLinks {
			child, ok := p.FindNoteByLinkText(linkText, category)
			if !ok {
				continue
			}
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true

			node := &Node{Note: child}
			parent.AddChild(node)
			p.buildRecursive(node, category, visited)
		}
	}

	if len(parent.Children) == 0 {
		parent.IsLeaf = true
	}
}

// FindRoots returns the notes whose filenames designate them as tree roots.
func (p *Parser) FindRoots(notes []models.Note) []models.Note {
	var roots []models.Note
	for _, note := range notes {
		if IsRootNote(note) {
			roots = append(roots, note)
		}
	}
	return roots
}

// BuildAll builds a tree for every root note, keyed by root note ID.
func (p *Parser) BuildAll(notes []models.Note) map[string]*Node {
	trees := make(map[string]*Node)
	for _, root := range p.FindRoots(notes) {
		log.Printf("tree: building tree for %q (%s)", root.Title, root.Category)
		trees[root.ID] = p.BuildTree(root, notes)
	}
	return trees
}

// FindNode locates the node holding noteID within the tree, or nil.
func FindNode(root *Node, noteID string) *Node {
	return findNode(root, noteID, 0)
}

func findNode(node *Node, noteID string, depth int) *Node {
	if node.Note.ID == noteID {
		return node
	}
	if depth >= maxDepth {
		return nil
	}
	for _, child := range node.Children {
		if found := findNode(child, noteID, depth+1); found != nil {
			return found
		}
	}
	return nil
}
