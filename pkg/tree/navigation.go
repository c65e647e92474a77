package tree

import "github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"

// Crumb is a minimal note reference used in navigation responses.
type Crumb struct {
	Title    string `json:"title"`
	FilePath string `json:"file_path"`
}

// NavigationContext describes where a note sits within its tree.
// Breadcrumbs run from the tree root to the note inclusive.
type NavigationContext struct {
	Breadcrumbs []Crumb `json:"breadcrumbs"`
	Siblings    []Crumb `json:"siblings"`
	Children    []Crumb `json:"children"`
	Parent      *Crumb  `json:"parent"`
	IsLeaf      bool    `json:"is_leaf"`
	Depth       int     `json:"depth"`
}

// NavigationFor computes the navigation context for a note within the given
// tree. A note that is not in the tree yields an empty context.
func NavigationFor(root *Node, note models.Note) NavigationContext {
	node := FindNode(root, note.ID)
	if node == nil {
		return NavigationContext{
			Breadcrumbs: []Crumb{},
			Siblings:    []Crumb{},
			Children:    []Crumb{},
		}
	}

	var breadcrumbs []Crumb
	for current := node; current != nil; current = current.Parent {
		breadcrumbs = append([]Crumb{crumbOf(current)}, breadcrumbs...)
	}

	siblings := []Crumb{}
	if node.Parent != nil {
		for _, child := range node.Parent.Children {
			if child.Note.ID != note.ID {
				siblings = append(siblings, crumbOf(child))
			}
		}
	}

	children := []Crumb{}
	for _, child := range node.Children {
		children = append(children, crumbOf(child))
	}

	var parent *Crumb
	if node.Parent != nil {
		c := crumbOf(node.Parent)
		parent = &c
	}

	return NavigationContext{
		Breadcrumbs: breadcrumbs,
		Siblings:    siblings,
		Children:    children,
		Parent:      parent,
		IsLeaf:      node.IsLeaf,
		Depth:       node.Depth,
	}
}

func crumbOf(node *Node) Crumb {
	return Crumb{Title: node.Note.Title, FilePath: node.Note.FilePath}
}
