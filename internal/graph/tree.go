package graph

import (
	"errors"
	"sort"
	"strings"
)

// ErrCycleDetected is returned when a traversal meets a name that is already
// on its own ancestry path.
var ErrCycleDetected = errors.New("cycle detected")

// CycleError describes the path that closed a cycle. The last element of
// Path is the repeated name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return ErrCycleDetected.Error() + ": " + strings.Join(e.Path, " -> ")
}

// Unwrap makes errors.Is(err, ErrCycleDetected) hold.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// BuildTree materializes the tree rooted at root. Children are sorted
// ascending by name. A root without children, including one absent from the
// hierarchy, yields a single childless node.
//
// The names on the current recursion path are tracked and a repeat fails
// with a *CycleError instead of recursing forever.
func BuildTree(root string, h *Hierarchy) (*TreeNode, error) {
	b := &treeBuilder{h: h, onPath: make(map[string]bool)}
	return b.build(root, "")
}

type treeBuilder struct {
	h      *Hierarchy
	onPath map[string]bool
	path   []string
}

func (b *treeBuilder) build(name, parent string) (*TreeNode, error) {
	if b.onPath[name] {
		cycle := make([]string, 0, len(b.path)+1)
		cycle = append(cycle, b.path...)
		return nil, &CycleError{Path: append(cycle, name)}
	}
	b.onPath[name] = true
	b.path = append(b.path, name)
	defer func() {
		delete(b.onPath, name)
		b.path = b.path[:len(b.path)-1]
	}()

	node := &TreeNode{Name: name, Parent: parent}
	for _, childName := range b.h.Children(name) {
		child, err := b.build(childName, name)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	SortNodes(node.Children)
	return node, nil
}

// SortNodes sorts nodes ascending by name using byte-wise comparison.
func SortNodes(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
