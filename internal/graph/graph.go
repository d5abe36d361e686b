package graph

import (
	"fmt"
	"sort"
)

// Hierarchy is a parent -> children multimap built from is-a edges.
//
// A child appears under at most one parent. When a second, different parent
// is declared for a child the first declaration wins and the rejected one is
// kept as a Conflict. Hierarchy values are not safe for concurrent mutation;
// the package only mutates hierarchies it has just created.
type Hierarchy struct {
	children  map[string]map[string]struct{}
	parent    map[string]string
	conflicts []Conflict
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		children: make(map[string]map[string]struct{}),
		parent:   make(map[string]string),
	}
}

// Index builds a hierarchy from edges in declaration order. Edges with an
// empty parent are skipped.
func Index(edges []Edge) *Hierarchy {
	h := NewHierarchy()
	for _, e := range edges {
		h.Add(e.Child, e.Parent)
	}
	return h
}

// Add inserts child under parent and reports whether the hierarchy changed.
// Repeating an existing edge is a no-op; giving an already-parented child a
// different parent records a Conflict and leaves the hierarchy unchanged.
func (h *Hierarchy) Add(child, parent string) bool {
	if child == "" || parent == "" {
		return false
	}
	if existing, ok := h.parent[child]; ok {
		if existing != parent {
			h.conflicts = append(h.conflicts, Conflict{Child: child, Kept: existing, Rejected: parent})
		}
		return false
	}
	h.link(child, parent)
	return true
}

// Children returns the direct children of name sorted ascending. A name with
// no children, including an unknown one, yields an empty slice.
func (h *Hierarchy) Children(name string) []string {
	if h == nil {
		return []string{}
	}
	set := h.children[name]
	out := make([]string, 0, len(set))
	for child := range set {
		out = append(out, child)
	}
	sort.Strings(out)
	return out
}

// Parent returns the parent of name, if it has one.
func (h *Hierarchy) Parent(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	p, ok := h.parent[name]
	return p, ok
}

// Has reports whether name occurs in the hierarchy as a parent or a child.
func (h *Hierarchy) Has(name string) bool {
	if h == nil {
		return false
	}
	if _, ok := h.parent[name]; ok {
		return true
	}
	_, ok := h.children[name]
	return ok
}

// Names returns every name in the hierarchy, sorted.
func (h *Hierarchy) Names() []string {
	if h == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(h.parent)+len(h.children))
	for child, parent := range h.parent {
		seen[child] = struct{}{}
		seen[parent] = struct{}{}
	}
	for parent := range h.children {
		seen[parent] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns all edges sorted by child name.
func (h *Hierarchy) Edges() []Edge {
	if h == nil {
		return nil
	}
	edges := make([]Edge, 0, len(h.parent))
	for child, parent := range h.parent {
		edges = append(edges, Edge{Child: child, Parent: parent})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Child < edges[j].Child })
	return edges
}

// Len returns the number of edges.
func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.parent)
}

// Conflicts returns the rejected multi-parent declarations in the order they
// were seen.
func (h *Hierarchy) Conflicts() []Conflict {
	if h == nil {
		return nil
	}
	out := make([]Conflict, len(h.conflicts))
	copy(out, h.conflicts)
	return out
}

// Clone returns a deep copy of the hierarchy.
func (h *Hierarchy) Clone() *Hierarchy {
	out := NewHierarchy()
	if h == nil {
		return out
	}
	for child, parent := range h.parent {
		out.link(child, parent)
	}
	out.conflicts = h.Conflicts()
	return out
}

// Lineage returns the chain of names from name up to its topmost ancestor,
// starting with name itself.
func (h *Hierarchy) Lineage(name string) ([]string, error) {
	path := []string{name}
	seen := map[string]bool{name: true}
	for cur := name; ; {
		p, ok := h.Parent(cur)
		if !ok {
			return path, nil
		}
		if seen[p] {
			return nil, &CycleError{Path: append(path, p)}
		}
		seen[p] = true
		path = append(path, p)
		cur = p
	}
}

// String returns a short summary for logging.
func (h *Hierarchy) String() string {
	return fmt.Sprintf("hierarchy(%d edges, %d conflicts)", h.Len(), len(h.Conflicts()))
}

// link records child under parent. The child must not have a parent.
func (h *Hierarchy) link(child, parent string) {
	h.parent[child] = parent
	if h.children[parent] == nil {
		h.children[parent] = make(map[string]struct{})
	}
	h.children[parent][child] = struct{}{}
}

// unlink detaches child from its parent, dropping the parent key when it has
// no children left.
func (h *Hierarchy) unlink(child string) {
	parent, ok := h.parent[child]
	if !ok {
		return
	}
	delete(h.parent, child)
	delete(h.children[parent], child)
	if len(h.children[parent]) == 0 {
		delete(h.children, parent)
	}
}
