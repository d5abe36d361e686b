package ingestion

import (
	"github.com/Benny93/biotree-go/internal/graph"
)

// Entity kinds reported by Lookup.
const (
	KindCategory  = "category"
	KindPredicate = "predicate"
	KindAspect    = "aspect"
)

// LookupResult locates one name within a result.
type LookupResult struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Mixin bool   `json:"mixin,omitempty"`

	// MajorBranch and RevisedMajorBranch are only set for categories that
	// descend from a major branch.
	MajorBranch        string `json:"major_branch,omitempty"`
	RevisedMajorBranch string `json:"revised_major_branch,omitempty"`

	// Path runs from the name up to the tree root.
	Path     []string `json:"path"`
	Children []string `json:"children"`
}

// Lookup finds name among categories, then predicates, then aspects.
func (r *Result) Lookup(name string) (*LookupResult, bool) {
	if r == nil || name == "" {
		return nil, false
	}

	candidates := []struct {
		kind string
		tree *graph.TreeNode
	}{
		{KindCategory, r.Categories},
		{KindPredicate, r.Predicates},
		{KindAspect, r.Aspects},
	}
	for _, c := range candidates {
		node := c.tree.Find(name)
		if node == nil {
			continue
		}
		out := &LookupResult{
			Name:     name,
			Kind:     c.kind,
			Mixin:    c.kind != KindAspect && r.Mixins[name],
			Path:     pathToRoot(node, c.tree),
			Children: make([]string, 0, len(node.Children)),
		}
		for _, child := range node.Children {
			out.Children = append(out.Children, child.Name)
		}
		if c.kind == KindCategory {
			out.MajorBranch, _ = r.Branches.MajorBranch(name)
			out.RevisedMajorBranch, _ = r.RevisedBranches.MajorBranch(name)
		}
		return out, true
	}
	return nil, false
}

// pathToRoot returns node's ancestry inside tree, node first.
func pathToRoot(node, tree *graph.TreeNode) []string {
	path := []string{node.Name}
	for cur := node; cur.Parent != ""; {
		parent := tree.Find(cur.Parent)
		if parent == nil {
			break
		}
		path = append(path, parent.Name)
		cur = parent
	}
	return path
}
