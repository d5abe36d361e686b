// Package graph provides the hierarchy data model for biotree.
//
// It defines the edge, tree node and classification types derived from a
// flat list of is-a declarations, together with the algorithms that build
// them: indexing, tree materialization, major-branch classification and
// scripted branch dissolution.
package graph

import "encoding/json"

// Edge is a single is-a declaration: Child declares Parent as its direct
// parent. An empty Parent means the child is a root candidate.
type Edge struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

// Conflict records a second, different parent declared for a child that was
// already placed in a hierarchy. The first declaration is kept.
type Conflict struct {
	Child    string `json:"child"`
	Kept     string `json:"kept"`
	Rejected string `json:"rejected"`
}

// TreeNode is a node of a materialized hierarchy tree.
//
// Parent is a name-based back-reference for display only. Children are owned
// exclusively by their node and are sorted ascending by name.
type TreeNode struct {
	// Name is the canonical entity name.
	Name string

	// Parent is the name of the parent node, empty for the root.
	Parent string

	// Children are the direct children sorted by name.
	Children []*TreeNode
}

type treeNodeJSON struct {
	Name     string      `json:"name"`
	Parent   *string     `json:"parent"`
	Children []*TreeNode `json:"children,omitempty"`
}

// MarshalJSON encodes the node as {name, parent, children}. The root's
// parent is null and empty children are omitted.
func (n *TreeNode) MarshalJSON() ([]byte, error) {
	out := treeNodeJSON{Name: n.Name, Children: n.Children}
	if n.Parent != "" {
		parent := n.Parent
		out.Parent = &parent
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var in treeNodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	n.Name = in.Name
	n.Parent = ""
	if in.Parent != nil {
		n.Parent = *in.Parent
	}
	n.Children = in.Children
	return nil
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *TreeNode) Count() int {
	if n == nil {
		return 0
	}
	count := 1
	for _, child := range n.Children {
		count += child.Count()
	}
	return count
}

// Depth returns the number of levels in the subtree rooted at n. A leaf has
// depth 1.
func (n *TreeNode) Depth() int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, child := range n.Children {
		if d := child.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Find returns the node with the given name in the subtree rooted at n, or
// nil if there is none.
func (n *TreeNode) Find(name string) *TreeNode {
	if n == nil {
		return nil
	}
	if n.Name == name {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Flatten returns the (child, parent) edges of the subtree in depth-first
// order. The subtree root contributes no edge.
func (n *TreeNode) Flatten() []Edge {
	var edges []Edge
	var walk func(node *TreeNode)
	walk = func(node *TreeNode) {
		for _, child := range node.Children {
			edges = append(edges, Edge{Child: child.Name, Parent: node.Name})
			walk(child)
		}
	}
	if n != nil {
		walk(n)
	}
	return edges
}

// Names returns every name in the subtree in depth-first order.
func (n *TreeNode) Names() []string {
	if n == nil {
		return nil
	}
	names := []string{n.Name}
	for _, child := range n.Children {
		names = append(names, child.Names()...)
	}
	return names
}
