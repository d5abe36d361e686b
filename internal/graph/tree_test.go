package graph

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTree(t *testing.T) {
	t.Parallel()

	t.Run("AlphabeticalChildren", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "Y", Parent: "root"},
			{Child: "X", Parent: "root"},
		})

		tree, err := BuildTree("root", h)
		require.NoError(t, err)

		assert.Equal(t, "root", tree.Name)
		assert.Equal(t, "", tree.Parent)
		require.Len(t, tree.Children, 2)
		assert.Equal(t, "X", tree.Children[0].Name)
		assert.Equal(t, "Y", tree.Children[1].Name)
		assert.Equal(t, "root", tree.Children[0].Parent)
		assert.Empty(t, tree.Children[0].Children)
	})

	t.Run("ByteOrderNotLocale", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "b", Parent: "r"},
			{Child: "a", Parent: "r"},
			{Child: "C", Parent: "r"},
		})

		tree, err := BuildTree("r", h)
		require.NoError(t, err)

		names := make([]string, 0, len(tree.Children))
		for _, c := range tree.Children {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"C", "a", "b"}, names)
	})

	t.Run("MissingRoot", func(t *testing.T) {
		t.Parallel()
		tree, err := BuildTree("NamedThing", NewHierarchy())
		require.NoError(t, err)

		assert.Equal(t, "NamedThing", tree.Name)
		assert.Nil(t, tree.Children)
		assert.Equal(t, 1, tree.Count())
	})

	t.Run("NilHierarchy", func(t *testing.T) {
		t.Parallel()
		tree, err := BuildTree("root", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, tree.Count())
	})

	t.Run("CountsReachableNamesOnce", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "B", Parent: "root"},
			{Child: "C", Parent: "A"},
			{Child: "D", Parent: "C"},
			{Child: "Orphan", Parent: "Mixin"},
		})

		tree, err := BuildTree("root", h)
		require.NoError(t, err)

		names := tree.Names()
		assert.Equal(t, 5, tree.Count())
		assert.ElementsMatch(t, []string{"root", "A", "B", "C", "D"}, names)
		assert.Nil(t, tree.Find("Orphan"))
		assert.Equal(t, 4, tree.Depth())
	})

	t.Run("RootInCycle", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "root", Parent: "A"},
		})

		_, err := BuildTree("root", h)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycleDetected)

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"root", "A", "root"}, cycle.Path)
	})

	t.Run("SelfLoop", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{{Child: "A", Parent: "A"}})

		_, err := BuildTree("A", h)
		assert.ErrorIs(t, err, ErrCycleDetected)
	})
}

func TestBuildTree_ChildrenStrictlyAscending(t *testing.T) {
	t.Parallel()

	h := Index([]Edge{
		{Child: "gene", Parent: "root"},
		{Child: "Gene", Parent: "root"},
		{Child: "protein", Parent: "gene"},
		{Child: "allele", Parent: "gene"},
		{Child: "drug", Parent: "root"},
	})

	tree, err := BuildTree("root", h)
	require.NoError(t, err)

	var check func(n *TreeNode)
	check = func(n *TreeNode) {
		for i := 1; i < len(n.Children); i++ {
			assert.Less(t, n.Children[i-1].Name, n.Children[i].Name)
		}
		before := tree.Names()
		SortNodes(n.Children)
		assert.Equal(t, before, tree.Names())
		for _, c := range n.Children {
			check(c)
		}
	}
	check(tree)
}

func TestBuildTree_FlattenRoundTrip(t *testing.T) {
	t.Parallel()

	h := Index([]Edge{
		{Child: "A", Parent: "root"},
		{Child: "B", Parent: "root"},
		{Child: "C", Parent: "A"},
		{Child: "D", Parent: "A"},
		{Child: "E", Parent: "D"},
		{Child: "M2", Parent: "M1"},
	})

	tree, err := BuildTree("root", h)
	require.NoError(t, err)

	reachable := make(map[string]bool)
	for _, name := range tree.Names() {
		reachable[name] = true
	}
	var want []Edge
	for _, e := range h.Edges() {
		if reachable[e.Child] {
			want = append(want, e)
		}
	}

	got := tree.Flatten()
	sort.Slice(got, func(i, j int) bool { return got[i].Child < got[j].Child })

	assert.Equal(t, want, got)
	assert.Equal(t, h.Children("A"), Index(got).Children("A"))
}

func TestTreeNode_JSON(t *testing.T) {
	t.Parallel()

	h := Index([]Edge{
		{Child: "X", Parent: "root"},
		{Child: "Y", Parent: "root"},
	})
	tree, err := BuildTree("root", h)
	require.NoError(t, err)

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "root",
		"parent": null,
		"children": [
			{"name": "X", "parent": "root"},
			{"name": "Y", "parent": "root"}
		]
	}`, string(data))

	var decoded TreeNode
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tree.Names(), decoded.Names())
	assert.Equal(t, "root", decoded.Children[1].Parent)
	assert.Equal(t, "", decoded.Parent)
}

func TestTreeNode_NilSafe(t *testing.T) {
	t.Parallel()

	var n *TreeNode

	assert.Equal(t, 0, n.Count())
	assert.Equal(t, 0, n.Depth())
	assert.Nil(t, n.Find("x"))
	assert.Nil(t, n.Flatten())
	assert.Nil(t, n.Names())
}
