package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHierarchy(t *testing.T) {
	t.Parallel()

	h := NewHierarchy()

	assert.NotNil(t, h)
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Names())
	assert.Empty(t, h.Conflicts())
}

func TestIndex(t *testing.T) {
	t.Parallel()

	t.Run("GroupsByParent", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "B", Parent: "root"},
			{Child: "C", Parent: "A"},
		})

		assert.Equal(t, 3, h.Len())
		assert.Equal(t, []string{"A", "B"}, h.Children("root"))
		assert.Equal(t, []string{"C"}, h.Children("A"))
		assert.Equal(t, []string{"A", "B", "C", "root"}, h.Names())

		parent, ok := h.Parent("C")
		assert.True(t, ok)
		assert.Equal(t, "A", parent)
	})

	t.Run("SkipsRootCandidates", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "root"},
			{Child: "A", Parent: "root"},
		})

		assert.Equal(t, 1, h.Len())
		_, ok := h.Parent("root")
		assert.False(t, ok)
		assert.True(t, h.Has("root"))
	})

	t.Run("RootWithoutChildren", func(t *testing.T) {
		t.Parallel()
		h := Index(nil)

		children := h.Children("root")
		assert.NotNil(t, children)
		assert.Empty(t, children)
		assert.False(t, h.Has("root"))
	})

	t.Run("FirstDeclaredParentWins", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "C", Parent: "A"},
			{Child: "C", Parent: "B"},
		})

		parent, _ := h.Parent("C")
		assert.Equal(t, "A", parent)
		assert.Equal(t, []string{"C"}, h.Children("A"))
		assert.Empty(t, h.Children("B"))
		assert.Equal(t, []Conflict{{Child: "C", Kept: "A", Rejected: "B"}}, h.Conflicts())
	})

	t.Run("RepeatedEdgeIsNotAConflict", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "C", Parent: "A"},
			{Child: "C", Parent: "A"},
		})

		assert.Equal(t, 1, h.Len())
		assert.Empty(t, h.Conflicts())
	})
}

func TestHierarchy_Add(t *testing.T) {
	t.Parallel()

	h := NewHierarchy()

	assert.True(t, h.Add("A", "root"))
	assert.False(t, h.Add("A", "root"))
	assert.False(t, h.Add("A", "other"))
	assert.False(t, h.Add("", "root"))
	assert.False(t, h.Add("B", ""))
	assert.Equal(t, 1, h.Len())
}

func TestHierarchy_Edges(t *testing.T) {
	t.Parallel()

	h := Index([]Edge{
		{Child: "b", Parent: "root"},
		{Child: "a", Parent: "root"},
		{Child: "c", Parent: "a"},
	})

	assert.Equal(t, []Edge{
		{Child: "a", Parent: "root"},
		{Child: "b", Parent: "root"},
		{Child: "c", Parent: "a"},
	}, h.Edges())
}

func TestHierarchy_Clone(t *testing.T) {
	t.Parallel()

	original := Index([]Edge{
		{Child: "A", Parent: "root"},
		{Child: "A", Parent: "other"},
	})
	clone := original.Clone()
	clone.Add("B", "root")

	assert.Equal(t, []string{"A"}, original.Children("root"))
	assert.Equal(t, []string{"A", "B"}, clone.Children("root"))
	assert.Equal(t, original.Conflicts(), clone.Conflicts())
}

func TestHierarchy_Lineage(t *testing.T) {
	t.Parallel()

	t.Run("WalksToTop", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "C", Parent: "A"},
		})

		path, err := h.Lineage("C")
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A", "root"}, path)
	})

	t.Run("UnknownName", func(t *testing.T) {
		t.Parallel()
		path, err := NewHierarchy().Lineage("X")
		require.NoError(t, err)
		assert.Equal(t, []string{"X"}, path)
	})

	t.Run("Cycle", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "A", Parent: "B"},
			{Child: "B", Parent: "A"},
		})

		_, err := h.Lineage("A")
		assert.ErrorIs(t, err, ErrCycleDetected)
	})
}

func TestHierarchy_NilSafe(t *testing.T) {
	t.Parallel()

	var h *Hierarchy

	assert.Empty(t, h.Children("x"))
	assert.False(t, h.Has("x"))
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Names())
	assert.NotNil(t, h.Clone())
}
