package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	t.Run("AddedRemovedMoved", func(t *testing.T) {
		t.Parallel()
		before := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "B", Parent: "root"},
			{Child: "C", Parent: "A"},
		})
		after := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "C", Parent: "root"},
			{Child: "D", Parent: "A"},
		})

		d := Diff(before, after)

		assert.False(t, d.Empty())
		assert.Equal(t, []string{"D"}, d.Added)
		assert.Equal(t, []string{"B"}, d.Removed)
		assert.Equal(t, []Move{{Name: "C", From: "A", To: "root"}}, d.Moved)
	})

	t.Run("Identical", func(t *testing.T) {
		t.Parallel()
		d := Diff(scenarioHierarchy(), scenarioHierarchy())
		assert.True(t, d.Empty())
	})

	t.Run("BecameRoot", func(t *testing.T) {
		t.Parallel()
		before := Index([]Edge{{Child: "A", Parent: "root"}, {Child: "C", Parent: "A"}})
		after := Index([]Edge{{Child: "C", Parent: "A"}})

		d := Diff(before, after)
		assert.Equal(t, []string{"root"}, d.Removed)
		assert.Equal(t, []Move{{Name: "A", From: "root", To: ""}}, d.Moved)
	})
}

func TestDiffClassifications(t *testing.T) {
	t.Parallel()

	before, err := Classify(scenarioHierarchy(), []string{"A", "B"})
	require.NoError(t, err)

	h := Index([]Edge{
		{Child: "A", Parent: "root"},
		{Child: "B", Parent: "root"},
		{Child: "C", Parent: "B"},
		{Child: "D", Parent: "A"},
	})
	after, err := Classify(h, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, []Reassignment{{Name: "C", From: "A", To: "B"}}, DiffClassifications(before, after))
	assert.Empty(t, DiffClassifications(before, before))
	assert.Empty(t, DiffClassifications(nil, after))
}
