package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioHierarchy() *Hierarchy {
	return Index([]Edge{
		{Child: "A", Parent: "root"},
		{Child: "B", Parent: "root"},
		{Child: "C", Parent: "A"},
		{Child: "D", Parent: "A"},
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("Scenario", func(t *testing.T) {
		t.Parallel()
		c, err := Classify(scenarioHierarchy(), []string{"A", "B"})
		require.NoError(t, err)

		assert.Equal(t, map[string]string{"A": "A", "B": "B", "C": "A", "D": "A"}, c.CategoryToMajorBranch)
		assert.Equal(t, map[string][]string{"A": {"C", "D"}, "B": {}}, c.MajorBranchToDescendants)
	})

	t.Run("ScenarioJSON", func(t *testing.T) {
		t.Parallel()
		c, err := Classify(scenarioHierarchy(), []string{"A", "B"})
		require.NoError(t, err)

		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"category_to_major_branch": {"A": "A", "B": "B", "C": "A", "D": "A"},
			"major_branch_to_descendants": {"A": ["C", "D"], "B": []}
		}`, string(data))
	})

	t.Run("DeepDescendants", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{
			{Child: "A", Parent: "root"},
			{Child: "C", Parent: "A"},
			{Child: "E", Parent: "C"},
			{Child: "F", Parent: "E"},
		})

		c, err := Classify(h, []string{"A"})
		require.NoError(t, err)

		assert.Equal(t, "A", c.CategoryToMajorBranch["F"])
		assert.Equal(t, []string{"C", "E", "F"}, c.MajorBranchToDescendants["A"])
	})

	t.Run("OrphanMixinExcluded", func(t *testing.T) {
		t.Parallel()
		h := scenarioHierarchy()
		h.Add("M2", "M1")

		c, err := Classify(h, []string{"A", "B"})
		require.NoError(t, err)

		_, ok := c.MajorBranch("M2")
		assert.False(t, ok)
		_, ok = c.MajorBranch("M1")
		assert.False(t, ok)
		_, ok = c.MajorBranch("root")
		assert.False(t, ok)
	})

	t.Run("NestedMajorStopsAtNearest", func(t *testing.T) {
		t.Parallel()
		h := scenarioHierarchy()
		h.Add("E", "C")

		c, err := Classify(h, []string{"A", "C"})
		require.NoError(t, err)

		assert.Equal(t, "C", c.CategoryToMajorBranch["C"])
		assert.Equal(t, "C", c.CategoryToMajorBranch["E"])
		assert.Equal(t, "A", c.CategoryToMajorBranch["D"])
		assert.Equal(t, []string{"D"}, c.MajorBranchToDescendants["A"])
		assert.Equal(t, []string{"E"}, c.MajorBranchToDescendants["C"])
	})

	t.Run("MajorWithoutParent", func(t *testing.T) {
		t.Parallel()
		h := Index([]Edge{{Child: "C", Parent: "A"}})

		c, err := Classify(h, []string{"A"})
		require.NoError(t, err)

		assert.Equal(t, map[string]string{"A": "A", "C": "A"}, c.CategoryToMajorBranch)
	})

	t.Run("UnknownMajorIgnored", func(t *testing.T) {
		t.Parallel()
		c, err := Classify(scenarioHierarchy(), []string{"A", "Missing"})
		require.NoError(t, err)

		assert.Equal(t, []string{"A"}, c.Branches())
		_, ok := c.MajorBranch("Missing")
		assert.False(t, ok)
	})

	t.Run("Cycle", func(t *testing.T) {
		t.Parallel()
		h := scenarioHierarchy()
		h.Add("X", "Y")
		h.Add("Y", "X")

		_, err := Classify(h, []string{"A", "B"})
		assert.ErrorIs(t, err, ErrCycleDetected)
	})

	t.Run("NilHierarchy", func(t *testing.T) {
		t.Parallel()
		c, err := Classify(nil, []string{"A"})
		require.NoError(t, err)
		assert.Empty(t, c.CategoryToMajorBranch)
		assert.Empty(t, c.MajorBranchToDescendants)
	})
}

func TestClassify_AncestorChains(t *testing.T) {
	t.Parallel()

	h := Index([]Edge{
		{Child: "A", Parent: "root"},
		{Child: "B", Parent: "root"},
		{Child: "C", Parent: "A"},
		{Child: "D", Parent: "C"},
		{Child: "E", Parent: "B"},
		{Child: "F", Parent: "E"},
		{Child: "M", Parent: "Mixin"},
	})
	majors := MajorBranches(h, "root")
	require.Equal(t, []string{"A", "B"}, majors)

	c, err := Classify(h, majors)
	require.NoError(t, err)

	for name, branch := range c.CategoryToMajorBranch {
		lineage, err := h.Lineage(name)
		require.NoError(t, err)
		assert.Contains(t, lineage, branch, name)

		if name != branch {
			assert.Contains(t, c.MajorBranchToDescendants[branch], name)
		} else {
			assert.NotContains(t, c.MajorBranchToDescendants[branch], name)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	t.Parallel()

	h := scenarioHierarchy()
	h.Add("E", "B")
	h.Add("F", "D")

	first, err := Classify(h, []string{"A", "B"})
	require.NoError(t, err)
	second, err := Classify(h, []string{"A", "B"})
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
