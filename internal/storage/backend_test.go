package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/ingestion"
)

func tree(root string, edges ...graph.Edge) *graph.TreeNode {
	h := graph.Index(edges)
	node, err := graph.BuildTree(root, h)
	if err != nil {
		panic(err)
	}
	return node
}

func testSnapshot(ref string) *Snapshot {
	return &Snapshot{
		ID:        uuid.New().String(),
		Ref:       ref,
		Version:   ref + "-version",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Categories: tree("NamedThing",
			graph.Edge{Child: "BiologicalEntity", Parent: "NamedThing"},
			graph.Edge{Child: "Gene", Parent: "BiologicalEntity"},
			graph.Edge{Child: "GeneticEntity", Parent: "BiologicalEntity"},
		),
		Predicates: tree("related_to",
			graph.Edge{Child: "gene_associated_with_condition", Parent: "related_to"},
		),
		Aspects: tree("AspectEnum",
			graph.Edge{Child: "expression", Parent: "AspectEnum"},
		),
		Branches: &graph.Classification{
			CategoryToMajorBranch:    map[string]string{"BiologicalEntity": "BiologicalEntity", "Gene": "BiologicalEntity"},
			MajorBranchToDescendants: map[string][]string{"BiologicalEntity": {"Gene"}},
		},
		RevisedBranches: graph.EmptyClassification(),
		Conflicts:       []graph.Conflict{},
	}
}

// backends returns a fresh instance of every implementation.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	mem := NewMemoryBackend()
	require.NoError(t, mem.Initialize("", false))

	bdg := NewBadgerBackend()
	require.NoError(t, bdg.Initialize(filepath.Join(t.TempDir(), "badger"), false))
	t.Cleanup(func() { _ = bdg.Close() })

	return map[string]Backend{"Memory": mem, "Badger": bdg}
}

func TestBackend_SaveGet(t *testing.T) {
	t.Parallel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			snap := testSnapshot("v3.1.2")
			require.NoError(t, b.Save(ctx, snap))

			got, err := b.Get(ctx, "v3.1.2")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, snap.ID, got.ID)
			assert.Equal(t, snap.Version, got.Version)
			assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))
			assert.Equal(t, snap.Categories.Names(), got.Categories.Names())
			assert.Equal(t, snap.Branches, got.Branches)

			missing, err := b.Get(ctx, "nope")
			assert.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestBackend_SaveReplaces(t *testing.T) {
	t.Parallel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.Save(ctx, testSnapshot("master")))

			replacement := testSnapshot("master")
			replacement.Categories = tree("NamedThing", graph.Edge{Child: "Drug", Parent: "NamedThing"})
			require.NoError(t, b.Save(ctx, replacement))

			infos, err := b.List(ctx)
			require.NoError(t, err)
			require.Len(t, infos, 1)
			assert.Equal(t, replacement.ID, infos[0].ID)

			// Old tokens are gone with the old snapshot.
			results, err := b.Search(ctx, "gene", "", 10)
			require.NoError(t, err)
			for _, r := range results {
				assert.NotEqual(t, KindCategory, r.Kind, r.Name)
			}
			results, err = b.Search(ctx, "drug", "", 10)
			require.NoError(t, err)
			assert.Equal(t, []SearchResult{{Ref: "master", Name: "Drug", Kind: KindCategory, Score: 2}}, results)
		})
	}
}

func TestBackend_List(t *testing.T) {
	t.Parallel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			empty, err := b.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			for _, ref := range []string{"v4.0.0", "master", "v3.1.2"} {
				require.NoError(t, b.Save(ctx, testSnapshot(ref)))
			}

			infos, err := b.List(ctx)
			require.NoError(t, err)
			require.Len(t, infos, 3)
			assert.Equal(t, "master", infos[0].Ref)
			assert.Equal(t, "v3.1.2", infos[1].Ref)
			assert.Equal(t, "v4.0.0", infos[2].Ref)
			assert.Equal(t, 4, infos[0].Categories)
			assert.Equal(t, 2, infos[0].Predicates)
			assert.Equal(t, 2, infos[0].Aspects)
		})
	}
}

func TestBackend_Delete(t *testing.T) {
	t.Parallel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.Save(ctx, testSnapshot("master")))
			require.NoError(t, b.Save(ctx, testSnapshot("v4")))

			ok, err := b.Delete(ctx, "master")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = b.Delete(ctx, "master")
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := b.Get(ctx, "master")
			require.NoError(t, err)
			assert.Nil(t, got)

			results, err := b.Search(ctx, "gene", "", 0)
			require.NoError(t, err)
			for _, r := range results {
				assert.Equal(t, "v4", r.Ref)
			}
		})
	}
}

func TestBackend_Search(t *testing.T) {
	t.Parallel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.Save(ctx, testSnapshot("master")))
			require.NoError(t, b.Save(ctx, testSnapshot("v4")))

			t.Run("WholeNameOutranksWord", func(t *testing.T) {
				results, err := b.Search(ctx, "gene", "master", 0)
				require.NoError(t, err)
				assert.Equal(t, []SearchResult{
					{Ref: "master", Name: "Gene", Kind: KindCategory, Score: 2},
					{Ref: "master", Name: "gene_associated_with_condition", Kind: KindPredicate, Score: 1},
				}, results)
			})

			t.Run("AcrossRefs", func(t *testing.T) {
				results, err := b.Search(ctx, "expression", "", 0)
				require.NoError(t, err)
				assert.Equal(t, []SearchResult{
					{Ref: "master", Name: "expression", Kind: KindAspect, Score: 2},
					{Ref: "v4", Name: "expression", Kind: KindAspect, Score: 2},
				}, results)
			})

			t.Run("MultipleWords", func(t *testing.T) {
				results, err := b.Search(ctx, "biological entity", "v4", 0)
				require.NoError(t, err)
				require.NotEmpty(t, results)
				assert.Equal(t, SearchResult{Ref: "v4", Name: "BiologicalEntity", Kind: KindCategory, Score: 2}, results[0])
				assert.Equal(t, SearchResult{Ref: "v4", Name: "GeneticEntity", Kind: KindCategory, Score: 1}, results[1])
			})

			t.Run("Limit", func(t *testing.T) {
				results, err := b.Search(ctx, "gene", "", 1)
				require.NoError(t, err)
				assert.Len(t, results, 1)
			})

			t.Run("NoMatch", func(t *testing.T) {
				results, err := b.Search(ctx, "zebrafish", "", 0)
				require.NoError(t, err)
				assert.Empty(t, results)
			})

			t.Run("EmptyQuery", func(t *testing.T) {
				results, err := b.Search(ctx, "", "", 0)
				require.NoError(t, err)
				assert.NotNil(t, results)
				assert.Empty(t, results)
			})
		})
	}
}

func TestBackend_InvalidRef(t *testing.T) {
	t.Parallel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, ref := range []string{"", "a:b"} {
				err := b.Save(context.Background(), testSnapshot(ref))
				assert.ErrorIs(t, err, ErrInvalidRef, ref)
			}
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	t.Parallel()

	res := &ingestion.Result{
		Ref:        "v3.1.2",
		Version:    "3.1.2",
		Categories: &graph.TreeNode{Name: "NamedThing"},
		Predicates: &graph.TreeNode{Name: "related_to"},
		Aspects:    &graph.TreeNode{Name: "AspectEnum"},
		Branches:   graph.EmptyClassification(),
	}

	a := NewSnapshot(res)
	b := NewSnapshot(res)
	assert.NotEqual(t, a.ID, b.ID)
	_, err := uuid.Parse(a.ID)
	assert.NoError(t, err)
	assert.Equal(t, "v3.1.2", a.Ref)
	assert.Equal(t, "3.1.2", a.Version)
	assert.WithinDuration(t, time.Now(), a.CreatedAt, time.Minute)
	assert.Equal(t, 1, a.Info().Categories)
}
