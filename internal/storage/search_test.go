package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"Empty", "", nil},
		{"Single", "Gene", []string{"gene"}},
		{"Camel", "DiseaseOrPhenotypicFeature", []string{"disease", "diseaseorphenotypicfeature", "feature", "or", "phenotypic"}},
		{"Snake", "related_to", []string{"related", "related_to", "to"}},
		{"Acronym", "RNAProduct", []string{"product", "rna", "rnaproduct"}},
		{"Spaces", "biological entity", []string{"biological", "biological entity", "entity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}

func TestRankResults(t *testing.T) {
	t.Parallel()

	scores := map[SearchResult]float64{
		{Ref: "v4", Name: "B", Kind: KindCategory}:     1,
		{Ref: "master", Name: "B", Kind: KindCategory}: 1,
		{Ref: "master", Name: "A", Kind: KindCategory}: 1,
		{Ref: "master", Name: "z", Kind: KindAspect}:   1,
		{Ref: "v4", Name: "Top", Kind: KindCategory}:   3,
	}

	assert.Equal(t, []SearchResult{
		{Ref: "v4", Name: "Top", Kind: KindCategory, Score: 3},
		{Ref: "master", Name: "z", Kind: KindAspect, Score: 1},
		{Ref: "master", Name: "A", Kind: KindCategory, Score: 1},
		{Ref: "master", Name: "B", Kind: KindCategory, Score: 1},
		{Ref: "v4", Name: "B", Kind: KindCategory, Score: 1},
	}, rankResults(scores, 0))

	assert.Len(t, rankResults(scores, 2), 2)
}
