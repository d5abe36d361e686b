package storage

import (
	"regexp"
	"sort"
	"strings"
)

var (
	separatorRe = regexp.MustCompile(`[_\.\-\s]+`)
	camelRe     = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymRe   = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
)

// tokenize splits an entity name into lowercase search tokens. The full
// name is always a token. Handles snake_case, CamelCase and acronyms.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	tokens := map[string]bool{strings.ToLower(text): true}

	split := acronymRe.ReplaceAllString(text, "$1 $2")
	split = camelRe.ReplaceAllString(split, "$1 $2")
	for _, part := range separatorRe.Split(split, -1) {
		if part != "" {
			tokens[strings.ToLower(part)] = true
		}
	}

	result := make([]string, 0, len(tokens))
	for token := range tokens {
		result = append(result, token)
	}
	sort.Strings(result)
	return result
}

// tokenWeight scores a token hit. A hit on the whole name outranks a hit on
// one of its words.
func tokenWeight(name, token string) float64 {
	if strings.ToLower(name) == token {
		return 2
	}
	return 1
}

// rankResults collapses per-token hits and orders them.
func rankResults(scores map[SearchResult]float64, limit int) []SearchResult {
	results := make([]SearchResult, 0, len(scores))
	for r, score := range scores {
		r.Score = score
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Ref != b.Ref {
			return a.Ref < b.Ref
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
