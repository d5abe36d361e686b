// Package naming converts natural-language Biolink labels into the two
// canonical identifier styles used throughout biotree.
//
// Slots (predicates) use relation style: "treated by" -> "treated_by".
// Classes (categories) use category style: "named thing" -> "NamedThing".
package naming

import "strings"

// Relation converts a label to relation style by replacing every space with
// an underscore. Case is preserved.
func Relation(label string) string {
	return strings.ReplaceAll(label, " ", "_")
}

// Category converts a label to category style: the label is split on single
// spaces, the first byte of every word is upper-cased and the words are
// concatenated without a separator.
//
// Empty words (produced by consecutive spaces) contribute nothing. Bytes other
// than ASCII letters are passed through untouched.
func Category(label string) string {
	var sb strings.Builder
	sb.Grow(len(label))
	for _, word := range strings.Split(label, " ") {
		if word == "" {
			continue
		}
		sb.WriteString(upperFirst(word))
	}
	return sb.String()
}

func upperFirst(word string) string {
	c := word[0]
	if c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + word[1:]
	}
	return word
}
