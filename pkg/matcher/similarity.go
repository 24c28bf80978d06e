package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio is the Levenshtein similarity of a and b on a 0-100 scale
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	longest := utf8.RuneCountInString(a)
	if lb := utf8.RuneCountInString(b); lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

// TokenSortRatio compares a and b after sorting their tokens
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

// Similarity is the score used for approximate matching of normalized names
func Similarity(a, b string) float64 {
	r := Ratio(a, b)
	if ts := TokenSortRatio(a, b); ts > r {
		return ts
	}
	return r
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
