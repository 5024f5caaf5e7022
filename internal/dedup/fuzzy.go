package dedup

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

var levParams = levenshtein.NewParams()

// processText lowercases, turns anything that is not a letter or digit into
// a space, and trims.
func processText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// ratio is the Levenshtein similarity of a and b scaled to 0-100.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	return math.Round(levenshtein.Similarity(a, b, levParams) * 100)
}

func sortedTokens(s string) []string {
	tokens := strings.Fields(processText(s))
	sort.Strings(tokens)
	return tokens
}

// TokenSortRatio compares a and b after sorting their tokens, so word order
// does not matter.
func TokenSortRatio(a, b string) float64 {
	ta, tb := sortedTokens(a), sortedTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return ratio(strings.Join(ta, " "), strings.Join(tb, " "))
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// full token set and returns the best score. A string whose tokens are a
// subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range sa {
		if _, ok := sb[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range sb {
		if _, ok := sa[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(withA, withB)
	if base != "" {
		best = math.Max(best, ratio(base, withA))
		best = math.Max(best, ratio(base, withB))
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(processText(s)) {
		set[t] = struct{}{}
	}
	return set
}
