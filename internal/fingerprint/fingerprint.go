// Package fingerprint normalizes milestone content into a stable hash and a
// comparable representation used by duplicate detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 16

// Fingerprint is the normalized form of a record's semantic content.
type Fingerprint struct {
	Hash       string
	Title      string
	Value      string
	Categories []string
}

var (
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,\-+]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Stat abbreviations are matched when preceded by a non-letter, so "20ppg"
// expands the same way as "20 ppg".
var abbreviations = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(^|[^a-z])ppg\b`), "${1} points per game"},
	{regexp.MustCompile(`(^|[^a-z])rpg\b`), "${1} rebounds per game"},
	{regexp.MustCompile(`(^|[^a-z])apg\b`), "${1} assists per game"},
	{regexp.MustCompile(`(^|[^a-z])spg\b`), "${1} steals per game"},
	{regexp.MustCompile(`(^|[^a-z])bpg\b`), "${1} blocks per game"},
	{regexp.MustCompile(`(^|[^a-z])pts\b`), "${1} points"},
	{regexp.MustCompile(`(^|[^a-z])reb\b`), "${1} rebounds"},
	{regexp.MustCompile(`(^|[^a-z])ast\b`), "${1} assists"},
	{regexp.MustCompile(`(^|[^a-z])stl\b`), "${1} steals"},
	{regexp.MustCompile(`(^|[^a-z])blk\b`), "${1} blocks"},
}

// Normalize lowercases s, strips punctuation other than ". , - +", expands
// common stat abbreviations and collapses whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	for _, a := range abbreviations {
		s = a.re.ReplaceAllString(s, a.with)
	}
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeCategories trims, lowercases, drops empties and sorts.
func NormalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Hash returns the content hash for a milestone. Category order does not
// affect the result.
func Hash(title string, categories []string, value string) string {
	return Of(title, categories, value).Hash
}

// Of computes the full fingerprint for a milestone.
func Of(title string, categories []string, value string) Fingerprint {
	fp := Fingerprint{
		Title:      Normalize(title),
		Value:      Normalize(value),
		Categories: NormalizeCategories(categories),
	}
	// Encoded as a JSON array so no field or category can absorb a separator.
	content, _ := json.Marshal([]any{fp.Title, fp.Value, fp.Categories})
	sum := sha256.Sum256(content)
	fp.Hash = hex.EncodeToString(sum[:])[:HashLength]
	return fp
}
