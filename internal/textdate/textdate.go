// Package textdate pulls a candidate date out of free post text, relative to
// the post's publish time.
package textdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
)

// Kind distinguishes how a date was found.
type Kind int

const (
	KindNone Kind = iota
	KindContext
	KindExplicit
)

func (k Kind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindExplicit:
		return "explicit"
	default:
		return "none"
	}
}

// Match is an extracted date plus a short provenance label.
type Match struct {
	Date  time.Time
	Label string
	Kind  Kind
}

// Found reports whether a date was extracted.
func (m Match) Found() bool { return m.Kind != KindNone }

// Options carries per-player anchors for relative phrases.
type Options struct {
	// RookieSeason anchors "rookie year". Zero disables the phrase.
	RookieSeason int
}

var (
	onThisDayRe  = regexp.MustCompile(`(?i)\bon this day in (\d{4})\b`)
	yearsAgoRe   = regexp.MustCompile(`(?i)\b(\d{1,2}|a|an|one|two|three|four|five|six|seven|eight|nine|ten) years? ago\b`)
	lastYearRe   = regexp.MustCompile(`(?i)\blast year\b`)
	lastSeasonRe = regexp.MustCompile(`(?i)\blast season\b`)
	rookieRe     = regexp.MustCompile(`(?i)\brookie (?:year|season)\b`)
	yesterdayRe  = regexp.MustCompile(`(?i)\byesterday\b`)
	todayRe      = regexp.MustCompile(`(?i)\btoday\b`)
)

const monthNames = `january|february|march|april|may|june|july|august|september|october|november|december`
const monthAbbrevs = `jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec`

var explicitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`),
	regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
	regexp.MustCompile(`(?i)\b(` + monthNames + `)\s+(\d{1,2}),?\s+(\d{4})\b`),
	regexp.MustCompile(`(?i)\b(` + monthAbbrevs + `)\.?\s+(\d{1,2}),?\s+(\d{4})\b`),
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Extract finds the most specific date reference in text. Relative phrases
// are checked first in a fixed priority order, then explicit dates in
// document order per pattern. A zero Match means nothing was found.
func Extract(text string, ref time.Time, opts Options) Match {
	if m, ok := extractContext(text, ref, opts); ok {
		return m
	}
	if m, ok := extractExplicit(text); ok {
		return m
	}
	return Match{}
}

func extractContext(text string, ref time.Time, opts Options) (Match, bool) {
	ref = day(ref)

	if sm := onThisDayRe.FindStringSubmatch(text); sm != nil {
		year, _ := strconv.Atoi(sm[1])
		d, adjusted := withYear(ref, year)
		return contextMatch(d, fmt.Sprintf("on this day in %d", year), adjusted), true
	}

	if sm := yearsAgoRe.FindStringSubmatch(text); sm != nil {
		n, ok := numberWords[strings.ToLower(sm[1])]
		if !ok {
			n, _ = strconv.Atoi(sm[1])
		}
		if n > 0 {
			d, adjusted := withYear(ref, ref.Year()-n)
			return contextMatch(d, yearsAgoLabel(n), adjusted), true
		}
	}

	if lastYearRe.MatchString(text) {
		d, adjusted := withYear(ref, ref.Year()-1)
		return contextMatch(d, "last year", adjusted), true
	}

	if lastSeasonRe.MatchString(text) {
		d, adjusted := withYear(ref, ref.Year()-1)
		return contextMatch(d, "last season", adjusted), true
	}

	if opts.RookieSeason > 0 && rookieRe.MatchString(text) {
		d, adjusted := withYear(ref, opts.RookieSeason)
		return contextMatch(d, fmt.Sprintf("rookie season %d", opts.RookieSeason), adjusted), true
	}

	if yesterdayRe.MatchString(text) {
		return contextMatch(ref.AddDate(0, 0, -1), "yesterday", false), true
	}

	if todayRe.MatchString(text) {
		return contextMatch(ref, "today", false), true
	}

	return Match{}, false
}

func extractExplicit(text string) (Match, bool) {
	for _, re := range explicitPatterns {
		for _, sm := range re.FindAllStringSubmatch(text, -1) {
			d, err := ParseDate(canonical(sm))
			if err != nil {
				continue
			}
			return Match{
				Date:  d,
				Label: "explicit date: " + d.Format(time.DateOnly),
				Kind:  KindExplicit,
			}, true
		}
	}
	return Match{}, false
}

// canonical rebuilds a matched date in a layout dateparse reads without
// ambiguity.
func canonical(sm []string) string {
	if strings.Contains(sm[0], "/") || strings.Contains(sm[0], "-") {
		return sm[0]
	}
	return fmt.Sprintf("%s %s, %s", sm[1], sm[2], sm[3])
}

// ParseDate parses a date string in any common layout and truncates it to
// the calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("textdate: empty date")
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "textdate: parse %q", s)
	}
	return day(t), nil
}

func contextMatch(d time.Time, label string, leapAdjusted bool) Match {
	if leapAdjusted {
		label += " (leap-year adjusted)"
	}
	return Match{Date: d, Label: label, Kind: KindContext}
}

func yearsAgoLabel(n int) string {
	if n == 1 {
		return "1 year ago"
	}
	return fmt.Sprintf("%d years ago", n)
}

// withYear moves ref into year, clamping Feb 29 to Feb 28 when year is not
// a leap year.
func withYear(ref time.Time, year int) (time.Time, bool) {
	month, dom := ref.Month(), ref.Day()
	if month == time.February && dom == 29 && !isLeap(year) {
		return time.Date(year, time.February, 28, 0, 0, 0, 0, time.UTC), true
	}
	return time.Date(year, month, dom, 0, 0, 0, 0, time.UTC), false
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
