// Package boxscore finds the game in which a season total crossed a number
// mentioned in a milestone, and renders game logs for classifier prompts.
package boxscore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

// Stat is a season-total statistic that milestones are counted in.
type Stat string

const (
	StatPoints   Stat = "points"
	StatAssists  Stat = "assists"
	StatRebounds Stat = "rebounds"
)

// CrossingConfidence is reported for every threshold crossing.
const CrossingConfidence = 0.9

// Threshold is a stat milestone mentioned in text, like "1,000th point".
type Threshold struct {
	Stat  Stat
	Value int
}

// Crossing is the game in which a season total reached a threshold.
type Crossing struct {
	Threshold
	Date       time.Time
	Previous   int
	Current    int
	Confidence float64
}

var thresholdRe = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)(?:st|nd|rd|th)?\s+(?:career\s+|season\s+)?(points?|pts|assists?|ast|rebounds?|reb|boards?)\b`)

// ThresholdsInText returns the stat thresholds mentioned in text, in order
// of appearance and without repeats.
func ThresholdsInText(text string) []Threshold {
	var out []Threshold
	seen := make(map[Threshold]bool)
	for _, sm := range thresholdRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(sm[1], ",", ""))
		if err != nil || n <= 0 {
			continue
		}
		th := Threshold{Stat: statFor(sm[2]), Value: n}
		if !seen[th] {
			seen[th] = true
			out = append(out, th)
		}
	}
	return out
}

func statFor(word string) Stat {
	w := strings.ToLower(word)
	switch {
	case strings.HasPrefix(w, "a"):
		return StatAssists
	case strings.HasPrefix(w, "r"), strings.HasPrefix(w, "b"):
		return StatRebounds
	default:
		return StatPoints
	}
}

// InferDate finds the game in log where the running total for stat went
// from below threshold to at or above it. log must be a season log built by
// model.SeasonLog.
func InferDate(log []model.GameAppearance, stat Stat, threshold int) (Crossing, bool) {
	prev := 0
	for _, g := range log {
		cur := total(g, stat)
		if prev < threshold && threshold <= cur {
			return Crossing{
				Threshold:  Threshold{Stat: stat, Value: threshold},
				Date:       g.Date,
				Previous:   prev,
				Current:    cur,
				Confidence: CrossingConfidence,
			}, true
		}
		prev = cur
	}
	return Crossing{}, false
}

// InferFromText tries every threshold mentioned in text and returns the
// first crossing found.
func InferFromText(log []model.GameAppearance, text string) (Crossing, bool) {
	for _, th := range ThresholdsInText(text) {
		if c, ok := InferDate(log, th.Stat, th.Value); ok {
			return c, true
		}
	}
	return Crossing{}, false
}

func total(g model.GameAppearance, stat Stat) int {
	switch stat {
	case StatAssists:
		return g.SeasonAssists
	case StatRebounds:
		return g.SeasonRebounds
	default:
		return g.SeasonPoints
	}
}

// FormatContext renders up to limit of the most recent games, newest first,
// for inclusion in a classifier prompt. A non-positive limit renders all.
func FormatContext(player string, log []model.GameAppearance, limit int) string {
	if len(log) == 0 {
		return fmt.Sprintf("No games found for %s.", player)
	}
	start := 0
	if limit > 0 && len(log) > limit {
		start = len(log) - limit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent games for %s:", player)
	for i := len(log) - 1; i >= start; i-- {
		g := log[i]
		opp := g.Opponent
		if opp == "" {
			opp = "Unknown"
		}
		fmt.Fprintf(&b, "\n%s: %d pts, %d ast, %d reb vs %s (season totals: %d pts, %d ast, %d reb)",
			g.Date.Format("January 2, 2006"), g.Points, g.Assists, g.Rebounds, opp,
			g.SeasonPoints, g.SeasonAssists, g.SeasonRebounds)
	}
	return b.String()
}
