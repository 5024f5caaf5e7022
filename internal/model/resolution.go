package model

import "time"

// Outcome is the result of one resolution strategy attempt.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Attempt records what a single strategy did for a record.
type Attempt struct {
	Strategy string  `json:"strategy"`
	Outcome  Outcome `json:"outcome"`
	Detail   string  `json:"detail,omitempty"`
}

// Resolution is the date resolver's answer for one record. A nil Date means
// there was not enough evidence.
type Resolution struct {
	Date       *time.Time `json:"date,omitempty"`
	Source     string     `json:"source"`
	Detail     string     `json:"detail,omitempty"`
	Confidence float64    `json:"confidence"`
	Attempts   []Attempt  `json:"attempts,omitempty"`
}

// Unresolved is the terminal "uncertain" resolution.
func Unresolved(attempts []Attempt) Resolution {
	return Resolution{Source: SourceUncertain, Attempts: attempts}
}

// MatchType describes how two records were judged duplicates (or not).
type MatchType string

const (
	MatchExact             MatchType = "exact"
	MatchNoCategoryOverlap MatchType = "no_category_overlap"
	MatchFuzzyTitle        MatchType = "fuzzy_title"
	MatchFuzzyContent      MatchType = "fuzzy_content"
	MatchCategoryStats     MatchType = "category_stats"
	MatchNone              MatchType = "no_match"
)

// DuplicationResult is the outcome of comparing two records.
type DuplicationResult struct {
	IsDuplicate bool      `json:"is_duplicate"`
	Score       float64   `json:"similarity_score"`
	MatchType   MatchType `json:"match_type"`
}

// AggregationResult is the consolidated output of one aggregation pass.
type AggregationResult struct {
	Records           []MilestoneRecord `json:"records"`
	Origins           []SourcePost      `json:"origins"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	SameOriginDropped int               `json:"same_origin_dropped"`
	TotalProcessed    int               `json:"total_processed"`
}
