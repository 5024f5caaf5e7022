package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fanbasehq/harvest-cli/internal/fingerprint"
)

// DateSource identifies where the classifier found a milestone's date.
type DateSource string

const (
	DateSourceUnknown          DateSource = ""
	DateSourceTweetText        DateSource = "tweet_text"
	DateSourceBoxscoreAnalysis DateSource = "boxscore_analysis"
	DateSourceTweetPublished   DateSource = "tweet_published"
)

// ParseDateSource maps a raw tag onto the closed set of date sources.
// Anything unrecognized becomes DateSourceUnknown.
func ParseDateSource(s string) DateSource {
	switch DateSource(strings.ToLower(strings.TrimSpace(s))) {
	case DateSourceTweetText:
		return DateSourceTweetText
	case DateSourceBoxscoreAnalysis:
		return DateSourceBoxscoreAnalysis
	case DateSourceTweetPublished:
		return DateSourceTweetPublished
	default:
		return DateSourceUnknown
	}
}

// UnmarshalJSON normalizes the tag at the decoding boundary.
func (d *DateSource) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = DateSourceUnknown
		return nil
	}
	*d = ParseDateSource(s)
	return nil
}

// Resolved date source tags.
const (
	SourceBoxscoreAnalysis  = "boxscore_analysis"
	SourceTweetTextVerified = "tweet_text_validated"
	SourceTextPattern       = "text_pattern_validated"
	SourcePreseasonSchedule = "preseason_schedule"
	SourceGameSchedule      = "game_schedule"
	SourceUncertain         = "uncertain"
)

// MilestoneRecord is a single classified milestone claim extracted from a post.
type MilestoneRecord struct {
	ID             string   `json:"id"`
	PlayerName     string   `json:"player_name"`
	Title          string   `json:"title"`
	Value          string   `json:"value"`
	Categories     []string `json:"categories"`
	Description    string   `json:"description"`
	PreviousRecord string   `json:"previous_record,omitempty"`

	ExtractedDateText       string     `json:"extracted_date,omitempty"`
	ExtractedDateSource     DateSource `json:"date_source,omitempty"`
	ExtractedDateConfidence float64    `json:"date_confidence"`

	SourcePostID          string  `json:"source_tweet_id"`
	SourceURL             string  `json:"source_url,omitempty"`
	SourceReliability     float64 `json:"source_reliability"`
	MilestoneConfidence   float64 `json:"milestone_confidence"`
	AttributionConfidence float64 `json:"attribution_confidence"`

	ResolvedDate           *time.Time `json:"resolved_date,omitempty"`
	ResolvedDateSource     string     `json:"resolved_date_source,omitempty"`
	ResolvedDateDetail     string     `json:"resolved_date_detail,omitempty"`
	ResolvedDateConfidence float64    `json:"resolved_date_confidence"`

	resolved bool
}

// ContentHash is derived from the normalized title, value and categories.
func (r *MilestoneRecord) ContentHash() string {
	return fingerprint.Hash(r.Title, r.Categories, r.Value)
}

// Fingerprint returns the normalized content used for fuzzy comparison.
func (r *MilestoneRecord) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.Of(r.Title, r.Categories, r.Value)
}

// PrimaryCategory is the lowercased first category, or "" when there is none.
func (r *MilestoneRecord) PrimaryCategory() string {
	for _, c := range r.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			return c
		}
	}
	return ""
}

// ApplyResolution records the resolver's outcome. Only the first call takes
// effect; it reports whether the record was updated.
func (r *MilestoneRecord) ApplyResolution(res Resolution) bool {
	if r.resolved {
		return false
	}
	r.resolved = true
	if res.Date != nil {
		d := Day(*res.Date)
		r.ResolvedDate = &d
	} else {
		r.ResolvedDate = nil
	}
	r.ResolvedDateSource = res.Source
	r.ResolvedDateDetail = res.Detail
	r.ResolvedDateConfidence = res.Confidence
	return true
}

// IsResolved reports whether ApplyResolution has been called.
func (r *MilestoneRecord) IsResolved() bool { return r.resolved }

// NeedsReview is true when no date could be established.
func (r *MilestoneRecord) NeedsReview() bool { return r.ResolvedDate == nil }

// Day truncates t to midnight UTC of its calendar date in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
