package model

import "time"

// RunStatus represents the current state of a harvest session.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one harvest session for a player and date range.
type Run struct {
	ID        string     `json:"id"`
	Player    string     `json:"player"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the counters recorded when a session finishes.
type RunResult struct {
	PostsProcessed    int            `json:"posts_processed"`
	Milestones        int            `json:"milestones"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	Unresolved        int            `json:"unresolved"`
	ResolvedBySource  map[string]int `json:"resolved_by_source,omitempty"`
	OutputPath        string         `json:"output_path,omitempty"`
}

// UnresolvedRate is the share of milestones left without a date.
func (r RunResult) UnresolvedRate() float64 {
	if r.Milestones == 0 {
		return 0
	}
	return float64(r.Unresolved) / float64(r.Milestones)
}
