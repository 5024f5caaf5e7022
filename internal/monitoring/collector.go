package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of harvest health.
type MetricsSnapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailureRate  float64 `json:"failure_rate"`

	// Milestone counters over completed runs.
	Milestones     int     `json:"milestones"`
	Unresolved     int     `json:"unresolved"`
	UnresolvedRate float64 `json:"unresolved_rate"`

	// ZeroResultDays counts consecutive run days, newest first, whose
	// completed runs produced no milestones at all. Days without a completed
	// run are not counted and do not break the streak.
	ZeroResultDays int `json:"zero_result_days"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the run store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers run health from the store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	perDay := make(map[string]int)
	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			found := 0
			if r.Result != nil {
				found = r.Result.Milestones
				snap.Milestones += r.Result.Milestones
				snap.Unresolved += r.Result.Unresolved
			}
			perDay[r.CreatedAt.UTC().Format(time.DateOnly)] += found
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailureRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.Milestones > 0 {
		snap.UnresolvedRate = float64(snap.Unresolved) / float64(snap.Milestones)
	}
	snap.ZeroResultDays = zeroStreak(perDay)

	return snap, nil
}

func zeroStreak(perDay map[string]int) int {
	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	streak := 0
	for _, d := range days {
		if perDay[d] > 0 {
			break
		}
		streak++
	}
	return streak
}
