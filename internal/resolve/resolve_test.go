package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanbasehq/harvest-cli/internal/calendar"
	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/roster"
)

type fakeOracle struct {
	mu        sync.Mutex
	played    map[time.Time]bool
	preseason map[time.Time]bool
	recent    map[time.Time]time.Time
	panics    bool

	calls       int
	recentAsked []time.Time
}

func (f *fakeOracle) PlayedOn(_ context.Context, _ string, d time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("oracle exploded")
	}
	return f.played[model.Day(d)]
}

func (f *fakeOracle) MostRecentGameOnOrBefore(_ context.Context, _ string, d time.Time) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.recentAsked = append(f.recentAsked, d)
	got, ok := f.recent[model.Day(d)]
	return got, ok
}

func (f *fakeOracle) PlayedPreseasonOn(_ context.Context, _ string, d time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.preseason[model.Day(d)]
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var published = time.Date(2024, time.June, 15, 18, 30, 0, 0, time.UTC)

const player = "Caitlin Clark"

func TestResolve_BoxscoreTrustedWithoutCalendar(t *testing.T) {
	oracle := &fakeOracle{}
	r := New(oracle, DefaultThresholds())
	rec := &model.MilestoneRecord{
		Title:                   "Clark passes 1,000 career points",
		ExtractedDateText:       "2024-06-14",
		ExtractedDateSource:     model.DateSourceBoxscoreAnalysis,
		ExtractedDateConfidence: 0.95,
	}

	res := r.Resolve(context.Background(), rec, published, player)

	require.NotNil(t, res.Date)
	assert.Equal(t, date(2024, time.June, 14), *res.Date)
	assert.Equal(t, model.SourceBoxscoreAnalysis, res.Source)
	assert.InDelta(t, 0.9, res.Confidence, 0.0001)
	assert.Zero(t, oracle.calls, "boxscore dates are not re-checked")
}

func TestResolve_HallucinatedCareerMilestone(t *testing.T) {
	oracle := &fakeOracle{}
	r := New(oracle, DefaultThresholds())
	rec := &model.MilestoneRecord{
		Title:                   "First in WNBA history",
		Description:             "first in WNBA history to reach this mark",
		ExtractedDateText:       "2024-06-10",
		ExtractedDateSource:     model.DateSourceTweetText,
		ExtractedDateConfidence: 0.9,
	}

	res := r.Resolve(context.Background(), rec, published, player)

	assert.Nil(t, res.Date)
	assert.Equal(t, model.SourceUncertain, res.Source)
	assert.Zero(t, res.Confidence)
	require.Len(t, res.Attempts, 4)
	assert.Equal(t, model.OutcomeSkipped, res.Attempts[0].Outcome)
	assert.Equal(t, StrategyAIText, res.Attempts[1].Strategy)
	assert.Equal(t, model.OutcomeRejected, res.Attempts[1].Outcome)
	assert.Equal(t, model.OutcomeSkipped, res.Attempts[2].Outcome)
	assert.Equal(t, model.OutcomeRejected, res.Attempts[3].Outcome)
}

func TestResolve_AITextValidated(t *testing.T) {
	oracle := &fakeOracle{played: map[time.Time]bool{date(2024, time.June, 14): true}}
	r := New(oracle, DefaultThresholds())
	rec := &model.MilestoneRecord{
		ExtractedDateText:       "June 14, 2024",
		ExtractedDateSource:     model.DateSourceTweetText,
		ExtractedDateConfidence: 0.92,
	}

	res := r.Resolve(context.Background(), rec, published, player)

	require.NotNil(t, res.Date)
	assert.Equal(t, date(2024, time.June, 14), *res.Date)
	assert.Equal(t, model.SourceTweetTextVerified, res.Source)
	assert.InDelta(t, 0.92, res.Confidence, 0.0001)
}

func TestResolve_PreconditionsGateStrategies(t *testing.T) {
	played := map[time.Time]bool{date(2024, time.June, 14): true}

	tests := []struct {
		name   string
		source model.DateSource
		conf   float64
	}{
		{"confidence at threshold", model.DateSourceTweetText, 0.8},
		{"boxscore at threshold", model.DateSourceBoxscoreAnalysis, 0.8},
		{"published source", model.DateSourceTweetPublished, 0.99},
		{"unknown source", model.DateSourceUnknown, 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeOracle{played: played}, DefaultThresholds())
			rec := &model.MilestoneRecord{
				Description:             "Career high yesterday",
				ExtractedDateText:       "2024-06-01",
				ExtractedDateSource:     tt.source,
				ExtractedDateConfidence: tt.conf,
			}

			res := r.Resolve(context.Background(), rec, published, player)

			require.NotNil(t, res.Date)
			assert.Equal(t, model.SourceTextPattern, res.Source)
			assert.Equal(t, "yesterday", res.Detail)
			assert.Equal(t, date(2024, time.June, 14), *res.Date)
		})
	}
}

func TestResolve_TextPattern(t *testing.T) {
	tests := []struct {
		name      string
		desc      string
		title     string
		published time.Time
		rookie    int
		played    time.Time
		want      time.Time
		detail    string
	}{
		{
			name:      "on this day",
			desc:      "On this day in 2023, she dropped 40",
			published: time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC),
			played:    date(2023, time.June, 14),
			want:      date(2023, time.June, 14),
			detail:    "on this day in 2023",
		},
		{
			name:      "rookie season anchor",
			desc:      "Her rookie year triple-double",
			published: time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC),
			rookie:    2024,
			played:    date(2024, time.June, 14),
			want:      date(2024, time.June, 14),
			detail:    "rookie season 2024",
		},
		{
			name:      "title fallback",
			title:     "Record night yesterday",
			published: published,
			played:    date(2024, time.June, 14),
			want:      date(2024, time.June, 14),
			detail:    "yesterday",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &fakeOracle{played: map[time.Time]bool{tt.played: true}}
			r := New(oracle, DefaultThresholds(), WithRookieSeasons(func(string) int { return tt.rookie }))
			rec := &model.MilestoneRecord{Title: tt.title, Description: tt.desc}

			res := r.Resolve(context.Background(), rec, tt.published, player)

			require.NotNil(t, res.Date)
			assert.Equal(t, tt.want, *res.Date)
			assert.Equal(t, model.SourceTextPattern, res.Source)
			assert.Equal(t, tt.detail, res.Detail)
			assert.InDelta(t, 0.8, res.Confidence, 0.0001)
		})
	}
}

func TestResolve_ExplicitDateBelowMinimumSkipsCalendar(t *testing.T) {
	oracle := &fakeOracle{played: map[time.Time]bool{date(2024, time.June, 1): true}}
	r := New(oracle, DefaultThresholds())
	rec := &model.MilestoneRecord{Description: "Back on June 1, 2024 she set the mark"}

	res := r.Resolve(context.Background(), rec, published, player)

	assert.Nil(t, res.Date)
	assert.Equal(t, model.SourceUncertain, res.Source)
	assert.Equal(t, model.OutcomeRejected, res.Attempts[2].Outcome)
	assert.Contains(t, res.Attempts[2].Detail, "explicit date: 2024-06-01")
	assert.Equal(t, 1, oracle.calls, "only the recent-game lookup hits the calendar")
}

func TestResolve_ExplicitDateAcceptedWhenTuned(t *testing.T) {
	oracle := &fakeOracle{played: map[time.Time]bool{date(2024, time.June, 1): true}}
	th := DefaultThresholds()
	th.Explicit = 0.75
	r := New(oracle, th)

	res := r.Resolve(context.Background(), &model.MilestoneRecord{Description: "06/01/2024 was the night"}, published, player)

	require.NotNil(t, res.Date)
	assert.Equal(t, date(2024, time.June, 1), *res.Date)
	assert.Equal(t, "explicit date: 2024-06-01", res.Detail)
	assert.InDelta(t, 0.75, res.Confidence, 0.0001)
}

func TestResolve_RecentGameFallback(t *testing.T) {
	oracle := &fakeOracle{recent: map[time.Time]time.Time{
		date(2024, time.June, 14): date(2024, time.June, 12),
	}}
	r := New(oracle, DefaultThresholds())

	res := r.Resolve(context.Background(), &model.MilestoneRecord{Title: "Triple-double"}, published, player)

	require.NotNil(t, res.Date)
	assert.Equal(t, date(2024, time.June, 12), *res.Date)
	assert.Equal(t, model.SourceGameSchedule, res.Source)
	assert.InDelta(t, 0.7, res.Confidence, 0.0001)
	require.Len(t, oracle.recentAsked, 1)
	assert.Equal(t, date(2024, time.June, 14), oracle.recentAsked[0], "queries the day before publication")
}

func TestResolve_RecentGameTaggedPreseason(t *testing.T) {
	oracle := &fakeOracle{
		recent:    map[time.Time]time.Time{date(2024, time.May, 14): date(2024, time.May, 10)},
		preseason: map[time.Time]bool{date(2024, time.May, 10): true},
	}
	r := New(oracle, DefaultThresholds())

	res := r.Resolve(context.Background(), &model.MilestoneRecord{Title: "Debut"}, date(2024, time.May, 15), player)

	require.NotNil(t, res.Date)
	assert.Equal(t, model.SourcePreseasonSchedule, res.Source)
}

type seasonGames map[int][]model.GameAppearance

func (g seasonGames) SeasonAppearances(_ context.Context, _ string, season int) ([]model.GameAppearance, error) {
	return g[season], nil
}

type teamPreseason map[int][]time.Time

func (p teamPreseason) PreseasonDates(_ context.Context, _ string, season int) ([]time.Time, error) {
	return p[season], nil
}

type feverRoster struct{}

func (feverRoster) TeamFor(_ context.Context, _ string) (roster.Team, bool) {
	return roster.Team{ID: "5", Name: "Indiana Fever"}, true
}

func TestResolve_RecentGameWithCalendar(t *testing.T) {
	tests := []struct {
		name       string
		games      seasonGames
		preseason  teamPreseason
		published  time.Time
		wantDate   time.Time
		wantSource string
	}{
		{
			name:       "preseason game the night before",
			preseason:  teamPreseason{2024: {date(2024, time.May, 10), date(2024, time.May, 14)}},
			published:  time.Date(2024, time.May, 15, 14, 0, 0, 0, time.UTC),
			wantDate:   date(2024, time.May, 14),
			wantSource: model.SourcePreseasonSchedule,
		},
		{
			name:       "preseason game on publish day is skipped",
			preseason:  teamPreseason{2024: {date(2024, time.May, 10), date(2024, time.May, 15)}},
			published:  time.Date(2024, time.May, 15, 23, 0, 0, 0, time.UTC),
			wantDate:   date(2024, time.May, 10),
			wantSource: model.SourcePreseasonSchedule,
		},
		{
			name: "regular season game the night before",
			games: seasonGames{2024: model.SeasonLog([]model.GameAppearance{
				{Date: date(2024, time.June, 12), Season: 2024, Minutes: 34, Points: 20},
				{Date: date(2024, time.June, 14), Season: 2024, Minutes: 31, Points: 18},
			})},
			preseason:  teamPreseason{2024: {date(2024, time.May, 14)}},
			published:  published,
			wantDate:   date(2024, time.June, 14),
			wantSource: model.SourceGameSchedule,
		},
		{
			name: "regular season game on publish day is skipped",
			games: seasonGames{2024: model.SeasonLog([]model.GameAppearance{
				{Date: date(2024, time.June, 12), Season: 2024, Minutes: 34, Points: 20},
				{Date: date(2024, time.June, 15), Season: 2024, Minutes: 31, Points: 18},
			})},
			published:  published,
			wantDate:   date(2024, time.June, 12),
			wantSource: model.SourceGameSchedule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := calendar.New(tt.games, tt.preseason, feverRoster{})
			r := New(cal, DefaultThresholds())

			res := r.Resolve(context.Background(), &model.MilestoneRecord{Title: "Debut"}, tt.published, player)

			require.NotNil(t, res.Date)
			assert.Equal(t, tt.wantDate, *res.Date)
			assert.Equal(t, tt.wantSource, res.Source)
			assert.InDelta(t, 0.7, res.Confidence, 0.0001)
		})
	}
}

func TestResolve_ConfidenceFloor(t *testing.T) {
	t.Run("schedule confidence below minimum", func(t *testing.T) {
		th := DefaultThresholds()
		th.GameSchedule = 0.5
		oracle := &fakeOracle{recent: map[time.Time]time.Time{date(2024, time.June, 14): date(2024, time.June, 12)}}
		res := New(oracle, th).Resolve(context.Background(), &model.MilestoneRecord{Title: "x"}, published, player)

		assert.Nil(t, res.Date)
		assert.Equal(t, model.SourceUncertain, res.Source)
		assert.Empty(t, oracle.recentAsked)
	})

	t.Run("accepted date downgraded", func(t *testing.T) {
		th := DefaultThresholds()
		th.Boxscore = 0.5
		rec := &model.MilestoneRecord{
			ExtractedDateText:       "2024-06-14",
			ExtractedDateSource:     model.DateSourceBoxscoreAnalysis,
			ExtractedDateConfidence: 0.95,
		}
		res := New(&fakeOracle{}, th).Resolve(context.Background(), rec, published, player)

		assert.Nil(t, res.Date)
		assert.Zero(t, res.Confidence)
		last := res.Attempts[len(res.Attempts)-1]
		assert.Equal(t, StrategyConfidenceFloor, last.Strategy)
	})
}

func TestResolve_FloorHoldsForAllOutcomes(t *testing.T) {
	oracle := &fakeOracle{
		played: map[time.Time]bool{date(2024, time.June, 14): true},
		recent: map[time.Time]time.Time{date(2024, time.June, 14): date(2024, time.June, 12)},
	}
	records := []model.MilestoneRecord{
		{ExtractedDateText: "2024-06-14", ExtractedDateSource: model.DateSourceBoxscoreAnalysis, ExtractedDateConfidence: 0.9},
		{ExtractedDateText: "2024-06-14", ExtractedDateSource: model.DateSourceTweetText, ExtractedDateConfidence: 0.85},
		{Description: "yesterday"},
		{Description: "June 14, 2024"},
		{Title: "nothing"},
	}
	for _, minimum := range []float64{0, 0.5, 0.7, 0.85, 0.95, 1} {
		th := DefaultThresholds()
		th.Minimum = minimum
		r := New(oracle, th)
		for i := range records {
			res := r.Resolve(context.Background(), &records[i], published, player)
			if res.Confidence < minimum {
				assert.Nil(t, res.Date, "minimum %.2f record %d", minimum, i)
			}
			if res.Date == nil {
				assert.Equal(t, model.SourceUncertain, res.Source)
			}
		}
	}
}

func TestResolve_RejectsDatesAfterPublication(t *testing.T) {
	rec := &model.MilestoneRecord{
		ExtractedDateText:       "2024-06-20",
		ExtractedDateSource:     model.DateSourceBoxscoreAnalysis,
		ExtractedDateConfidence: 0.95,
	}
	res := New(&fakeOracle{}, DefaultThresholds()).Resolve(context.Background(), rec, published, player)

	assert.Nil(t, res.Date)
	assert.Equal(t, model.OutcomeRejected, res.Attempts[0].Outcome)
	assert.Contains(t, res.Attempts[0].Detail, "after the post")
}

func TestResolve_UnparseableDateFallsThrough(t *testing.T) {
	oracle := &fakeOracle{recent: map[time.Time]time.Time{date(2024, time.June, 14): date(2024, time.June, 12)}}
	rec := &model.MilestoneRecord{
		ExtractedDateText:       "sometime last week",
		ExtractedDateSource:     model.DateSourceTweetText,
		ExtractedDateConfidence: 0.9,
	}
	res := New(oracle, DefaultThresholds()).Resolve(context.Background(), rec, published, player)

	assert.Equal(t, model.OutcomeFailed, res.Attempts[1].Outcome)
	require.NotNil(t, res.Date)
	assert.Equal(t, model.SourceGameSchedule, res.Source)
}

func TestResolve_PanickingStrategyFallsThrough(t *testing.T) {
	oracle := &fakeOracle{
		panics: true,
		recent: map[time.Time]time.Time{date(2024, time.June, 14): date(2024, time.June, 12)},
	}
	rec := &model.MilestoneRecord{
		ExtractedDateText:       "2024-06-14",
		ExtractedDateSource:     model.DateSourceTweetText,
		ExtractedDateConfidence: 0.9,
	}
	res := New(oracle, DefaultThresholds()).Resolve(context.Background(), rec, published, player)

	assert.Equal(t, model.OutcomeFailed, res.Attempts[1].Outcome)
	assert.Contains(t, res.Attempts[1].Detail, "oracle exploded")
	require.NotNil(t, res.Date)
	assert.Equal(t, date(2024, time.June, 12), *res.Date)
}

type failingGames struct{}

func (failingGames) SeasonAppearances(context.Context, string, int) ([]model.GameAppearance, error) {
	return nil, errors.New("feed down")
}

type failingPreseason struct{}

func (failingPreseason) PreseasonDates(context.Context, string, int) ([]time.Time, error) {
	return nil, errors.New("feed down")
}

func TestResolve_CalendarBackendDown(t *testing.T) {
	cal := calendar.New(failingGames{}, failingPreseason{}, nil)
	rec := &model.MilestoneRecord{
		Description:             "Dropped 30 yesterday",
		ExtractedDateText:       "2024-06-14",
		ExtractedDateSource:     model.DateSourceTweetText,
		ExtractedDateConfidence: 0.95,
	}

	res := New(cal, DefaultThresholds()).Resolve(context.Background(), rec, published, player)

	assert.Nil(t, res.Date)
	assert.Equal(t, model.SourceUncertain, res.Source)
}

func TestResolve_MissingPublishTimeUsesClock(t *testing.T) {
	oracle := &fakeOracle{played: map[time.Time]bool{date(2024, time.June, 14): true}}
	r := New(oracle, DefaultThresholds(), WithNow(func() time.Time { return published }))

	res := r.Resolve(context.Background(), &model.MilestoneRecord{Description: "yesterday"}, time.Time{}, player)

	require.NotNil(t, res.Date)
	assert.Equal(t, date(2024, time.June, 14), *res.Date)
}

func TestResolveAll(t *testing.T) {
	oracle := &fakeOracle{
		played: map[time.Time]bool{date(2024, time.June, 14): true},
		recent: map[time.Time]time.Time{date(2024, time.June, 14): date(2024, time.June, 12)},
	}
	r := New(oracle, DefaultThresholds(), WithConcurrency(2))

	records := []model.MilestoneRecord{
		{Description: "yesterday"},
		{Title: "no date here"},
		{Description: "yesterday", PlayerName: "Aliyah Boston"},
	}
	posts := []model.SourcePost{{CreatedAt: published}, {CreatedAt: published}, {CreatedAt: published}}

	require.NoError(t, r.ResolveAll(context.Background(), records, posts, ""))

	for _, rec := range records {
		assert.True(t, rec.IsResolved())
		require.NotNil(t, rec.ResolvedDate)
	}
	assert.Equal(t, model.SourceTextPattern, records[0].ResolvedDateSource)
	assert.Equal(t, model.SourceGameSchedule, records[1].ResolvedDateSource)
	assert.Equal(t, date(2024, time.June, 12), *records[1].ResolvedDate)
}

func TestResolveAll_LengthMismatch(t *testing.T) {
	r := New(&fakeOracle{}, DefaultThresholds())
	err := r.ResolveAll(context.Background(), make([]model.MilestoneRecord, 2), make([]model.SourcePost, 1), player)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 records but 1 posts")
}

func TestResolveAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(&fakeOracle{}, DefaultThresholds())
	err := r.ResolveAll(ctx, make([]model.MilestoneRecord, 3), make([]model.SourcePost, 3), player)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
