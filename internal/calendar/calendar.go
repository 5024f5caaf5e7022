// Package calendar answers whether a player had a game on a given day, from
// regular-season box scores and team preseason schedules.
//
// The calendar fails closed: a backend error, an unknown player or an
// unplaced team all read as "no game". Callers never see an error.
package calendar

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/roster"
)

// DefaultLookbackDays bounds the most-recent-game search.
const DefaultLookbackDays = 60

// AppearanceSource supplies a player's regular-season games.
type AppearanceSource interface {
	SeasonAppearances(ctx context.Context, player string, season int) ([]model.GameAppearance, error)
}

// PreseasonSource supplies a team's preseason game days.
type PreseasonSource interface {
	PreseasonDates(ctx context.Context, teamID string, season int) ([]time.Time, error)
}

// TeamResolver places a player on a team.
type TeamResolver interface {
	TeamFor(ctx context.Context, player string) (roster.Team, bool)
}

// Oracle is the read-only view the date resolver depends on.
type Oracle interface {
	PlayedOn(ctx context.Context, player string, date time.Time) bool
	MostRecentGameOnOrBefore(ctx context.Context, player string, date time.Time) (time.Time, bool)
	PlayedPreseasonOn(ctx context.Context, player string, date time.Time) bool
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithLookbackDays sets the regular-season search window.
func WithLookbackDays(days int) Option {
	return func(c *Calendar) {
		if days > 0 {
			c.lookback = days
		}
	}
}

// WithWindows sets the preseason windows used to filter team schedules.
func WithWindows(w Windows) Option {
	return func(c *Calendar) { c.windows = w }
}

// WithLogger sets the logger used for fail-closed warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calendar) { c.log = l }
}

// Calendar implements Oracle.
type Calendar struct {
	games     AppearanceSource
	preseason PreseasonSource
	teams     TeamResolver

	lookback int
	windows  Windows
	log      *zap.Logger
}

var _ Oracle = (*Calendar)(nil)

// New creates a Calendar. preseason and teams may be nil, in which case only
// regular-season data is consulted.
func New(games AppearanceSource, preseason PreseasonSource, teams TeamResolver, opts ...Option) *Calendar {
	c := &Calendar{
		games:     games,
		preseason: preseason,
		teams:     teams,
		lookback:  DefaultLookbackDays,
		windows:   DefaultWindows(),
		log:       zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlayedOn reports whether the player appeared in a regular-season game on
// date, or their team played a preseason game that day.
func (c *Calendar) PlayedOn(ctx context.Context, player string, date time.Time) bool {
	day := model.Day(date)
	for _, g := range c.appearances(ctx, player, day.Year()) {
		if g.Date.Equal(day) {
			return true
		}
	}
	return c.PlayedPreseasonOn(ctx, player, day)
}

// PlayedPreseasonOn reports whether the player's team had a preseason game
// on date.
func (c *Calendar) PlayedPreseasonOn(ctx context.Context, player string, date time.Time) bool {
	day := model.Day(date)
	for _, d := range c.preseasonDays(ctx, player, day.Year()) {
		if d.Equal(day) {
			return true
		}
	}
	return false
}

// MostRecentGameOnOrBefore finds the player's latest regular-season game in
// [date-lookback, date], looking at date's season and the one before. When
// there is none, it falls back to the team's latest preseason game on or
// before date.
func (c *Calendar) MostRecentGameOnOrBefore(ctx context.Context, player string, date time.Time) (time.Time, bool) {
	day := model.Day(date)
	earliest := day.AddDate(0, 0, -c.lookback)

	for _, season := range []int{day.Year(), day.Year() - 1} {
		var best time.Time
		for _, g := range c.appearances(ctx, player, season) {
			if g.Date.Before(earliest) || g.Date.After(day) {
				continue
			}
			if g.Date.After(best) {
				best = g.Date
			}
		}
		if !best.IsZero() {
			return best, true
		}
	}

	for _, season := range []int{day.Year(), day.Year() - 1} {
		var best time.Time
		for _, d := range c.preseasonDays(ctx, player, season) {
			if !d.After(day) && d.After(best) {
				best = d
			}
		}
		if !best.IsZero() {
			return best, true
		}
	}
	return time.Time{}, false
}

func (c *Calendar) appearances(ctx context.Context, player string, season int) []model.GameAppearance {
	if c.games == nil {
		return nil
	}
	games, err := c.games.SeasonAppearances(ctx, player, season)
	if err != nil {
		c.log.Warn("calendar: game log unavailable, treating as no game",
			zap.String("player", player), zap.Int("season", season), zap.Error(err))
		return nil
	}
	return games
}

func (c *Calendar) preseasonDays(ctx context.Context, player string, season int) []time.Time {
	if c.preseason == nil || c.teams == nil {
		return nil
	}
	team, ok := c.teams.TeamFor(ctx, player)
	if !ok {
		c.log.Warn("calendar: no team for player, skipping preseason", zap.String("player", player))
		return nil
	}
	dates, err := c.preseason.PreseasonDates(ctx, team.ID, season)
	if err != nil {
		c.log.Warn("calendar: preseason schedule unavailable, treating as no game",
			zap.String("player", player), zap.String("team_id", team.ID),
			zap.Int("season", season), zap.Error(err))
		return nil
	}

	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = model.Day(d)
		if c.windows.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}
