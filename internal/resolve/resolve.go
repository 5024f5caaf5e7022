// Package resolve picks the single most defensible date for a milestone.
//
// Strategies run in strict precedence and the first accepted date wins:
//
//  1. a boxscore-inferred date, trusted without a calendar check
//  2. the classifier's text date, confirmed against the game calendar
//  3. a date pattern found in the post text, also confirmed
//  4. the player's most recent game before the post was published
//  5. unresolved
//
// Any date below the minimum confidence is reported as unresolved.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fanbasehq/harvest-cli/internal/calendar"
	"github.com/fanbasehq/harvest-cli/internal/metrics"
	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/textdate"
)

// Strategy names recorded on each attempt.
const (
	StrategyBoxscore        = "boxscore"
	StrategyAIText          = "ai_text"
	StrategyTextPattern     = "text_pattern"
	StrategyRecentGame      = "recent_game"
	StrategyConfidenceFloor = "confidence_floor"
)

// Thresholds holds the confidence constants the chain works with.
type Thresholds struct {
	// High is the extracted-date confidence a classifier date must exceed
	// before strategies 1 and 2 consider it.
	High float64
	// Minimum is the floor below which a date is discarded.
	Minimum float64

	Boxscore     float64
	GameSchedule float64
	Context      float64
	Explicit     float64
}

// DefaultThresholds returns the production confidence constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:         0.8,
		Minimum:      0.7,
		Boxscore:     0.9,
		GameSchedule: 0.7,
		Context:      0.8,
		Explicit:     0.6,
	}
}

// RookieSeasonFunc returns a player's rookie season, or 0 when unknown.
type RookieSeasonFunc func(player string) int

// Option configures a Resolver.
type Option func(*Resolver)

// WithRookieSeasons anchors "rookie year" phrases per player.
func WithRookieSeasons(fn RookieSeasonFunc) Option {
	return func(r *Resolver) { r.rookie = fn }
}

// WithNow overrides the clock used when a post has no publish time.
func WithNow(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithConcurrency bounds ResolveAll's parallelism.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// Resolver runs the date strategy chain against a game calendar.
type Resolver struct {
	cal         calendar.Oracle
	th          Thresholds
	rookie      RookieSeasonFunc
	now         func() time.Time
	log         *zap.Logger
	concurrency int
}

// New creates a Resolver.
func New(cal calendar.Oracle, th Thresholds, opts ...Option) *Resolver {
	r := &Resolver{
		cal:         cal,
		th:          th,
		now:         time.Now,
		log:         zap.L(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// candidate is what a strategy proposes when it accepts a date.
type candidate struct {
	date       time.Time
	source     string
	detail     string
	confidence float64
}

type strategy struct {
	name string
	run  func(ctx context.Context, in input) (*candidate, model.Attempt)
}

type input struct {
	rec       *model.MilestoneRecord
	published time.Time
	player    string
}

// Resolve determines the milestone date for rec. It never fails: a record
// with no usable evidence resolves to the "uncertain" terminal state.
func (r *Resolver) Resolve(ctx context.Context, rec *model.MilestoneRecord, publishedAt time.Time, player string) model.Resolution {
	if publishedAt.IsZero() {
		publishedAt = r.now()
	}
	in := input{rec: rec, published: publishedAt, player: player}

	chain := []strategy{
		{StrategyBoxscore, r.boxscore},
		{StrategyAIText, r.aiText},
		{StrategyTextPattern, r.textPattern},
		{StrategyRecentGame, r.recentGame},
	}

	var attempts []model.Attempt
	for _, s := range chain {
		if ctx.Err() != nil {
			attempts = append(attempts, model.Attempt{Strategy: s.name, Outcome: model.OutcomeFailed, Detail: ctx.Err().Error()})
			break
		}
		c, att := r.guard(ctx, s, in)
		att.Strategy = s.name
		attempts = append(attempts, att)
		if c == nil {
			continue
		}
		if c.confidence < r.th.Minimum {
			attempts = append(attempts, model.Attempt{
				Strategy: StrategyConfidenceFloor,
				Outcome:  model.OutcomeRejected,
				Detail:   fmt.Sprintf("%.2f below minimum %.2f", c.confidence, r.th.Minimum),
			})
			break
		}
		d := c.date
		res := model.Resolution{Date: &d, Source: c.source, Detail: c.detail, Confidence: c.confidence, Attempts: attempts}
		metrics.ObserveResolution(res.Source)
		r.log.Debug("resolve: date accepted",
			zap.String("player", player),
			zap.String("title", rec.Title),
			zap.String("source", res.Source),
			zap.Time("date", d),
			zap.Float64("confidence", res.Confidence),
		)
		return res
	}

	metrics.ObserveResolution(model.SourceUncertain)
	r.log.Info("resolve: no defensible date, flagging for review",
		zap.String("player", player),
		zap.String("title", rec.Title),
	)
	return model.Unresolved(attempts)
}

// guard turns a panicking strategy into a failed attempt so the chain can
// fall through to the next one.
func (r *Resolver) guard(ctx context.Context, s strategy, in input) (c *candidate, att model.Attempt) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("resolve: strategy panicked", zap.String("strategy", s.name), zap.Any("panic", p))
			c, att = nil, model.Attempt{Outcome: model.OutcomeFailed, Detail: fmt.Sprint(p)}
		}
	}()
	return s.run(ctx, in)
}

func (r *Resolver) boxscore(_ context.Context, in input) (*candidate, model.Attempt) {
	rec := in.rec
	if rec.ExtractedDateSource != model.DateSourceBoxscoreAnalysis || rec.ExtractedDateConfidence <= r.th.High {
		return nil, skipped("no high-confidence boxscore date")
	}
	d, err := textdate.ParseDate(rec.ExtractedDateText)
	if err != nil {
		return nil, r.failed(in, err)
	}
	if after(d, in.published) {
		return nil, rejected("%s is after the post", d.Format(time.DateOnly))
	}
	return &candidate{
		date:       d,
		source:     model.SourceBoxscoreAnalysis,
		detail:     "boxscore threshold crossing",
		confidence: r.th.Boxscore,
	}, accepted(d)
}

func (r *Resolver) aiText(ctx context.Context, in input) (*candidate, model.Attempt) {
	rec := in.rec
	if rec.ExtractedDateSource != model.DateSourceTweetText || rec.ExtractedDateConfidence <= r.th.High {
		return nil, skipped("no high-confidence text date")
	}
	d, err := textdate.ParseDate(rec.ExtractedDateText)
	if err != nil {
		return nil, r.failed(in, err)
	}
	if after(d, in.published) {
		return nil, rejected("%s is after the post", d.Format(time.DateOnly))
	}
	if !r.cal.PlayedOn(ctx, in.player, d) {
		r.log.Warn("resolve: extracted date has no game, ignoring",
			zap.String("player", in.player), zap.Time("date", d))
		return nil, rejected("no game on %s", d.Format(time.DateOnly))
	}
	return &candidate{
		date:       d,
		source:     model.SourceTweetTextVerified,
		detail:     "classifier date confirmed by game log",
		confidence: rec.ExtractedDateConfidence,
	}, accepted(d)
}

func (r *Resolver) textPattern(ctx context.Context, in input) (*candidate, model.Attempt) {
	text := in.rec.Description
	if text == "" {
		text = in.rec.Title
	}
	var opts textdate.Options
	if r.rookie != nil {
		opts.RookieSeason = r.rookie(in.player)
	}

	m := textdate.Extract(text, in.published, opts)
	if !m.Found() {
		return nil, skipped("no date in text")
	}
	conf := r.th.Explicit
	if m.Kind == textdate.KindContext {
		conf = r.th.Context
	}
	if conf < r.th.Minimum {
		return nil, rejected("%s: confidence %.2f below minimum", m.Label, conf)
	}
	if after(m.Date, in.published) {
		return nil, rejected("%s is after the post", m.Label)
	}
	if !r.cal.PlayedOn(ctx, in.player, m.Date) {
		return nil, rejected("%s: no game on %s", m.Label, m.Date.Format(time.DateOnly))
	}
	return &candidate{
		date:       m.Date,
		source:     model.SourceTextPattern,
		detail:     m.Label,
		confidence: conf,
	}, accepted(m.Date)
}

func (r *Resolver) recentGame(ctx context.Context, in input) (*candidate, model.Attempt) {
	if r.th.GameSchedule < r.th.Minimum {
		return nil, skipped("schedule confidence below minimum")
	}
	before := model.Day(in.published).AddDate(0, 0, -1)
	d, ok := r.cal.MostRecentGameOnOrBefore(ctx, in.player, before)
	if !ok {
		return nil, rejected("no game on or before %s", before.Format(time.DateOnly))
	}

	source := model.SourceGameSchedule
	if r.cal.PlayedPreseasonOn(ctx, in.player, d) {
		source = model.SourcePreseasonSchedule
	}
	return &candidate{
		date:       d,
		source:     source,
		detail:     "most recent game before post",
		confidence: r.th.GameSchedule,
	}, accepted(d)
}

func (r *Resolver) failed(in input, err error) model.Attempt {
	r.log.Warn("resolve: unusable extracted date",
		zap.String("player", in.player),
		zap.String("extracted", in.rec.ExtractedDateText),
		zap.Error(err),
	)
	return model.Attempt{Outcome: model.OutcomeFailed, Detail: err.Error()}
}

// ResolveAll resolves records in parallel and applies each result. posts
// must pair one-to-one with records; each post's CreatedAt is the publish
// time.
func (r *Resolver) ResolveAll(ctx context.Context, records []model.MilestoneRecord, posts []model.SourcePost, player string) error {
	if len(records) != len(posts) {
		return eris.Errorf("resolve: %d records but %d posts", len(records), len(posts))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := player
			if name == "" {
				name = records[i].PlayerName
			}
			records[i].ApplyResolution(r.Resolve(gctx, &records[i], posts[i].CreatedAt, name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "resolve: resolve records")
	}
	return nil
}

func after(d, published time.Time) bool {
	return model.Day(d).After(model.Day(published))
}

func accepted(d time.Time) model.Attempt {
	return model.Attempt{Outcome: model.OutcomeAccepted, Detail: d.Format(time.DateOnly)}
}

func rejected(format string, args ...any) model.Attempt {
	return model.Attempt{Outcome: model.OutcomeRejected, Detail: fmt.Sprintf(format, args...)}
}

func skipped(detail string) model.Attempt {
	return model.Attempt{Outcome: model.OutcomeSkipped, Detail: detail}
}
