// Package classify turns social media posts into structured milestone
// records with a language model.
package classify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fanbasehq/harvest-cli/internal/boxscore"
	"github.com/fanbasehq/harvest-cli/internal/calendar"
	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/pkg/anthropic"
)

// Config tunes the classifier.
type Config struct {
	Model       string
	MaxTokens   int64
	Concurrency int
	// ContextGames is how many recent games go into the prompt.
	ContextGames int
}

// Classifier asks the model whether each post is a milestone.
type Classifier struct {
	client anthropic.Client
	games  calendar.AppearanceSource
	cfg    Config
	log    *zap.Logger
	newID  func() string
}

// New creates a Classifier. games may be nil, in which case no box score
// context or inference is used.
func New(client anthropic.Client, games calendar.AppearanceSource, cfg Config) *Classifier {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ContextGames <= 0 {
		cfg.ContextGames = 10
	}
	return &Classifier{client: client, games: games, cfg: cfg, log: zap.L(), newID: uuid.NewString}
}

// Classify returns the milestone in post, or nil when there is none.
func (c *Classifier) Classify(ctx context.Context, post model.SourcePost, player string) (*model.MilestoneRecord, error) {
	log := c.seasonLog(ctx, post, player)

	var boxCtx string
	if c.games != nil {
		boxCtx = boxscore.FormatContext(player, log, c.cfg.ContextGames)
	}

	temp := 0.1
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      anthropic.CachedSystem(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(post, player, boxCtx)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "classify: post %s", post.ID)
	}
	resp.Usage.LogCost(c.cfg.Model, "classify")

	r, err := decodeReply(resp.Text())
	if err != nil {
		return nil, eris.Wrapf(err, "classify: post %s", post.ID)
	}
	if !r.IsMilestone {
		return nil, nil
	}
	if misattributed(post.Text, player) {
		c.log.Info("classify: rejected comparison milestone",
			zap.String("post_id", post.ID), zap.String("title", r.Title))
		return nil, nil
	}

	rec := &model.MilestoneRecord{
		ID:                      c.newID(),
		PlayerName:              player,
		Title:                   strings.TrimSpace(r.Title),
		Value:                   strings.TrimSpace(r.Value),
		Categories:              cleanCategories(r.Categories),
		Description:             strings.TrimSpace(r.Description),
		PreviousRecord:          deref(r.PreviousRecord),
		ExtractedDateText:       deref(r.ExtractedDate),
		ExtractedDateSource:     model.ParseDateSource(deref(r.DateSource)),
		ExtractedDateConfidence: r.DateConfidence,
		SourcePostID:            post.ID,
		SourceURL:               post.URL,
		SourceReliability:       0.5,
		MilestoneConfidence:     r.MilestoneConfidence,
		AttributionConfidence:   r.AttributionConfidence,
	}
	if r.SourceReliability != nil {
		rec.SourceReliability = *r.SourceReliability
	}
	if rec.Description == "" {
		rec.Description = post.Text
	}

	if !statMilestone(rec.Categories) {
		return rec, nil
	}
	if crossing, ok := boxscore.InferFromText(log, rec.Title+" "+rec.Value+" "+rec.Description); ok {
		rec.ExtractedDateText = crossing.Date.Format(time.DateOnly)
		rec.ExtractedDateSource = model.DateSourceBoxscoreAnalysis
		rec.ExtractedDateConfidence = crossing.Confidence
		c.log.Debug("classify: boxscore crossing found",
			zap.String("post_id", post.ID),
			zap.String("stat", string(crossing.Stat)),
			zap.Int("threshold", crossing.Value),
			zap.Time("date", crossing.Date),
		)
	}
	return rec, nil
}

// cleanCategories trims each category and drops blanks, keeping order.
func cleanCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

var statCategories = map[string]bool{
	"scoring": true, "points": true, "assists": true, "rebounding": true, "rebounds": true,
}

func statMilestone(categories []string) bool {
	for _, c := range categories {
		if statCategories[strings.ToLower(strings.TrimSpace(c))] {
			return true
		}
	}
	return false
}

// seasonLog returns the player's games up to the post's day.
func (c *Classifier) seasonLog(ctx context.Context, post model.SourcePost, player string) []model.GameAppearance {
	if c.games == nil || post.CreatedAt.IsZero() {
		return nil
	}
	games, err := c.games.SeasonAppearances(ctx, player, post.CreatedAt.Year())
	if err != nil {
		c.log.Warn("classify: no box score context", zap.String("player", player), zap.Error(err))
		return nil
	}
	day := model.Day(post.CreatedAt)
	out := games[:0:0]
	for _, g := range games {
		if !g.Date.After(day) {
			out = append(out, g)
		}
	}
	return out
}

// ClassifyAll classifies posts concurrently and returns the milestones
// found, each paired with its post, in input order. A post that fails to
// classify is logged and skipped.
func (c *Classifier) ClassifyAll(ctx context.Context, posts []model.SourcePost, player string) ([]model.MilestoneRecord, []model.SourcePost, error) {
	found := make([]*model.MilestoneRecord, len(posts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i := range posts {
		g.Go(func() error {
			rec, err := c.Classify(gctx, posts[i], player)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn("classify: skipping post", zap.String("post_id", posts[i].ID), zap.Error(err))
				return nil
			}
			found[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "classify: classify posts")
	}

	var records []model.MilestoneRecord
	var origins []model.SourcePost
	for i, rec := range found {
		if rec != nil {
			records = append(records, *rec)
			origins = append(origins, posts[i])
		}
	}
	return records, origins, nil
}
