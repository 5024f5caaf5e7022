package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/aggregate"
	"github.com/fanbasehq/harvest-cli/internal/calendar"
	"github.com/fanbasehq/harvest-cli/internal/classify"
	"github.com/fanbasehq/harvest-cli/internal/config"
	"github.com/fanbasehq/harvest-cli/internal/dedup"
	"github.com/fanbasehq/harvest-cli/internal/export"
	"github.com/fanbasehq/harvest-cli/internal/pipeline"
	"github.com/fanbasehq/harvest-cli/internal/resolve"
	"github.com/fanbasehq/harvest-cli/internal/roster"
	"github.com/fanbasehq/harvest-cli/internal/store"
	anthropicpkg "github.com/fanbasehq/harvest-cli/pkg/anthropic"
	"github.com/fanbasehq/harvest-cli/pkg/espn"
	"github.com/fanbasehq/harvest-cli/pkg/playerbox"
)

// harvestEnv holds the store, feeds and date machinery shared by the run,
// resolve and calendar commands.
type harvestEnv struct {
	Store    store.Store
	Roster   *roster.Registry
	Games    calendar.AppearanceSource
	Calendar *calendar.Calendar
	Resolver *resolve.Resolver
}

// Close releases resources held by the environment.
func (e *harvestEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode, opens the store and builds the
// calendar and resolver. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*harvestEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	windows, err := preseasonWindows(cfg.Calendar.PreseasonWindows)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	espnClient := espn.NewClient(
		espn.WithBaseURL(cfg.ESPN.BaseURL),
		espn.WithRateLimit(cfg.ESPN.RequestsPerSecond),
		espn.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.ESPN.TimeoutSecs) * time.Second}),
	)
	boxClient := playerbox.NewClient(
		playerbox.WithBaseURL(cfg.Playerbox.BaseURL),
		playerbox.WithRateLimit(cfg.Playerbox.RequestsPerSecond),
	)

	cacheCfg := calendar.CacheConfig{
		TTL:              time.Duration(cfg.Calendar.CacheHours) * time.Hour,
		CurrentSeasonTTL: time.Duration(cfg.Calendar.CurrentSeasonCacheHours) * time.Hour,
	}

	reg, err := roster.Load(cfg.Roster.Path,
		roster.WithDirectory(roster.NewESPNDirectory(espnClient, st, cacheCfg.TTL)))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	zap.L().Debug("roster loaded",
		zap.Int("players", len(reg.Players())),
		zap.Int("accounts", len(reg.Accounts())),
	)

	games := calendar.NewCachedAppearances(boxClient, st, cacheCfg)
	cal := calendar.New(games, calendar.NewCachedPreseason(espnClient, st, cacheCfg), reg,
		calendar.WithLookbackDays(cfg.Calendar.LookbackDays),
		calendar.WithWindows(windows),
	)
	resolver := resolve.New(cal, thresholds(cfg.Resolver),
		resolve.WithRookieSeasons(reg.RookieSeason),
		resolve.WithConcurrency(cfg.Pipeline.ResolveConcurrency),
	)

	return &harvestEnv{
		Store:    st,
		Roster:   reg,
		Games:    games,
		Calendar: cal,
		Resolver: resolver,
	}, nil
}

// initPipeline extends the environment with the classifier and the session
// pipeline used by run.
func initPipeline(ctx context.Context) (*harvestEnv, *pipeline.Pipeline, error) {
	env, err := initEnv(ctx, "run")
	if err != nil {
		return nil, nil, err
	}

	classifier := classify.New(anthropicpkg.NewClient(cfg.Anthropic.Key), env.Games, classify.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Concurrency: cfg.Pipeline.ClassifyConcurrency,
	})
	agg := aggregate.New(dedup.New(dedupConfig(cfg.Dedup)))

	p := pipeline.New(env.Store, env.Roster, classifier, env.Resolver, agg, pipeline.Options{
		OutputDir: cfg.Output.Dir,
		Submitter: export.Submitter{
			Name:   cfg.Output.SubmitterName,
			Email:  cfg.Output.SubmitterEmail,
			UserID: cfg.Output.UserID,
		},
	})
	return env, p, nil
}

func thresholds(rc config.ResolverConfig) resolve.Thresholds {
	return resolve.Thresholds{
		High:         rc.HighThreshold,
		Minimum:      rc.MinimumConfidence,
		Boxscore:     rc.BoxscoreConfidence,
		GameSchedule: rc.GameScheduleConfidence,
		Context:      rc.ContextConfidence,
		Explicit:     rc.ExplicitConfidence,
	}
}

func dedupConfig(dc config.DedupConfig) dedup.Config {
	return dedup.Config{
		Threshold:      dc.Threshold,
		StatCategories: dc.StatCategories,
		StatProximity:  dc.StatProximity,
		OfficialTokens: dc.OfficialTokens,
	}
}

// preseasonWindows parses configured windows over the built-in defaults.
func preseasonWindows(ws []config.PreseasonWindow) (calendar.Windows, error) {
	out := calendar.DefaultWindows()
	for _, w := range ws {
		parsed, err := calendar.ParseWindow(w.Season, w.Start, w.End)
		if err != nil {
			return nil, eris.Wrap(err, "config: preseason window")
		}
		out[w.Season] = parsed
	}
	return out, nil
}
