package calendar

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fanbasehq/harvest-cli/internal/metrics"
	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/store"
)

// CacheConfig controls freshness of cached calendar data.
type CacheConfig struct {
	TTL              time.Duration
	CurrentSeasonTTL time.Duration

	// Now overrides the clock used for staleness checks.
	Now func() time.Time
}

// DefaultCacheConfig is six hours for past seasons and one for the current one.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 6 * time.Hour, CurrentSeasonTTL: time.Hour}
}

// seasonCache is the shared read-through logic behind both decorators.
// Corrupt payloads count as misses. Nothing is written unless the upstream
// fetch completed, and concurrent misses on one key share a single fetch.
type seasonCache[T any] struct {
	kind  string
	cache store.CalendarCache
	cfg   CacheConfig
	now   func() time.Time
	group singleflight.Group
}

func (s *seasonCache[T]) get(ctx context.Context, key string, season int, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := s.lookup(ctx, key, season); ok {
		metrics.ObserveCalendarCache(s.kind, true)
		return v, nil
	}
	metrics.ObserveCalendarCache(s.kind, false)

	res, err, _ := s.group.Do(key+"/"+strconv.Itoa(season), func() (any, error) {
		if v, ok := s.lookup(ctx, key, season); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
		s.store(ctx, key, season, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (s *seasonCache[T]) lookup(ctx context.Context, key string, season int) (T, bool) {
	var v T
	entry, err := s.cache.GetCalendarEntry(ctx, s.kind, key, season)
	if err != nil {
		zap.L().Warn("calendar: cache read failed", zap.String("kind", s.kind), zap.String("key", key), zap.Error(err))
		return v, false
	}
	if entry == nil || s.now().Sub(entry.FetchedAt) > s.ttl(season) {
		return v, false
	}
	if err := json.Unmarshal(entry.Payload, &v); err != nil {
		zap.L().Warn("calendar: discarding corrupt cache entry",
			zap.String("kind", s.kind), zap.String("key", key), zap.Int("season", season), zap.Error(err))
		var zero T
		return zero, false
	}
	return v, true
}

func (s *seasonCache[T]) store(ctx context.Context, key string, season int, v T) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.SetCalendarEntry(ctx, s.kind, key, season, payload); err != nil {
		zap.L().Warn("calendar: cache write failed", zap.String("kind", s.kind), zap.String("key", key), zap.Error(err))
	}
}

func (s *seasonCache[T]) ttl(season int) time.Duration {
	if season >= s.now().Year() {
		return s.cfg.CurrentSeasonTTL
	}
	return s.cfg.TTL
}

func newSeasonCache[T any](kind string, cache store.CalendarCache, cfg CacheConfig) *seasonCache[T] {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.CurrentSeasonTTL <= 0 {
		cfg.CurrentSeasonTTL = def.CurrentSeasonTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &seasonCache[T]{kind: kind, cache: cache, cfg: cfg, now: now}
}

// CachedAppearances decorates an AppearanceSource with the calendar cache,
// keyed by lowercased player name and season.
type CachedAppearances struct {
	next AppearanceSource
	c    *seasonCache[[]model.GameAppearance]
}

// NewCachedAppearances wraps next.
func NewCachedAppearances(next AppearanceSource, cache store.CalendarCache, cfg CacheConfig) *CachedAppearances {
	return &CachedAppearances{next: next, c: newSeasonCache[[]model.GameAppearance](store.KindGameLog, cache, cfg)}
}

// SeasonAppearances implements AppearanceSource.
func (a *CachedAppearances) SeasonAppearances(ctx context.Context, player string, season int) ([]model.GameAppearance, error) {
	key := strings.ToLower(strings.TrimSpace(player))
	return a.c.get(ctx, key, season, func(ctx context.Context) ([]model.GameAppearance, error) {
		return a.next.SeasonAppearances(ctx, player, season)
	})
}

// CachedPreseason decorates a PreseasonSource with the calendar cache, keyed
// by team id and season.
type CachedPreseason struct {
	next PreseasonSource
	c    *seasonCache[[]time.Time]
}

// NewCachedPreseason wraps next.
func NewCachedPreseason(next PreseasonSource, cache store.CalendarCache, cfg CacheConfig) *CachedPreseason {
	return &CachedPreseason{next: next, c: newSeasonCache[[]time.Time](store.KindPreseason, cache, cfg)}
}

// PreseasonDates implements PreseasonSource.
func (p *CachedPreseason) PreseasonDates(ctx context.Context, teamID string, season int) ([]time.Time, error) {
	return p.c.get(ctx, teamID, season, func(ctx context.Context) ([]time.Time, error) {
		return p.next.PreseasonDates(ctx, teamID, season)
	})
}
