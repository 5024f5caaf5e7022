package roster

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fanbasehq/harvest-cli/internal/store"
	"github.com/fanbasehq/harvest-cli/pkg/espn"
)

// KnownTeams is used when the team index itself cannot be fetched.
var KnownTeams = []Team{
	{ID: "20", Name: "Atlanta Dream"},
	{ID: "19", Name: "Chicago Sky"},
	{ID: "18", Name: "Connecticut Sun"},
	{ID: "3", Name: "Dallas Wings"},
	{ID: "129689", Name: "Golden State Valkyries"},
	{ID: "5", Name: "Indiana Fever"},
	{ID: "17", Name: "Las Vegas Aces"},
	{ID: "6", Name: "Los Angeles Sparks"},
	{ID: "8", Name: "Minnesota Lynx"},
	{ID: "9", Name: "New York Liberty"},
	{ID: "11", Name: "Phoenix Mercury"},
	{ID: "14", Name: "Seattle Storm"},
	{ID: "16", Name: "Washington Mystics"},
}

// TeamSource is the part of the ESPN client the directory needs.
type TeamSource interface {
	Teams(ctx context.Context) ([]espn.Team, error)
	Roster(ctx context.Context, teamID string) ([]espn.Athlete, error)
}

const directoryKey = "wnba"

// ESPNDirectory builds the player to team index from ESPN team rosters and
// keeps it in the calendar cache for ttl.
type ESPNDirectory struct {
	src   TeamSource
	cache store.CalendarCache
	ttl   time.Duration
	now   func() time.Time
}

// NewESPNDirectory creates a directory. A nil cache disables persistence.
func NewESPNDirectory(src TeamSource, cache store.CalendarCache, ttl time.Duration) *ESPNDirectory {
	return &ESPNDirectory{src: src, cache: cache, ttl: ttl, now: time.Now}
}

// PlayerTeams implements Directory.
func (d *ESPNDirectory) PlayerTeams(ctx context.Context) (map[string]Team, error) {
	if teams, ok := d.cached(ctx); ok {
		return teams, nil
	}

	teams := d.teamIndex(ctx)
	index := make(map[string]Team)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	failed := 0
	for _, t := range teams {
		g.Go(func() error {
			athletes, err := d.src.Roster(gctx, t.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				zap.L().Warn("roster: team roster fetch failed", zap.String("team", t.Name), zap.Error(err))
				return nil
			}
			for _, a := range athletes {
				if k := Key(a.DisplayName); k != "" {
					index[k] = t
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "roster: build directory")
	}
	if failed == len(teams) {
		return nil, eris.New("roster: no team rosters could be fetched")
	}
	// Partial results are served but not persisted.
	if failed == 0 {
		d.store(ctx, index)
	}
	return index, nil
}

func (d *ESPNDirectory) teamIndex(ctx context.Context) []Team {
	fetched, err := d.src.Teams(ctx)
	if err != nil || len(fetched) == 0 {
		zap.L().Warn("roster: team index unavailable, using known teams", zap.Error(err))
		return KnownTeams
	}
	teams := make([]Team, 0, len(fetched))
	for _, t := range fetched {
		teams = append(teams, Team{ID: t.ID, Name: t.Name})
	}
	return teams
}

func (d *ESPNDirectory) cached(ctx context.Context) (map[string]Team, bool) {
	if d.cache == nil {
		return nil, false
	}
	entry, err := d.cache.GetCalendarEntry(ctx, store.KindRoster, directoryKey, 0)
	if err != nil || entry == nil || d.now().Sub(entry.FetchedAt) > d.ttl {
		return nil, false
	}
	var teams map[string]Team
	if err := json.Unmarshal(entry.Payload, &teams); err != nil || len(teams) == 0 {
		return nil, false
	}
	return teams, true
}

func (d *ESPNDirectory) store(ctx context.Context, index map[string]Team) {
	if d.cache == nil {
		return
	}
	payload, err := json.Marshal(index)
	if err != nil {
		return
	}
	if err := d.cache.SetCalendarEntry(ctx, store.KindRoster, directoryKey, 0, payload); err != nil {
		zap.L().Warn("roster: cache directory", zap.Error(err))
	}
}
