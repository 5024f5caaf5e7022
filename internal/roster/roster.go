// Package roster is the registry of tracked players: their name variations,
// team, rookie season, and the accounts searched for their milestones.
package roster

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Team identifies a franchise by its ESPN id.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is one tracked player.
type Player struct {
	Name         string   `yaml:"name"`
	Variations   []string `yaml:"variations"`
	Team         string   `yaml:"team"`
	TeamID       string   `yaml:"team_id"`
	RookieSeason int      `yaml:"rookie_season"`
}

// SearchVariations returns the name forms to search for, always including
// the canonical name.
func (p Player) SearchVariations() []string {
	out := []string{p.Name}
	seen := map[string]bool{Key(p.Name): true}
	for _, v := range p.Variations {
		k := Key(v)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// File is the on-disk players.yaml layout.
type File struct {
	Accounts []string `yaml:"accounts"`
	Players  []Player `yaml:"players"`
}

// Directory finds teams for players the registry does not place, keyed by Key(name).
type Directory interface {
	PlayerTeams(ctx context.Context) (map[string]Team, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithDirectory sets the fallback team directory.
func WithDirectory(d Directory) Option {
	return func(r *Registry) { r.dir = d }
}

// Registry answers player lookups. It is safe for concurrent use.
type Registry struct {
	accounts []string
	players  map[string]Player
	order    []string
	dir      Directory

	group    singleflight.Group
	mu       sync.RWMutex
	dirTeams map[string]Team
}

// Key is the case- and spacing-insensitive lookup key for a name.
func Key(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// DisplayName title-cases a name typed in any case, e.g. on the command line.
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(name), " "))
}

// Load reads a players.yaml file.
func Load(path string, opts ...Option) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: read %s", path)
	}
	return Parse(data, opts...)
}

// Parse decodes players.yaml content.
func Parse(data []byte, opts ...Option) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "roster: parse yaml")
	}
	return New(f, opts...)
}

// New builds a registry, rejecting unnamed or duplicate players.
func New(f File, opts ...Option) (*Registry, error) {
	r := &Registry{players: make(map[string]Player, len(f.Players))}
	for _, a := range f.Accounts {
		if a = strings.TrimPrefix(strings.TrimSpace(a), "@"); a != "" {
			r.accounts = append(r.accounts, a)
		}
	}
	for _, p := range f.Players {
		k := Key(p.Name)
		if k == "" {
			return nil, eris.New("roster: player with empty name")
		}
		if _, dup := r.players[k]; dup {
			return nil, eris.Errorf("roster: duplicate player %q", p.Name)
		}
		p.Name = strings.TrimSpace(p.Name)
		r.players[k] = p
		r.order = append(r.order, k)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Accounts returns the handles to search, without a leading @.
func (r *Registry) Accounts() []string {
	return append([]string(nil), r.accounts...)
}

// Players returns every registered player in file order.
func (r *Registry) Players() []Player {
	out := make([]Player, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.players[k])
	}
	return out
}

// Lookup finds a player by canonical name or any variation.
func (r *Registry) Lookup(name string) (Player, bool) {
	k := Key(name)
	if p, ok := r.players[k]; ok {
		return p, true
	}
	for _, ok := range r.order {
		p := r.players[ok]
		for _, v := range p.Variations {
			if Key(v) == k {
				return p, true
			}
		}
	}
	return Player{}, false
}

// RookieSeason returns the player's first season, or 0 when unknown.
func (r *Registry) RookieSeason(name string) int {
	p, _ := r.Lookup(name)
	return p.RookieSeason
}

// TeamFor places a player on a team, first from the registry and then from
// the directory. Directory failures are logged and reported as not found.
func (r *Registry) TeamFor(ctx context.Context, name string) (Team, bool) {
	if p, ok := r.Lookup(name); ok && p.TeamID != "" {
		return Team{ID: p.TeamID, Name: p.Team}, true
	}
	if r.dir == nil {
		return Team{}, false
	}

	teams, err := r.directoryTeams(ctx)
	if err != nil {
		zap.L().Warn("roster: team directory unavailable", zap.String("player", name), zap.Error(err))
		return Team{}, false
	}
	t, ok := teams[Key(name)]
	if !ok {
		if p, found := r.Lookup(name); found {
			t, ok = teams[Key(p.Name)]
		}
	}
	return t, ok
}

func (r *Registry) directoryTeams(ctx context.Context) (map[string]Team, error) {
	r.mu.RLock()
	teams := r.dirTeams
	r.mu.RUnlock()
	if teams != nil {
		return teams, nil
	}

	v, err, _ := r.group.Do("directory", func() (any, error) {
		teams, err := r.dir.PlayerTeams(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.dirTeams = teams
		r.mu.Unlock()
		return teams, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]Team), nil
}
