package model

import (
	"sort"
	"time"
)

// GameAppearance is one game a player appeared in, with per-game stats and
// running season totals through that game.
type GameAppearance struct {
	Date     time.Time `json:"date"`
	Season   int       `json:"season"`
	Opponent string    `json:"opponent"`
	Minutes  float64   `json:"minutes"`

	Points   int `json:"points"`
	Assists  int `json:"assists"`
	Rebounds int `json:"rebounds"`

	SeasonPoints   int `json:"season_points"`
	SeasonAssists  int `json:"season_assists"`
	SeasonRebounds int `json:"season_rebounds"`
}

// DidNotPlay is true for box score rows with no minutes and no points.
func (g GameAppearance) DidNotPlay() bool {
	return g.Minutes == 0 && g.Points == 0
}

// SeasonLog orders appearances by date, drops DNP rows and same-day
// duplicates, and fills in running season totals.
func SeasonLog(games []GameAppearance) []GameAppearance {
	played := make([]GameAppearance, 0, len(games))
	for _, g := range games {
		if g.DidNotPlay() {
			continue
		}
		g.Date = Day(g.Date)
		played = append(played, g)
	}
	sort.SliceStable(played, func(i, j int) bool {
		return played[i].Date.Before(played[j].Date)
	})

	out := make([]GameAppearance, 0, len(played))
	var pts, ast, reb int
	for _, g := range played {
		if n := len(out); n > 0 && g.Date.Equal(out[n-1].Date) {
			continue
		}
		pts += g.Points
		ast += g.Assists
		reb += g.Rebounds
		g.SeasonPoints, g.SeasonAssists, g.SeasonRebounds = pts, ast, reb
		out = append(out, g)
	}
	return out
}
