// Package playerbox reads the per-season WNBA player box score CSV releases
// and turns them into per-player game logs.
package playerbox

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/resilience"
)

// DefaultBaseURL hosts player_box_{season}.csv release assets.
const DefaultBaseURL = "https://github.com/sportsdataverse/sportsdataverse-data/releases/download/espn_wnba_player_boxscores"

const regularSeason = 2

// Row is one player's line in one game. Only consumed columns are decoded.
type Row struct {
	Athlete    string `csv:"athlete_display_name"`
	GameDate   string `csv:"game_date"`
	Season     int    `csv:"season"`
	SeasonType int    `csv:"season_type"`
	Opponent   string `csv:"opponent_team_abbreviation"`
	Minutes    stat   `csv:"minutes"`
	Points     stat   `csv:"points"`
	Assists    stat   `csv:"assists"`
	Rebounds   stat   `csv:"rebounds"`
}

// stat tolerates the blank and NA cells the release files use for DNPs.
type stat float64

func (s *stat) UnmarshalCSV(b []byte) error {
	v := strings.TrimSpace(string(b))
	if v == "" || strings.EqualFold(v, "NA") {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return eris.Wrapf(err, "playerbox: parse stat %q", v)
	}
	*s = stat(f)
	return nil
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing downloads per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client downloads season files and keeps the decoded rows in memory, so
// looking up several players in one season costs one download.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig

	group   singleflight.Group
	mu      sync.RWMutex
	seasons map[int][]Row
}

// NewClient creates a box score feed client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
		limiter: rate.NewLimiter(1, 1),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("playerbox")),
		retry:   resilience.DefaultRetryConfig(),
		seasons: make(map[int][]Row),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("playerbox", "season")
	return c
}

// SeasonAppearances returns the regular-season games the player actually
// played in, ordered by date with running totals.
func (c *Client) SeasonAppearances(ctx context.Context, player string, season int) ([]model.GameAppearance, error) {
	rows, err := c.seasonRows(ctx, season)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(player)
	var games []model.GameAppearance
	for _, r := range rows {
		if !strings.EqualFold(strings.TrimSpace(r.Athlete), name) {
			continue
		}
		if r.SeasonType != 0 && r.SeasonType != regularSeason {
			continue
		}
		day, err := parseGameDate(r.GameDate)
		if err != nil {
			zap.L().Debug("playerbox: skipping row with bad date",
				zap.String("player", player), zap.String("game_date", r.GameDate))
			continue
		}
		games = append(games, model.GameAppearance{
			Date:     day,
			Season:   season,
			Opponent: r.Opponent,
			Minutes:  float64(r.Minutes),
			Points:   int(r.Points),
			Assists:  int(r.Assists),
			Rebounds: int(r.Rebounds),
		})
	}
	return model.SeasonLog(games), nil
}

func (c *Client) seasonRows(ctx context.Context, season int) ([]Row, error) {
	c.mu.RLock()
	rows, ok := c.seasons[season]
	c.mu.RUnlock()
	if ok {
		return rows, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(season), func() (any, error) {
		c.mu.RLock()
		cached, ok := c.seasons[season]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		rows, err := resilience.Call(ctx, c.breaker, c.retry, func(ctx context.Context) ([]Row, error) {
			return c.download(ctx, season)
		})
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.seasons[season] = rows
		c.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "playerbox: season %d", season)
	}
	return v.([]Row), nil
}

func (c *Client) download(ctx context.Context, season int) ([]Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit wait")
	}

	url := fmt.Sprintf("%s/player_box_%d.csv", c.baseURL, season)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("playerbox", resp); err != nil {
		return nil, err
	}
	return decodeRows(resp.Body)
}

func decodeRows(r io.Reader) ([]Row, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "read header")
	}

	var rows []Row
	for {
		var row Row
		err := dec.Decode(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "decode row")
		}
		if row.Minutes == 0 && row.Points == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseGameDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return model.Day(t), nil
}
