// Package espn is a small client for the public ESPN site API, limited to the
// WNBA team, roster and schedule endpoints.
package espn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/fanbasehq/harvest-cli/internal/resilience"
)

// DefaultBaseURL is the WNBA root of the site API.
const DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/wnba"

// SeasonType selects preseason or regular season schedules.
type SeasonType int

const (
	SeasonTypePreseason SeasonType = 1
	SeasonTypeRegular   SeasonType = 2
)

// Team is a WNBA franchise.
type Team struct {
	ID           string `json:"id"`
	Name         string `json:"displayName"`
	Abbreviation string `json:"abbreviation"`
}

// Athlete is a rostered player.
type Athlete struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Event is one scheduled game.
type Event struct {
	ID        string
	Name      string
	ShortName string
	Date      time.Time
}

// Day returns the calendar date of the game in US Eastern time, which is how
// the league dates its games.
func (e Event) Day() time.Time {
	t := e.Date.In(eastern)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client talks to the ESPN site API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewClient creates an ESPN client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(2, 2),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("espn")),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("espn", "get")
	return c
}

// Teams lists the league's franchises.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp struct {
		Sports []struct {
			Leagues []struct {
				Teams []struct {
					Team Team `json:"team"`
				} `json:"teams"`
			} `json:"leagues"`
		} `json:"sports"`
	}
	if err := c.getJSON(ctx, "/teams", nil, &resp); err != nil {
		return nil, eris.Wrap(err, "espn: teams")
	}

	var teams []Team
	for _, s := range resp.Sports {
		for _, l := range s.Leagues {
			for _, t := range l.Teams {
				teams = append(teams, t.Team)
			}
		}
	}
	return teams, nil
}

// Roster lists the athletes on a team. Both the flat "athletes" shape and the
// older nested "team.roster.entries" shape are accepted.
func (c *Client) Roster(ctx context.Context, teamID string) ([]Athlete, error) {
	var resp struct {
		Athletes []Athlete `json:"athletes"`
		Team     struct {
			Roster struct {
				Entries []struct {
					Athlete Athlete `json:"athlete"`
				} `json:"entries"`
			} `json:"roster"`
		} `json:"team"`
	}
	if err := c.getJSON(ctx, "/teams/"+url.PathEscape(teamID)+"/roster", nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "espn: roster for team %s", teamID)
	}

	athletes := resp.Athletes
	for _, e := range resp.Team.Roster.Entries {
		athletes = append(athletes, e.Athlete)
	}
	return athletes, nil
}

// Schedule lists a team's games for one season and season type. Events with
// an unparseable date are dropped.
func (c *Client) Schedule(ctx context.Context, teamID string, season int, st SeasonType) ([]Event, error) {
	q := url.Values{}
	q.Set("season", strconv.Itoa(season))
	q.Set("seasontype", strconv.Itoa(int(st)))

	var resp struct {
		Events []struct {
			ID        string `json:"id"`
			Date      string `json:"date"`
			Name      string `json:"name"`
			ShortName string `json:"shortName"`
		} `json:"events"`
	}
	if err := c.getJSON(ctx, "/teams/"+url.PathEscape(teamID)+"/schedule", q, &resp); err != nil {
		return nil, eris.Wrapf(err, "espn: schedule for team %s season %d", teamID, season)
	}

	events := make([]Event, 0, len(resp.Events))
	for _, e := range resp.Events {
		when, err := parseEventDate(e.Date)
		if err != nil {
			continue
		}
		events = append(events, Event{ID: e.ID, Name: e.Name, ShortName: e.ShortName, Date: when})
	}
	return events, nil
}

// PreseasonDates returns the distinct days of a team's preseason games.
func (c *Client) PreseasonDates(ctx context.Context, teamID string, season int) ([]time.Time, error) {
	events, err := c.Schedule(ctx, teamID, season, SeasonTypePreseason)
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]struct{}, len(events))
	var days []time.Time
	for _, e := range events {
		d := e.Day()
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	_, err := resilience.Call(ctx, c.breaker, c.retry, func(ctx context.Context) (struct{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, eris.Wrap(err, "rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return struct{}{}, eris.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close() //nolint:errcheck

		if err := resilience.CheckResponse("espn", resp); err != nil {
			return struct{}{}, err
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, eris.Wrap(err, "decode response")
		}
		return struct{}{}, nil
	})
	return eris.Wrapf(err, "GET %s", path)
}

// ESPN omits seconds ("2024-05-03T23:00Z"), which RFC 3339 parsing rejects.
func parseEventDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04Z07:00", s); err == nil {
		return t.UTC(), nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "espn: parse event date %q", s)
	}
	return t.UTC(), nil
}
