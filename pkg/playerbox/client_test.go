package playerbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanbasehq/harvest-cli/internal/resilience"
)

const season2024 = `game_id,season,season_type,game_date,athlete_display_name,team_abbreviation,opponent_team_abbreviation,minutes,points,assists,rebounds
1,2024,2,2024-05-18,Caitlin Clark,IND,NY,34,9,6,7
2,2024,2,2024-05-14,Caitlin Clark,IND,CONN,31,20,3,3
3,2024,2,2024-05-20,Caitlin Clark,IND,CONN,NA,NA,NA,NA
4,2024,2,2024-05-14,Aliyah Boston,IND,CONN,30,8,1,9
5,2024,3,2024-09-22,Caitlin Clark,IND,CONN,40,11,8,6
6,2024,2,2024-05-16,caitlin clark,IND,NY,35,22,5,7
`

func newTestServer(t *testing.T, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/player_box_2024.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(
		WithBaseURL(srv.URL+"/"),
		WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}),
	)
}

func TestSeasonAppearances(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(newTestServer(t, season2024, &calls))

	games, err := c.SeasonAppearances(context.Background(), "Caitlin Clark", 2024)
	require.NoError(t, err)

	// DNP row and postseason row are excluded; name match ignores case.
	require.Len(t, games, 3)
	assert.Equal(t, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC), games[0].Date)
	assert.Equal(t, "CONN", games[0].Opponent)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), games[1].Date)
	assert.Equal(t, 42, games[1].SeasonPoints)
	assert.Equal(t, 51, games[2].SeasonPoints)
	assert.Equal(t, 17, games[2].SeasonRebounds)
	assert.InDelta(t, 34, games[2].Minutes, 0.001)
}

func TestSeasonAppearances_CachesSeasonDownload(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(newTestServer(t, season2024, &calls))

	var wg sync.WaitGroup
	for _, p := range []string{"Caitlin Clark", "Aliyah Boston", "Caitlin Clark", "Nobody"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := c.SeasonAppearances(context.Background(), p, 2024)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	games, err := c.SeasonAppearances(context.Background(), "Aliyah Boston", 2024)
	require.NoError(t, err)
	assert.Len(t, games, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSeasonAppearances_UnknownPlayer(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(newTestServer(t, season2024, &calls))

	games, err := c.SeasonAppearances(context.Background(), "Nobody", 2024)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestSeasonAppearances_MissingSeason(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(newTestServer(t, season2024, &calls))

	_, err := c.SeasonAppearances(context.Background(), "Caitlin Clark", 2019)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecodeRows(t *testing.T) {
	rows, err := decodeRows(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = decodeRows(strings.NewReader("athlete_display_name,points\nA,lots\n"))
	require.Error(t, err)
}

func TestStatUnmarshal(t *testing.T) {
	var s stat
	require.NoError(t, s.UnmarshalCSV([]byte(" 12.5 ")))
	assert.InDelta(t, 12.5, float64(s), 0.001)
	require.NoError(t, s.UnmarshalCSV([]byte("NA")))
	assert.Zero(t, float64(s))
	assert.Error(t, s.UnmarshalCSV([]byte("x")))
}
