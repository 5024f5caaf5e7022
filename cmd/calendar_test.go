//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

type stubOracle struct {
	games     map[string]bool
	preseason map[string]bool
}

func (o stubOracle) PlayedOn(_ context.Context, _ string, date time.Time) bool {
	return o.games[date.Format(time.DateOnly)]
}

func (o stubOracle) PlayedPreseasonOn(_ context.Context, _ string, date time.Time) bool {
	return o.preseason[date.Format(time.DateOnly)]
}

func (o stubOracle) MostRecentGameOnOrBefore(_ context.Context, _ string, date time.Time) (time.Time, bool) {
	for d := date; !d.Before(date.AddDate(0, 0, -30)); d = d.AddDate(0, 0, -1) {
		if o.games[d.Format(time.DateOnly)] {
			return d, true
		}
	}
	return time.Time{}, false
}

func TestWriteCalendarAnswer(t *testing.T) {
	oracle := stubOracle{
		games:     map[string]bool{"2024-06-13": true},
		preseason: map[string]bool{"2024-05-09": true},
	}

	tests := []struct {
		name string
		date time.Time
		want calendarAnswer
	}{
		{
			name: "game day",
			date: time.Date(2024, 6, 13, 23, 45, 0, 0, time.UTC),
			want: calendarAnswer{Player: "Caitlin Clark", Date: "2024-06-13", PlayedOn: true, MostRecentGame: "2024-06-13"},
		},
		{
			name: "rest day",
			date: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
			want: calendarAnswer{Player: "Caitlin Clark", Date: "2024-06-15", MostRecentGame: "2024-06-13"},
		},
		{
			name: "preseason",
			date: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC),
			want: calendarAnswer{Player: "Caitlin Clark", Date: "2024-05-09", PlayedPreseason: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeCalendarAnswer(context.Background(), &buf, oracle, "Caitlin Clark", tt.date))

			var got calendarAnswer
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCalendarAnswer_OmitsMissingGame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCalendarAnswer(context.Background(), &buf, stubOracle{}, "Paige Bueckers",
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.NotContains(t, buf.String(), "most_recent_game_on_or_before")
}

func TestResolveRecord(t *testing.T) {
	rec := resolveRecord(" Caitlin Clark ", "", "CC drops 30 in last night's win", "last night", "Tweet_Text", 0.8)
	assert.Equal(t, "Caitlin Clark", rec.PlayerName)
	assert.Equal(t, "CC drops 30 in last night's win", rec.Title)
	assert.Equal(t, "CC drops 30 in last night's win", rec.Description)
	assert.Equal(t, "last night", rec.ExtractedDateText)
	assert.Equal(t, model.DateSourceTweetText, rec.ExtractedDateSource)
	assert.InDelta(t, 0.8, rec.ExtractedDateConfidence, 0.001)

	rec = resolveRecord("Caitlin Clark", "Rookie assist record", "text", "", "", 0)
	assert.Equal(t, "Rookie assist record", rec.Title)
	assert.Equal(t, model.DateSourceUnknown, rec.ExtractedDateSource)
}
