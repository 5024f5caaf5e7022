package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fanbasehq/harvest-cli/internal/calendar"
	"github.com/fanbasehq/harvest-cli/internal/model"
)

var (
	calendarPlayer string
	calendarDate   string
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Query the game calendar for a player and date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		date, err := dateparse.ParseIn(calendarDate, time.UTC)
		if err != nil {
			return eris.Wrapf(err, "parse --date %q", calendarDate)
		}

		env, err := initEnv(ctx, "calendar")
		if err != nil {
			return err
		}
		defer env.Close()

		return writeCalendarAnswer(ctx, os.Stdout, env.Calendar, calendarPlayer, date)
	},
}

type calendarAnswer struct {
	Player          string `json:"player"`
	Date            string `json:"date"`
	PlayedOn        bool   `json:"played_on"`
	PlayedPreseason bool   `json:"played_preseason_on"`
	MostRecentGame  string `json:"most_recent_game_on_or_before,omitempty"`
}

func writeCalendarAnswer(ctx context.Context, w io.Writer, oracle calendar.Oracle, player string, date time.Time) error {
	day := model.Day(date)
	ans := calendarAnswer{
		Player:          player,
		Date:            day.Format(time.DateOnly),
		PlayedOn:        oracle.PlayedOn(ctx, player, day),
		PlayedPreseason: oracle.PlayedPreseasonOn(ctx, player, day),
	}
	if recent, ok := oracle.MostRecentGameOnOrBefore(ctx, player, day); ok {
		ans.MostRecentGame = recent.Format(time.DateOnly)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ans)
}

func init() {
	calendarCmd.Flags().StringVar(&calendarPlayer, "player", "", "player name (required)")
	calendarCmd.Flags().StringVar(&calendarDate, "date", "", "date to check (required)")
	_ = calendarCmd.MarkFlagRequired("player")
	_ = calendarCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(calendarCmd)
}
