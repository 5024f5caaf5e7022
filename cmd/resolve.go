package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

var resolveFlags struct {
	player     string
	published  string
	text       string
	title      string
	date       string
	dateSource string
	confidence float64
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the date of a single milestone claim",
	Long:  "Runs the date resolution chain for one post and prints every strategy attempt. Useful for checking why a record ended up unresolved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		published, err := dateparse.ParseIn(resolveFlags.published, time.UTC)
		if err != nil {
			return eris.Wrapf(err, "parse --published %q", resolveFlags.published)
		}

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		rec := resolveRecord(resolveFlags.player, resolveFlags.title, resolveFlags.text,
			resolveFlags.date, resolveFlags.dateSource, resolveFlags.confidence)
		res := env.Resolver.Resolve(ctx, &rec, published, rec.PlayerName)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// resolveRecord builds the record the classifier would have produced.
func resolveRecord(player, title, text, date, source string, confidence float64) model.MilestoneRecord {
	if strings.TrimSpace(title) == "" {
		title = text
	}
	return model.MilestoneRecord{
		PlayerName:              strings.TrimSpace(player),
		Title:                   title,
		Description:             text,
		ExtractedDateText:       date,
		ExtractedDateSource:     model.ParseDateSource(source),
		ExtractedDateConfidence: confidence,
	}
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.player, "player", "", "player name (required)")
	f.StringVar(&resolveFlags.published, "published", "", "post publish time (required)")
	f.StringVar(&resolveFlags.text, "text", "", "post text (required)")
	f.StringVar(&resolveFlags.title, "title", "", "milestone title (default: the text)")
	f.StringVar(&resolveFlags.date, "date", "", "date the classifier extracted, if any")
	f.StringVar(&resolveFlags.dateSource, "date-source", "", "where the date came from: tweet_text, boxscore_analysis or tweet_published")
	f.Float64Var(&resolveFlags.confidence, "confidence", 0, "classifier confidence in the extracted date")
	_ = resolveCmd.MarkFlagRequired("player")
	_ = resolveCmd.MarkFlagRequired("published")
	_ = resolveCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(resolveCmd)
}
