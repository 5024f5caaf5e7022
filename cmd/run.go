package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/pipeline"
)

var (
	runPlayer    string
	runStartDate string
	runEndDate   string
	runInput     string
	runOutput    string
	runLimit     int
	runDryRun    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest milestones for one player",
	Long:  "Reads harvested posts, classifies milestones, resolves their dates, removes duplicates and appends the result to the player's CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, end, err := sessionRange(runStartDate, runEndDate, time.Now())
		if err != nil {
			return err
		}

		env, p, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := runLimit
		if limit == 0 {
			limit = cfg.Pipeline.PostLimit
		}

		result, err := p.Run(ctx, pipeline.Request{
			Player: runPlayer,
			Start:  start,
			End:    end,
			Input:  runInput,
			Output: runOutput,
			Limit:  limit,
			DryRun: runDryRun,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		return writeRunResult(os.Stdout, result, runDryRun)
	},
}

// sessionRange parses the date flags. The end defaults to today and the
// start to a week before the end.
func sessionRange(startFlag, endFlag string, now time.Time) (time.Time, time.Time, error) {
	end := model.Day(now)
	if strings.TrimSpace(endFlag) != "" {
		t, err := dateparse.ParseIn(endFlag, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --end-date %q", endFlag)
		}
		end = model.Day(t)
	}
	start := end.AddDate(0, 0, -7)
	if strings.TrimSpace(startFlag) != "" {
		t, err := dateparse.ParseIn(startFlag, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --start-date %q", startFlag)
		}
		start = model.Day(t)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, eris.Errorf("start date %s is after end date %s",
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return start, end, nil
}

// writeRunResult prints the session summary, plus every record on a dry run.
func writeRunResult(w io.Writer, result *pipeline.Result, withRecords bool) error {
	out := struct {
		RunID   string                  `json:"run_id,omitempty"`
		Summary model.RunResult         `json:"summary"`
		Written int                     `json:"written"`
		Records []model.MilestoneRecord `json:"records,omitempty"`
	}{
		RunID:   result.RunID,
		Summary: result.Summary,
		Written: result.Written,
	}
	if withRecords {
		out.Records = result.Records
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	runCmd.Flags().StringVar(&runPlayer, "player", "", "player name (required)")
	runCmd.Flags().StringVar(&runStartDate, "start-date", "", "first day to harvest (default: a week before end)")
	runCmd.Flags().StringVar(&runEndDate, "end-date", "", "last day to harvest (default: today)")
	runCmd.Flags().StringVar(&runInput, "input", "posts", "JSONL file or directory with one file per search query")
	runCmd.Flags().StringVar(&runOutput, "output", "", "CSV path (default: <output.dir>/<player>_milestones.csv)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max posts per query (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print records without writing CSV or recording the run")
	_ = runCmd.MarkFlagRequired("player")
	rootCmd.AddCommand(runCmd)
}
