// Package pipeline runs one harvest session: ingest posts, classify them,
// aggregate and resolve the milestones, export CSV and record the run.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/aggregate"
	"github.com/fanbasehq/harvest-cli/internal/export"
	"github.com/fanbasehq/harvest-cli/internal/ingest"
	"github.com/fanbasehq/harvest-cli/internal/metrics"
	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/roster"
	"github.com/fanbasehq/harvest-cli/internal/store"
)

// Classifier turns posts into milestone records paired with their posts.
type Classifier interface {
	ClassifyAll(ctx context.Context, posts []model.SourcePost, player string) ([]model.MilestoneRecord, []model.SourcePost, error)
}

// Resolver assigns dates to records in place.
type Resolver interface {
	ResolveAll(ctx context.Context, records []model.MilestoneRecord, posts []model.SourcePost, player string) error
}

// Roster supplies search accounts and name variations.
type Roster interface {
	Accounts() []string
	Lookup(name string) (roster.Player, bool)
}

// Request describes one session.
type Request struct {
	Player string
	Start  time.Time
	End    time.Time

	// Input is a JSONL file or a directory with one file per query.
	Input string
	// Output is the CSV path. Empty means Options.OutputDir/<player>_milestones.csv.
	Output string
	// Limit caps posts read per query; zero means no cap.
	Limit int
	// DryRun skips the CSV write and the run record.
	DryRun bool
}

// Options configures a Pipeline.
type Options struct {
	OutputDir string
	Submitter export.Submitter
}

// Result summarizes a finished session.
type Result struct {
	RunID   string                  `json:"run_id,omitempty"`
	Records []model.MilestoneRecord `json:"records"`
	Origins []model.SourcePost      `json:"-"`
	Summary model.RunResult         `json:"summary"`
	Written int                     `json:"written"`
}

// Pipeline wires the session stages together.
type Pipeline struct {
	runs       store.RunStore
	roster     Roster
	classifier Classifier
	resolver   Resolver
	aggregator *aggregate.Aggregator
	opts       Options
	now        func() time.Time
}

// New creates a new Pipeline with all dependencies.
func New(
	runs store.RunStore,
	players Roster,
	classifier Classifier,
	resolver Resolver,
	aggregator *aggregate.Aggregator,
	opts Options,
) *Pipeline {
	return &Pipeline{
		runs:       runs,
		roster:     players,
		classifier: classifier,
		resolver:   resolver,
		aggregator: aggregator,
		opts:       opts,
		now:        time.Now,
	}
}

// Run executes a full session for one player.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	name, variations := p.searchNames(req.Player)
	log := zap.L().With(zap.String("player", name),
		zap.Time("start", req.Start), zap.Time("end", req.End), zap.Bool("dry_run", req.DryRun))
	log.Info("pipeline: starting session")

	started := p.now()
	res := &Result{}

	if !req.DryRun {
		run, err := p.runs.CreateRun(ctx, name, req.Start, req.End)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		res.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	err := p.session(ctx, log, req, name, variations, res)
	elapsed := p.now().Sub(started).Seconds()
	if err != nil {
		metrics.ObserveRun(string(model.RunStatusFailed), elapsed)
		if res.RunID != "" {
			// Record the failure even when ctx is already cancelled.
			if failErr := p.runs.FailRun(context.WithoutCancel(ctx), res.RunID, err.Error()); failErr != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
			}
		}
		log.Error("pipeline: session failed", zap.Error(err))
		return res, err
	}

	if res.RunID != "" {
		if err := p.runs.CompleteRun(ctx, res.RunID, &res.Summary); err != nil {
			return res, eris.Wrap(err, "pipeline: complete run")
		}
	}
	metrics.ObserveRun(string(model.RunStatusComplete), elapsed)

	log.Info("pipeline: session complete",
		zap.Int("posts", res.Summary.PostsProcessed),
		zap.Int("milestones", res.Summary.Milestones),
		zap.Int("duplicates_removed", res.Summary.DuplicatesRemoved),
		zap.Int("unresolved", res.Summary.Unresolved),
		zap.Float64("elapsed_secs", elapsed),
	)
	return res, nil
}

func (p *Pipeline) session(ctx context.Context, log *zap.Logger, req Request, name string, variations []string, res *Result) error {
	phase := func(stage string, fn func() error) error {
		start := time.Now()
		err := fn()
		fields := []zap.Field{zap.String("phase", stage), zap.Int64("duration_ms", time.Since(start).Milliseconds())}
		if err != nil {
			log.Error("pipeline: phase failed", append(fields, zap.Error(err))...)
			return err
		}
		log.Info("pipeline: phase complete", fields...)
		return nil
	}

	plan := ingest.Plan(p.roster.Accounts(), variations)
	var results []ingest.Result
	if err := phase("ingest", func() error {
		var err error
		results, err = ingest.Load(ctx, req.Input, plan, ingest.Range{Start: req.Start, End: req.End}, req.Limit)
		return err
	}); err != nil {
		return eris.Wrap(err, "pipeline: ingest")
	}

	var batches []aggregate.Batch
	if err := phase("classify", func() error {
		for _, r := range results {
			res.Summary.PostsProcessed += len(r.Posts)
			if len(r.Posts) == 0 {
				continue
			}
			records, origins, err := p.classifier.ClassifyAll(ctx, r.Posts, name)
			if err != nil {
				return eris.Wrapf(err, "query %q", r.Query.Text())
			}
			batches = append(batches, aggregate.Batch{Records: records, Origins: origins})
		}
		return nil
	}); err != nil {
		return eris.Wrap(err, "pipeline: classify")
	}

	var agg model.AggregationResult
	if err := phase("aggregate", func() error {
		p.aggregator.Reset()
		var err error
		agg, err = p.aggregator.Aggregate(ctx, batches, func(ctx context.Context, records []model.MilestoneRecord, origins []model.SourcePost) error {
			return p.resolver.ResolveAll(ctx, records, origins, name)
		})
		return err
	}); err != nil {
		return eris.Wrap(err, "pipeline: aggregate")
	}
	res.Records = agg.Records
	res.Origins = agg.Origins
	res.Summary.DuplicatesRemoved = agg.DuplicatesRemoved
	res.Summary.Milestones = len(agg.Records)
	summarize(&res.Summary, agg.Records)

	rows, err := export.Rows(agg.Records, agg.Origins, export.Options{Submitter: p.opts.Submitter, Now: p.now})
	if err != nil {
		return eris.Wrap(err, "pipeline: build rows")
	}
	if req.DryRun {
		return nil
	}

	out := req.Output
	if out == "" {
		out = DefaultOutputPath(p.opts.OutputDir, name)
	}
	if err := phase("export", func() error {
		var err error
		res.Written, err = export.WriteFile(out, rows)
		return err
	}); err != nil {
		return eris.Wrap(err, "pipeline: export")
	}
	res.Summary.OutputPath = out
	return nil
}

func (p *Pipeline) searchNames(player string) (string, []string) {
	if pl, ok := p.roster.Lookup(player); ok {
		return pl.Name, pl.SearchVariations()
	}
	name := strings.TrimSpace(player)
	return name, []string{name}
}

func summarize(sum *model.RunResult, records []model.MilestoneRecord) {
	sum.ResolvedBySource = make(map[string]int)
	for i := range records {
		if records[i].NeedsReview() {
			sum.Unresolved++
			continue
		}
		sum.ResolvedBySource[records[i].ResolvedDateSource]++
	}
}

// DefaultOutputPath names the session CSV after the player.
func DefaultOutputPath(dir, player string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(player), "_"))
	if slug == "" {
		slug = "player"
	}
	return filepath.Join(dir, slug+"_milestones.csv")
}
