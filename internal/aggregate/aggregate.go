// Package aggregate merges milestone records found by overlapping searches
// into one consolidated set.
package aggregate

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/dedup"
	"github.com/fanbasehq/harvest-cli/internal/metrics"
	"github.com/fanbasehq/harvest-cli/internal/model"
)

// ErrBatchMismatch is returned when a batch's records and origins do not
// pair up one-to-one.
var ErrBatchMismatch = eris.New("aggregate: records and origins length mismatch")

// Batch is the output of one search path. Origins[i] is the post that
// Records[i] was extracted from.
type Batch struct {
	Records []model.MilestoneRecord
	Origins []model.SourcePost
}

// ResolveHook runs between same-origin and semantic dedup, typically to
// resolve dates. It may mutate records in place but must not reorder them.
type ResolveHook func(ctx context.Context, records []model.MilestoneRecord, origins []model.SourcePost) error

// Aggregator remembers which origin posts it has already counted. Reuse one
// per session and call Reset before starting another. Aggregate calls must
// not overlap.
type Aggregator struct {
	dedup *dedup.Deduplicator
	log   *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an Aggregator.
func New(d *dedup.Deduplicator) *Aggregator {
	return &Aggregator{dedup: d, log: zap.L(), seen: make(map[string]struct{})}
}

// Reset forgets every origin seen so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = make(map[string]struct{})
}

// Seen reports how many distinct origin posts have been counted.
func (a *Aggregator) Seen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// Aggregate drops records whose origin post was already counted, runs hook
// over the survivors, then consolidates semantic duplicates across all
// batches.
func (a *Aggregator) Aggregate(ctx context.Context, batches []Batch, hook ResolveHook) (model.AggregationResult, error) {
	var res model.AggregationResult
	for i, b := range batches {
		if len(b.Records) != len(b.Origins) {
			return res, eris.Wrapf(ErrBatchMismatch, "batch %d: %d records, %d origins", i, len(b.Records), len(b.Origins))
		}
	}

	var records []model.MilestoneRecord
	var origins []model.SourcePost
	a.mu.Lock()
	for _, b := range batches {
		// Several records may come from one post; they are all kept. Only a
		// post already counted by an earlier batch is dropped.
		fresh := make(map[string]struct{})
		for i, rec := range b.Records {
			res.TotalProcessed++
			id := b.Origins[i].ID
			if id == "" {
				id = rec.SourcePostID
			}
			if _, dup := a.seen[id]; dup && id != "" {
				if _, inBatch := fresh[id]; !inBatch {
					res.SameOriginDropped++
					continue
				}
			}
			if id != "" {
				a.seen[id] = struct{}{}
				fresh[id] = struct{}{}
			}
			records = append(records, rec)
			origins = append(origins, b.Origins[i])
		}
	}
	a.mu.Unlock()
	metrics.AddDuplicatesRemoved("same_origin", res.SameOriginDropped)

	if hook != nil && len(records) > 0 {
		if err := hook(ctx, records, origins); err != nil {
			if ctx.Err() != nil {
				return res, eris.Wrap(err, "aggregate: resolve hook")
			}
			a.log.Warn("aggregate: resolve hook failed, continuing", zap.Error(err))
		}
	}

	kept, groups, removed := a.dedup.Consolidate(records)
	metrics.AddDuplicatesRemoved("semantic", removed)

	res.Records = kept
	res.Origins = make([]model.SourcePost, len(kept))
	for i, g := range groups {
		// Origins pair positionally with records, so the kept record's own
		// post is at its index regardless of what SourcePostID says.
		res.Origins[i] = origins[a.dedup.Representative(records, g)]
	}
	res.DuplicatesRemoved = res.SameOriginDropped + removed

	a.log.Info("aggregate: consolidated",
		zap.Int("processed", res.TotalProcessed),
		zap.Int("same_origin_dropped", res.SameOriginDropped),
		zap.Int("semantic_removed", removed),
		zap.Int("kept", len(kept)),
	)
	return res, nil
}
