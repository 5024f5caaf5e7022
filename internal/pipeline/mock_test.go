package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fanbasehq/harvest-cli/internal/model"
	"github.com/fanbasehq/harvest-cli/internal/store"
)

// --- RunStore Mock ---

type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) CreateRun(ctx context.Context, player string, start, end time.Time) (*model.Run, error) {
	args := m.Called(ctx, player, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRunStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockRunStore) FailRun(ctx context.Context, runID string, reason string) error {
	return m.Called(ctx, runID, reason).Error(0)
}

func (m *mockRunStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRunStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveAll(ctx context.Context, records []model.MilestoneRecord, posts []model.SourcePost, player string) error {
	return m.Called(ctx, records, posts, player).Error(0)
}

// --- Classifier Fake ---

// fakeClassifier turns every post whose id is in milestones into a record.
type fakeClassifier struct {
	milestones map[string]model.MilestoneRecord
	err        error
	calls      [][]string
}

func (f *fakeClassifier) ClassifyAll(_ context.Context, posts []model.SourcePost, player string) ([]model.MilestoneRecord, []model.SourcePost, error) {
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, nil, f.err
	}

	var records []model.MilestoneRecord
	var origins []model.SourcePost
	for _, p := range posts {
		rec, ok := f.milestones[p.ID]
		if !ok {
			continue
		}
		rec.PlayerName = player
		rec.SourcePostID = p.ID
		rec.SourceURL = p.URL
		records = append(records, rec)
		origins = append(origins, p)
	}
	return records, origins, nil
}
