package store

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

// Calendar cache kinds.
const (
	KindGameLog   = "game_log"
	KindPreseason = "preseason"
	KindRoster    = "roster"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = eris.New("run not found")

// CalendarEntry is a cached upstream payload keyed by (kind, key, season).
type CalendarEntry struct {
	Kind      string
	Key       string
	Season    int
	Payload   []byte
	FetchedAt time.Time
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Player string          `json:"player,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// CalendarCache persists schedule and game-log payloads. Freshness is the
// caller's decision, based on FetchedAt.
type CalendarCache interface {
	GetCalendarEntry(ctx context.Context, kind, key string, season int) (*CalendarEntry, error)
	SetCalendarEntry(ctx context.Context, kind, key string, season int, payload []byte) error
}

// RunStore records harvest sessions.
type RunStore interface {
	CreateRun(ctx context.Context, player string, start, end time.Time) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
}

// Store is the full persistence interface.
type Store interface {
	CalendarCache
	RunStore

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// newRunID returns a time-sortable run identifier.
func newRunID() string {
	return ulid.Make().String()
}
