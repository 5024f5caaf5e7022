package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, player, start_date, end_date, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "player", "start_date", "end_date", "status", "result", "error", "created_at", "updated_at"}).
		AddRow("01J9Z", "Caitlin Clark", now, now, model.RunStatusComplete, []byte(`{"milestones":3,"unresolved":1}`), "", now, now)
	mock.ExpectQuery(`FROM runs WHERE id = \$1`).WithArgs("01J9Z").WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "01J9Z")
	require.NoError(t, err)
	assert.Equal(t, "Caitlin Clark", run.Player)
	require.NotNil(t, run.Result)
	assert.Equal(t, 3, run.Result.Milestones)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCalendarEntry_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload, fetched_at FROM calendar_cache`).
		WithArgs(KindPreseason, "5", 2024).
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.GetCalendarEntry(context.Background(), KindPreseason, "5", 2024)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCalendarEntry_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(KindGameLog, "caitlin clark", 2024, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCalendarEntry(context.Background(), KindGameLog, "caitlin clark", 2024, []byte(`[]`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), string(model.RunStatusComplete), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", &model.RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_BuildsFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"id", "player", "start_date", "end_date", "status", "result", "error", "created_at", "updated_at"})
	mock.ExpectQuery(`WHERE true AND status = \$1 AND player = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(string(model.RunStatusFailed), "Caitlin Clark", 5, 10).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusFailed,
		Player: "Caitlin Clark",
		Limit:  5,
		Offset: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
