package trend

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/domain"
)

func TestIngestRun_HappyPathCommitsAllThreeStatementsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	run := sampleRun("run-1")
	run.Triggered = []domain.TriggeredRule{
		{RunID: "run-1", CheckID: "cache_hit_ratio", Severity: domain.SeverityCritical, Score: 90, Reason: "low hit ratio"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trend_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM trend_triggered_rules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO trend_triggered_rules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trend_runs SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewStore(db, nil)
	err = store.IngestRun(context.Background(), run, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRun_FailureInSaveTriggeredRulesRollsBackAndReturnsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	run := sampleRun("run-2")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trend_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM trend_triggered_rules").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	store := NewStore(db, nil)
	err = store.IngestRun(context.Background(), run, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save_triggered_rules")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRun_BeginTxFailureReturnsErrorWithoutPanicking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	store := NewStore(db, nil)
	err = store.IngestRun(context.Background(), sampleRun("run-3"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
}

func TestIngestRun_NilInfrastructureMetadataDefaultsToEmptyObject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trend_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM trend_triggered_rules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trend_runs SET").WithArgs(
		"run-4", 0, 0, "primary", 0, []byte("{}"), 0,
	).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewStore(db, nil)
	run := sampleRun("run-4")
	err = store.IngestRun(context.Background(), run, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
