package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

func newWaveMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWaveRepositoryCountScheduleConflicts(t *testing.T) {
	db, mock, cleanup := newWaveMock(t)
	defer cleanup()
	repo := NewWaveRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM wave_schedules\\s+WHERE active AND room_id = \\$1 AND day_id = \\$2 AND time_slot_id = \\$3").
		WithArgs("room-1", "day-1", "slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountScheduleConflicts(context.Background(), models.ResourceRoom, "room-1", "day-1", "slot-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaveRepositoryCountScheduleConflictsExcludesSelf(t *testing.T) {
	db, mock, cleanup := newWaveMock(t)
	defer cleanup()
	repo := NewWaveRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM wave_schedules\\s+WHERE active AND teacher_id = \\$1 AND day_id = \\$2 AND time_slot_id = \\$3 AND wave_id <> \\$4").
		WithArgs("teacher-1", "day-1", "slot-1", "wave-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountScheduleConflicts(context.Background(), models.ResourceTeacher, "teacher-1", "day-1", "slot-1", "wave-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaveRepositoryUpdateStatusSyncsScheduleActivity(t *testing.T) {
	db, mock, cleanup := newWaveMock(t)
	defer cleanup()
	repo := NewWaveRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE waves SET status = \\$2, updated_at = NOW\\(\\) WHERE id = \\$1").
		WithArgs("wave-1", models.WaveStatusCompleted).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE wave_schedules SET active = \\$2 WHERE wave_id = \\$1").
		WithArgs("wave-1", false).
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "wave-1", models.WaveStatusCompleted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaveRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newWaveMock(t)
	defer cleanup()
	repo := NewWaveRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE waves SET status = \\$2, updated_at = NOW\\(\\) WHERE id = \\$1").
		WithArgs("missing", models.WaveStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), "missing", models.WaveStatusCancelled)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
