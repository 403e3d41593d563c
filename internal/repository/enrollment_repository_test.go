package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

func newEnrollmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func waveLockRows(capacity int, status models.WaveStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"capacity_max", "status"}).AddRow(capacity, string(status))
}

func TestEnrollmentRepositoryEnrollTx(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity_max, status FROM waves WHERE id = \\$1 FOR UPDATE").
		WithArgs("wave-1").
		WillReturnRows(waveLockRows(20, models.WaveStatusPlanned))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments WHERE wave_id = \\$1 AND status = \\$2").
		WithArgs("wave-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO billing_ledgers").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := repo.EnrollTx(context.Background(), EnrollParams{
		StudentID: "student-1",
		WaveID:    "wave-1",
		TotalDue:  decimal.NewFromInt(200000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.EnrollmentID)
	assert.NotEmpty(t, result.LedgerID)
	assert.Empty(t, result.PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollTxWithInitialPayment(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity_max, status FROM waves WHERE id = \\$1 FOR UPDATE").
		WithArgs("wave-1").
		WillReturnRows(waveLockRows(20, models.WaveStatusInProgress))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO billing_ledgers").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := repo.EnrollTx(context.Background(), EnrollParams{
		StudentID: "student-1",
		WaveID:    "wave-1",
		TotalDue:  decimal.NewFromInt(200000),
		InitialPayment: &PaymentInput{
			Amount:      decimal.NewFromInt(20000),
			Category:    models.FeeCategoryRegistration,
			Method:      "CASH",
			PaymentDate: time.Now(),
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollTxWaveClosed(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity_max, status FROM waves WHERE id = \\$1 FOR UPDATE").
		WithArgs("wave-1").
		WillReturnRows(waveLockRows(20, models.WaveStatusCompleted))
	mock.ExpectRollback()

	_, err := repo.EnrollTx(context.Background(), EnrollParams{
		StudentID: "student-1",
		WaveID:    "wave-1",
		TotalDue:  decimal.NewFromInt(200000),
	})
	assert.ErrorIs(t, err, ErrWaveClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollTxCapacityFull(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity_max, status FROM waves WHERE id = \\$1 FOR UPDATE").
		WithArgs("wave-1").
		WillReturnRows(waveLockRows(10, models.WaveStatusPlanned))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectRollback()

	_, err := repo.EnrollTx(context.Background(), EnrollParams{
		StudentID: "student-1",
		WaveID:    "wave-1",
		TotalDue:  decimal.NewFromInt(200000),
	})
	assert.ErrorIs(t, err, ErrCapacityFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollTxSerializationFailure(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity_max, status FROM waves WHERE id = \\$1 FOR UPDATE").
		WithArgs("wave-1").
		WillReturnRows(waveLockRows(20, models.WaveStatusPlanned))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	_, err := repo.EnrollTx(context.Background(), EnrollParams{
		StudentID: "student-1",
		WaveID:    "wave-1",
		TotalDue:  decimal.NewFromInt(200000),
	})
	assert.ErrorIs(t, err, ErrTxRetryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments WHERE student_id = \\$1 AND wave_id = \\$2").
		WithArgs("student-1", "wave-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "student-1", "wave-1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM enrollments WHERE student_id = \\$1 AND wave_id = \\$2").
		WithArgs("student-1", "wave-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err = repo.Exists(context.Background(), "student-1", "wave-2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryWithdrawTx(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM enrollments WHERE wave_id = \\$1 AND student_id = \\$2 FOR UPDATE").
		WithArgs("wave-1", "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enrollment-1"))
	mock.ExpectQuery("SELECT id FROM billing_ledgers WHERE enrollment_id = \\$1 FOR UPDATE").
		WithArgs("enrollment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ledger-1"))
	mock.ExpectExec("DELETE FROM payments WHERE ledger_id = \\$1").
		WithArgs("ledger-1").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("DELETE FROM billing_ledgers WHERE id = \\$1").
		WithArgs("ledger-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM enrollments WHERE id = \\$1").
		WithArgs("enrollment-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.WithdrawTx(context.Background(), "wave-1", "student-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
