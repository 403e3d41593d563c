package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

func newLevelMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLevelRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newLevelMock(t)
	defer cleanup()
	repo := NewLevelRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "registration_fee", "tuition_fee", "book_fee", "required_book_count", "duration_months", "active", "created_at", "updated_at"}).
		AddRow("level-1", "N1", "Niveau 1", 20000, 150000, 30000, 1, 3, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM levels WHERE id = \\$1").
		WithArgs("level-1").
		WillReturnRows(rows)

	level, err := repo.FindByID(context.Background(), "level-1")
	require.NoError(t, err)
	assert.Equal(t, "N1", level.Code)
	assert.Equal(t, 1, level.RequiredBookCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLevelRepositoryDeleteReferenced(t *testing.T) {
	db, mock, cleanup := newLevelMock(t)
	defer cleanup()
	repo := NewLevelRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM waves WHERE level_id = \\$1").
		WithArgs("level-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "level-1")
	assert.ErrorIs(t, err, ErrLevelReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLevelRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newLevelMock(t)
	defer cleanup()
	repo := NewLevelRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM waves WHERE level_id = \\$1").
		WithArgs("level-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("DELETE FROM levels WHERE id = \\$1").
		WithArgs("level-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "level-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLevelRepositoryCreateDefaultsBookCount(t *testing.T) {
	db, mock, cleanup := newLevelMock(t)
	defer cleanup()
	repo := NewLevelRepository(db)

	mock.ExpectExec("INSERT INTO levels").
		WillReturnResult(sqlmock.NewResult(1, 1))

	level := &models.Level{Code: "N2", Name: "Niveau 2", Active: true}
	err := repo.Create(context.Background(), level)
	require.NoError(t, err)
	assert.Equal(t, 1, level.RequiredBookCount)
	assert.NotEmpty(t, level.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
