package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

// LevelRepository handles persistence of fee/duration templates.
type LevelRepository struct {
	db *sqlx.DB
}

// NewLevelRepository constructs the repository.
func NewLevelRepository(db *sqlx.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

const levelColumns = "id, code, name, registration_fee, tuition_fee, book_fee, required_book_count, duration_months, active, created_at, updated_at"

// List returns levels filtered by the provided criteria.
func (r *LevelRepository) List(ctx context.Context, filter models.LevelFilter) ([]models.Level, int, error) {
	base := "FROM levels"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args)+1, len(args)+2))
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d",
		levelColumns, base+clause, size, offset)

	var levels []models.Level
	if err := r.db.SelectContext(ctx, &levels, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list levels: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count levels: %w", err)
	}
	return levels, total, nil
}

// FindByID returns a level by its ID.
func (r *LevelRepository) FindByID(ctx context.Context, id string) (*models.Level, error) {
	query := fmt.Sprintf("SELECT %s FROM levels WHERE id = $1", levelColumns)
	var level models.Level
	if err := r.db.GetContext(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

// Create persists a new level template.
func (r *LevelRepository) Create(ctx context.Context, level *models.Level) error {
	if level.ID == "" {
		level.ID = uuid.NewString()
	}
	if level.RequiredBookCount <= 0 {
		level.RequiredBookCount = 1
	}
	now := time.Now().UTC()
	level.CreatedAt = now
	level.UpdatedAt = now
	const query = `INSERT INTO levels (id, code, name, registration_fee, tuition_fee, book_fee, required_book_count, duration_months, active, created_at, updated_at)
        VALUES (:id, :code, :name, :registration_fee, :tuition_fee, :book_fee, :required_book_count, :duration_months, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, level); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("create level: %w", err)
	}
	return nil
}

// Update applies the non-nil patch fields to a level row.
func (r *LevelRepository) Update(ctx context.Context, id string, patch models.LevelPatch) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Code != nil {
		addSet("code", *patch.Code)
	}
	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.RegistrationFee != nil {
		addSet("registration_fee", *patch.RegistrationFee)
	}
	if patch.TuitionFee != nil {
		addSet("tuition_fee", *patch.TuitionFee)
	}
	if patch.BookFee != nil {
		addSet("book_fee", *patch.BookFee)
	}
	if patch.RequiredBookCount != nil {
		addSet("required_book_count", *patch.RequiredBookCount)
	}
	if patch.DurationMonths != nil {
		addSet("duration_months", *patch.DurationMonths)
	}
	if patch.Active != nil {
		addSet("active", *patch.Active)
	}

	query := fmt.Sprintf("UPDATE levels SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("update level: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a level unless any wave references it. The existence
// check and the delete run in one transaction.
func (r *LevelRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete level: %w", err)
	}

	var refs int
	if err := tx.GetContext(ctx, &refs, "SELECT COUNT(*) FROM waves WHERE level_id = $1", id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("count referencing waves: %w", err)
	}
	if refs > 0 {
		tx.Rollback() //nolint:errcheck
		return ErrLevelReferenced
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM levels WHERE id = $1", id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete level: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete level: %w", err)
	}
	return nil
}
