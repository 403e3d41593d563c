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

// WaveRepository handles persistence of waves and their schedule slots.
type WaveRepository struct {
	db *sqlx.DB
}

// NewWaveRepository constructs the repository.
func NewWaveRepository(db *sqlx.DB) *WaveRepository {
	return &WaveRepository{db: db}
}

const waveColumns = "id, name, level_id, teacher_id, room_id, start_date, end_date, capacity_max, status, notes, created_at, updated_at"

const waveDetailSelect = `SELECT w.id, w.name, w.level_id, w.teacher_id, w.room_id, w.start_date, w.end_date,
        w.capacity_max, w.status, w.notes, w.created_at, w.updated_at,
        l.code AS level_code, l.name AS level_name, u.full_name AS teacher_name, rm.name AS room_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.wave_id = w.id AND e.status = 'ACTIVE') AS enrolled_count
        FROM waves w
        JOIN levels l ON l.id = w.level_id
        LEFT JOIN users u ON u.id = w.teacher_id
        LEFT JOIN rooms rm ON rm.id = w.room_id`

// List returns waves with display context and derived enrollment counts.
func (r *WaveRepository) List(ctx context.Context, filter models.WaveFilter) ([]models.WaveDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.LevelID != "" {
		conditions = append(conditions, fmt.Sprintf("w.level_id = $%d", len(args)+1))
		args = append(args, filter.LevelID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("w.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("w.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("w.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "w.start_date",
		"name":       "w.name",
		"status":     "w.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "w.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", waveDetailSelect, clause, orderBy, order, size, offset)

	var waves []models.WaveDetail
	if err := r.db.SelectContext(ctx, &waves, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list waves: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM waves w%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count waves: %w", err)
	}
	return waves, total, nil
}

// FindByID returns a wave by its ID.
func (r *WaveRepository) FindByID(ctx context.Context, id string) (*models.Wave, error) {
	query := fmt.Sprintf("SELECT %s FROM waves WHERE id = $1", waveColumns)
	var wave models.Wave
	if err := r.db.GetContext(ctx, &wave, query, id); err != nil {
		return nil, err
	}
	return &wave, nil
}

// FindDetailByID returns a wave with context and schedule entries.
func (r *WaveRepository) FindDetailByID(ctx context.Context, id string) (*models.WaveDetail, error) {
	query := waveDetailSelect + " WHERE w.id = $1"
	var detail models.WaveDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	schedule, err := r.ListSchedules(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Schedule = schedule
	return &detail, nil
}

// ListSchedules returns the (day, slot) entries of a wave.
func (r *WaveRepository) ListSchedules(ctx context.Context, waveID string) ([]models.WaveSchedule, error) {
	const query = `SELECT id, wave_id, day_id, time_slot_id FROM wave_schedules WHERE wave_id = $1`
	var schedule []models.WaveSchedule
	if err := r.db.SelectContext(ctx, &schedule, query, waveID); err != nil {
		return nil, fmt.Errorf("list wave schedules: %w", err)
	}
	return schedule, nil
}

// CountScheduleConflicts counts active waves holding the same
// (resource, day, slot) combination, optionally excluding one wave.
func (r *WaveRepository) CountScheduleConflicts(ctx context.Context, kind models.ResourceKind, resourceID, dayID, slotID, excludeWaveID string) (int, error) {
	column := "room_id"
	if kind == models.ResourceTeacher {
		column = "teacher_id"
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM wave_schedules
        WHERE active AND %s = $1 AND day_id = $2 AND time_slot_id = $3`, column)
	args := []interface{}{resourceID, dayID, slotID}
	if excludeWaveID != "" {
		query += fmt.Sprintf(" AND wave_id <> $%d", len(args)+1)
		args = append(args, excludeWaveID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count schedule conflicts: %w", err)
	}
	return count, nil
}

// Create persists a wave and its schedule entries in one transaction.
// The partial unique indexes on wave_schedules are the authoritative
// double-booking guard; violations surface as ErrScheduleTaken.
func (r *WaveRepository) Create(ctx context.Context, wave *models.Wave, schedule []models.WaveScheduleEntry) error {
	if wave.ID == "" {
		wave.ID = uuid.NewString()
	}
	if wave.Status == "" {
		wave.Status = models.WaveStatusPlanned
	}
	now := time.Now().UTC()
	wave.CreatedAt = now
	wave.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create wave: %w", err)
	}

	const insertWave = `INSERT INTO waves (id, name, level_id, teacher_id, room_id, start_date, end_date, capacity_max, status, notes, created_at, updated_at)
        VALUES (:id, :name, :level_id, :teacher_id, :room_id, :start_date, :end_date, :capacity_max, :status, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertWave, wave); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create wave: %w", err)
	}

	if err := insertSchedules(ctx, tx, wave, schedule); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrScheduleTaken
		}
		return fmt.Errorf("commit create wave: %w", err)
	}
	return nil
}

// Update applies the patch and, when a schedule is provided, replaces
// all schedule entries. Runs in one transaction so the denormalised
// room/teacher columns on wave_schedules stay in sync.
func (r *WaveRepository) Update(ctx context.Context, id string, patch models.WavePatch) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update wave: %w", err)
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.TeacherID != nil {
		addSet("teacher_id", nullableID(*patch.TeacherID))
	}
	if patch.RoomID != nil {
		addSet("room_id", nullableID(*patch.RoomID))
	}
	if patch.StartDate != nil {
		addSet("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		addSet("end_date", *patch.EndDate)
	}
	if patch.CapacityMax != nil {
		addSet("capacity_max", *patch.CapacityMax)
	}
	if patch.Notes != nil {
		addSet("notes", *patch.Notes)
	}

	query := fmt.Sprintf("UPDATE waves SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update wave: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	var wave models.Wave
	if err := tx.GetContext(ctx, &wave, fmt.Sprintf("SELECT %s FROM waves WHERE id = $1", waveColumns), id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("reload wave: %w", err)
	}

	if patch.Schedule != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM wave_schedules WHERE wave_id = $1", id); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("clear wave schedules: %w", err)
		}
		if err := insertSchedules(ctx, tx, &wave, patch.Schedule); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	} else if patch.TeacherID != nil || patch.RoomID != nil {
		const sync = `UPDATE wave_schedules SET room_id = $2, teacher_id = $3 WHERE wave_id = $1`
		if _, err := tx.ExecContext(ctx, sync, id, wave.RoomID, wave.TeacherID); err != nil {
			tx.Rollback() //nolint:errcheck
			if isUniqueViolation(err) {
				return ErrScheduleTaken
			}
			return fmt.Errorf("sync wave schedules: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrScheduleTaken
		}
		return fmt.Errorf("commit update wave: %w", err)
	}
	return nil
}

// UpdateStatus moves a wave through its lifecycle and keeps the
// schedule activity flag aligned so closed waves stop blocking slots.
func (r *WaveRepository) UpdateStatus(ctx context.Context, id string, status models.WaveStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update wave status: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE waves SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update wave status: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, "UPDATE wave_schedules SET active = $2 WHERE wave_id = $1", id, status.OpenForEnrollment()); err != nil {
		tx.Rollback() //nolint:errcheck
		if isUniqueViolation(err) {
			return ErrScheduleTaken
		}
		return fmt.Errorf("sync schedule activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrScheduleTaken
		}
		return fmt.Errorf("commit update wave status: %w", err)
	}
	return nil
}

func insertSchedules(ctx context.Context, tx *sqlx.Tx, wave *models.Wave, schedule []models.WaveScheduleEntry) error {
	const query = `INSERT INTO wave_schedules (id, wave_id, day_id, time_slot_id, room_id, teacher_id, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	active := wave.Status.OpenForEnrollment()
	for _, entry := range schedule {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), wave.ID, entry.DayID, entry.TimeSlotID, wave.RoomID, wave.TeacherID, active); err != nil {
			if isUniqueViolation(err) {
				return ErrScheduleTaken
			}
			return fmt.Errorf("insert wave schedule: %w", err)
		}
	}
	return nil
}

func nullableID(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}
