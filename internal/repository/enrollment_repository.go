package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments together with
// the billing ledgers they own.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// PaymentInput describes an initial payment recorded at enroll time.
type PaymentInput struct {
	Amount      decimal.Decimal
	Category    models.FeeCategory
	Method      string
	PaymentDate time.Time
	Reference   *string
	RecordedBy  *string
	Notes       *string
}

// EnrollParams carries the validated inputs of the atomic enroll unit.
// Status defaults to ACTIVE when empty.
type EnrollParams struct {
	StudentID      string
	WaveID         string
	TotalDue       decimal.Decimal
	Status         models.EnrollmentStatus
	Notes          *string
	InitialPayment *PaymentInput
}

// EnrollResult reports the rows created by EnrollTx.
type EnrollResult struct {
	EnrollmentID string `json:"enrollment_id"`
	LedgerID     string `json:"ledger_id"`
	PaymentID    string `json:"payment_id,omitempty"`
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN waves w ON w.id = e.wave_id
JOIN levels l ON l.id = w.level_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.WaveID != "" {
		conditions = append(conditions, fmt.Sprintf("e.wave_id = $%d", len(args)+1))
		args = append(args, filter.WaveID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"wave_name":    "w.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.wave_id, e.enrolled_at, e.status, e.notes, e.created_at, e.updated_at,
        s.full_name AS student_name, s.phone AS student_phone, w.name AS wave_name, l.name AS level_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, wave_id, enrolled_at, status, notes, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.wave_id, e.enrolled_at, e.status, e.notes, e.created_at, e.updated_at,
        s.full_name AS student_name, s.phone AS student_phone, w.name AS wave_name, l.name AS level_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN waves w ON w.id = e.wave_id
        JOIN levels l ON l.id = w.level_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks whether any enrollment links the student to the wave.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, waveID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND wave_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, waveID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CountActiveByWave derives the enrolled count for capacity checks.
func (r *EnrollmentRepository) CountActiveByWave(ctx context.Context, waveID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE wave_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, waveID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// UpdateStatus updates the lifecycle status of an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EnrollTx runs the atomic enroll unit: lock the wave row, re-check its
// state and capacity under the lock, insert the enrollment, seed its
// ledger and optionally record the initial payment. Everything commits
// or nothing does.
func (r *EnrollmentRepository) EnrollTx(ctx context.Context, params EnrollParams) (*EnrollResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll: %w", err)
	}

	var wave struct {
		CapacityMax *int              `db:"capacity_max"`
		Status      models.WaveStatus `db:"status"`
	}
	if err := tx.GetContext(ctx, &wave, "SELECT capacity_max, status FROM waves WHERE id = $1 FOR UPDATE", params.WaveID); err != nil {
		tx.Rollback() //nolint:errcheck
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, err
	}
	if !wave.Status.OpenForEnrollment() {
		tx.Rollback() //nolint:errcheck
		return nil, ErrWaveClosed
	}
	if wave.CapacityMax != nil {
		var active int
		if err := tx.GetContext(ctx, &active, "SELECT COUNT(*) FROM enrollments WHERE wave_id = $1 AND status = $2", params.WaveID, models.EnrollmentStatusActive); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, txErr("count enrollments under lock", err)
		}
		if active >= *wave.CapacityMax {
			tx.Rollback() //nolint:errcheck
			return nil, ErrCapacityFull
		}
	}

	now := time.Now().UTC()
	result := &EnrollResult{EnrollmentID: uuid.NewString(), LedgerID: uuid.NewString()}

	enrollStatus := params.Status
	if enrollStatus == "" {
		enrollStatus = models.EnrollmentStatusActive
	}

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, wave_id, enrolled_at, status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	if _, err := tx.ExecContext(ctx, insertEnrollment, result.EnrollmentID, params.StudentID, params.WaveID, now, enrollStatus, params.Notes, now); err != nil {
		tx.Rollback() //nolint:errcheck
		if isUniqueViolation(err) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, txErr("insert enrollment", err)
	}

	amountPaid := decimal.Zero
	registrationPaid := false
	bookPaid := false

	if params.InitialPayment != nil {
		if params.InitialPayment.Amount.GreaterThan(params.TotalDue) {
			tx.Rollback() //nolint:errcheck
			return nil, ErrExceedsBalance
		}
		amountPaid = params.InitialPayment.Amount
		registrationPaid = params.InitialPayment.Category == models.FeeCategoryRegistration
		bookPaid = params.InitialPayment.Category == models.FeeCategoryBook
	}

	remaining := params.TotalDue.Sub(amountPaid)
	status := models.DeriveLedgerStatus(amountPaid, params.TotalDue)

	const insertLedger = `INSERT INTO billing_ledgers (id, enrollment_id, total_due, amount_paid, amount_remaining, registration_fee_paid, book_fee_paid, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	if _, err := tx.ExecContext(ctx, insertLedger, result.LedgerID, result.EnrollmentID, params.TotalDue, amountPaid, remaining, registrationPaid, bookPaid, status, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, txErr("seed billing ledger", err)
	}

	if params.InitialPayment != nil {
		payment := params.InitialPayment
		result.PaymentID = uuid.NewString()
		const insertPayment = `INSERT INTO payments (id, ledger_id, amount, payment_date, method, category, reference, recorded_by, notes, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.ExecContext(ctx, insertPayment, result.PaymentID, result.LedgerID, payment.Amount, payment.PaymentDate, payment.Method, payment.Category, payment.Reference, payment.RecordedBy, payment.Notes, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, txErr("insert initial payment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, fmt.Errorf("commit enroll: %w", err)
	}
	return result, nil
}

// WithdrawTx removes an enrollment with its ledger and journal in
// dependency order inside one transaction.
func (r *EnrollmentRepository) WithdrawTx(ctx context.Context, waveID, studentID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin withdraw: %w", err)
	}

	var enrollmentID string
	if err := tx.GetContext(ctx, &enrollmentID, "SELECT id FROM enrollments WHERE wave_id = $1 AND student_id = $2 FOR UPDATE", waveID, studentID); err != nil {
		tx.Rollback() //nolint:errcheck
		if isRetryable(err) {
			return ErrTxRetryable
		}
		return err
	}

	var ledgerID string
	err = tx.GetContext(ctx, &ledgerID, "SELECT id FROM billing_ledgers WHERE enrollment_id = $1 FOR UPDATE", enrollmentID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE ledger_id = $1", ledgerID); err != nil {
			tx.Rollback() //nolint:errcheck
			return txErr("delete payments", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM billing_ledgers WHERE id = $1", ledgerID); err != nil {
			tx.Rollback() //nolint:errcheck
			return txErr("delete billing ledger", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// enrollment without a ledger should not happen, but withdraw
		// must still succeed
	default:
		tx.Rollback() //nolint:errcheck
		return txErr("load billing ledger", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", enrollmentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return txErr("delete enrollment", err)
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return ErrTxRetryable
		}
		return fmt.Errorf("commit withdraw: %w", err)
	}
	return nil
}
