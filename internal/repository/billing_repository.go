package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

// BillingRepository owns the money state of enrollments: the ledger
// rows and their append-only payment journal.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs the repository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

const ledgerColumns = "id, enrollment_id, total_due, amount_paid, amount_remaining, registration_fee_paid, book_fee_paid, status, created_at, updated_at"

const paymentColumns = "id, ledger_id, amount, payment_date, method, category, reference, recorded_by, notes, created_at"

// FindLedger returns a ledger by its ID.
func (r *BillingRepository) FindLedger(ctx context.Context, id string) (*models.BillingLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM billing_ledgers WHERE id = $1", ledgerColumns)
	var ledger models.BillingLedger
	if err := r.db.GetContext(ctx, &ledger, query, id); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// FindLedgerByEnrollment returns the 1:1 ledger of an enrollment.
func (r *BillingRepository) FindLedgerByEnrollment(ctx context.Context, enrollmentID string) (*models.BillingLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM billing_ledgers WHERE enrollment_id = $1", ledgerColumns)
	var ledger models.BillingLedger
	if err := r.db.GetContext(ctx, &ledger, query, enrollmentID); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// FindLedgerDetail returns a ledger with enrollment context and its journal.
func (r *BillingRepository) FindLedgerDetail(ctx context.Context, id string) (*models.LedgerDetail, error) {
	const query = `SELECT bl.id, bl.enrollment_id, bl.total_due, bl.amount_paid, bl.amount_remaining,
        bl.registration_fee_paid, bl.book_fee_paid, bl.status, bl.created_at, bl.updated_at,
        s.full_name AS student_name, w.name AS wave_name
        FROM billing_ledgers bl
        JOIN enrollments e ON e.id = bl.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN waves w ON w.id = e.wave_id
        WHERE bl.id = $1`
	var detail models.LedgerDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	payments, err := r.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Payments = payments
	return &detail, nil
}

// ListPayments returns the journal of one ledger, oldest first.
func (r *BillingRepository) ListPayments(ctx context.Context, ledgerID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE ledger_id = $1 ORDER BY created_at ASC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, ledgerID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// FindPayment returns one journal entry.
func (r *BillingRepository) FindPayment(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ApplyPayment records a journal entry and folds it into the ledger in
// one transaction. The ledger row is locked first so two concurrent
// payments serialise; the remaining-balance check happens under that
// lock. Derived fields are always recomputed from scratch.
func (r *BillingRepository) ApplyPayment(ctx context.Context, input PaymentInput, ledgerID string) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply payment: %w", err)
	}

	ledger, err := lockLedger(ctx, tx, ledgerID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, err
	}

	if input.Amount.GreaterThan(ledger.AmountRemaining) {
		tx.Rollback() //nolint:errcheck
		return nil, ErrExceedsBalance
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		ID:          uuid.NewString(),
		LedgerID:    ledgerID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Method:      input.Method,
		Category:    input.Category,
		Reference:   input.Reference,
		RecordedBy:  input.RecordedBy,
		Notes:       input.Notes,
		CreatedAt:   now,
	}
	const insertPayment = `INSERT INTO payments (id, ledger_id, amount, payment_date, method, category, reference, recorded_by, notes, created_at)
        VALUES (:id, :ledger_id, :amount, :payment_date, :method, :category, :reference, :recorded_by, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, txErr("insert payment", err)
	}

	newPaid := ledger.AmountPaid.Add(input.Amount)
	newRemaining := ledger.TotalDue.Sub(newPaid)
	registrationPaid := ledger.RegistrationFeePaid || input.Category == models.FeeCategoryRegistration
	bookPaid := ledger.BookFeePaid || input.Category == models.FeeCategoryBook

	if err := updateLedger(ctx, tx, ledgerID, newPaid, newRemaining, registrationPaid, bookPaid, models.DeriveLedgerStatus(newPaid, ledger.TotalDue)); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, fmt.Errorf("commit apply payment: %w", err)
	}
	return payment, nil
}

// VoidPayment deletes a journal entry and compensates the ledger in one
// transaction. Partial application (ledger updated, journal row kept,
// or the reverse) must never be observable.
func (r *BillingRepository) VoidPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin void payment: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, query, paymentID); err != nil {
		tx.Rollback() //nolint:errcheck
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, err
	}

	ledger, err := lockLedger(ctx, tx, payment.LedgerID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, err
	}

	newPaid := ledger.AmountPaid.Sub(payment.Amount)
	newRemaining := ledger.TotalDue.Sub(newPaid)
	registrationPaid := ledger.RegistrationFeePaid && payment.Category != models.FeeCategoryRegistration
	bookPaid := ledger.BookFeePaid && payment.Category != models.FeeCategoryBook

	if err := updateLedger(ctx, tx, ledger.ID, newPaid, newRemaining, registrationPaid, bookPaid, models.DeriveLedgerStatus(newPaid, ledger.TotalDue)); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", paymentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, txErr("delete payment", err)
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return nil, ErrTxRetryable
		}
		return nil, fmt.Errorf("commit void payment: %w", err)
	}
	return &payment, nil
}

func lockLedger(ctx context.Context, tx *sqlx.Tx, id string) (*models.BillingLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM billing_ledgers WHERE id = $1 FOR UPDATE", ledgerColumns)
	var ledger models.BillingLedger
	if err := tx.GetContext(ctx, &ledger, query, id); err != nil {
		return nil, err
	}
	return &ledger, nil
}

func updateLedger(ctx context.Context, tx *sqlx.Tx, id string, paid, remaining decimal.Decimal, registrationPaid, bookPaid bool, status models.LedgerStatus) error {
	const query = `UPDATE billing_ledgers
        SET amount_paid = $2, amount_remaining = $3, registration_fee_paid = $4, book_fee_paid = $5, status = $6, updated_at = NOW()
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, paid, remaining, registrationPaid, bookPaid, status); err != nil {
		return txErr("update billing ledger", err)
	}
	return nil
}
