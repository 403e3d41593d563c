package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStatus is derived from (amount_paid, total_due), never set
// independently.
type LedgerStatus string

// Possible ledger statuses.
const (
	LedgerStatusUnpaid  LedgerStatus = "UNPAID"
	LedgerStatusPartial LedgerStatus = "PARTIAL"
	LedgerStatusPaid    LedgerStatus = "PAID"
)

// DeriveLedgerStatus recomputes the ledger status from scratch.
// Paid when amount_paid >= total_due, unpaid when nothing was paid,
// partial in between.
func DeriveLedgerStatus(amountPaid, totalDue decimal.Decimal) LedgerStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(totalDue):
		return LedgerStatusPaid
	case amountPaid.IsPositive():
		return LedgerStatusPartial
	default:
		return LedgerStatusUnpaid
	}
}

// FeeCategory classifies a payment against a fee component.
type FeeCategory string

// Possible fee categories.
const (
	FeeCategoryRegistration FeeCategory = "REGISTRATION"
	FeeCategoryTuition      FeeCategory = "TUITION"
	FeeCategoryBook         FeeCategory = "BOOK"
)

// BillingLedger holds the money state of one enrollment.
// amount_paid + amount_remaining == total_due at all times.
type BillingLedger struct {
	ID                  string          `db:"id" json:"id"`
	EnrollmentID        string          `db:"enrollment_id" json:"enrollment_id"`
	TotalDue            decimal.Decimal `db:"total_due" json:"total_due"`
	AmountPaid          decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	AmountRemaining     decimal.Decimal `db:"amount_remaining" json:"amount_remaining"`
	RegistrationFeePaid bool            `db:"registration_fee_paid" json:"registration_fee_paid"`
	BookFeePaid         bool            `db:"book_fee_paid" json:"book_fee_paid"`
	Status              LedgerStatus    `db:"status" json:"status"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// Payment is one append-only journal entry against a ledger.
type Payment struct {
	ID          string          `db:"id" json:"id"`
	LedgerID    string          `db:"ledger_id" json:"ledger_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate time.Time       `db:"payment_date" json:"payment_date"`
	Method      string          `db:"method" json:"method"`
	Category    FeeCategory     `db:"category" json:"category"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	RecordedBy  *string         `db:"recorded_by" json:"recorded_by,omitempty"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// LedgerDetail bundles a ledger with its journal and enrollment context.
type LedgerDetail struct {
	BillingLedger
	StudentName string    `db:"student_name" json:"student_name"`
	WaveName    string    `db:"wave_name" json:"wave_name"`
	Payments    []Payment `json:"payments"`
}
