package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level is a fee and duration template for one training programme.
type Level struct {
	ID                string          `db:"id" json:"id"`
	Code              string          `db:"code" json:"code"`
	Name              string          `db:"name" json:"name"`
	RegistrationFee   decimal.Decimal `db:"registration_fee" json:"registration_fee"`
	TuitionFee        decimal.Decimal `db:"tuition_fee" json:"tuition_fee"`
	BookFee           decimal.Decimal `db:"book_fee" json:"book_fee"`
	RequiredBookCount int             `db:"required_book_count" json:"required_book_count"`
	DurationMonths    int             `db:"duration_months" json:"duration_months"`
	Active            bool            `db:"active" json:"active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// FeeSchedule is the billing seed derived from a level.
type FeeSchedule struct {
	RegistrationFee   decimal.Decimal `json:"registration_fee"`
	TuitionFee        decimal.Decimal `json:"tuition_fee"`
	BookFee           decimal.Decimal `json:"book_fee"`
	RequiredBookCount int             `json:"required_book_count"`
	DurationMonths    int             `json:"duration_months"`
}

// TotalDue sums the fee components a new ledger starts from.
func (f FeeSchedule) TotalDue() decimal.Decimal {
	books := f.BookFee.Mul(decimal.NewFromInt(int64(f.RequiredBookCount)))
	return f.RegistrationFee.Add(f.TuitionFee).Add(books)
}

// LevelPatch lists the fields an update may touch. Nil means untouched.
type LevelPatch struct {
	Code              *string          `json:"code,omitempty"`
	Name              *string          `json:"name,omitempty"`
	RegistrationFee   *decimal.Decimal `json:"registration_fee,omitempty"`
	TuitionFee        *decimal.Decimal `json:"tuition_fee,omitempty"`
	BookFee           *decimal.Decimal `json:"book_fee,omitempty"`
	RequiredBookCount *int             `json:"required_book_count,omitempty"`
	DurationMonths    *int             `json:"duration_months,omitempty"`
	Active            *bool            `json:"active,omitempty"`
}

// LevelFilter encapsulates list filters for levels.
type LevelFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
