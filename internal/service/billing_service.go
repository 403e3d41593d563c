package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
	"github.com/vokatra/cfp-admin-api/pkg/export"
	"github.com/vokatra/cfp-admin-api/pkg/storage"
)

type billingRepository interface {
	FindLedger(ctx context.Context, id string) (*models.BillingLedger, error)
	FindLedgerByEnrollment(ctx context.Context, enrollmentID string) (*models.BillingLedger, error)
	FindLedgerDetail(ctx context.Context, id string) (*models.LedgerDetail, error)
	ListPayments(ctx context.Context, ledgerID string) ([]models.Payment, error)
	FindPayment(ctx context.Context, id string) (*models.Payment, error)
	ApplyPayment(ctx context.Context, input repository.PaymentInput, ledgerID string) (*models.Payment, error)
	VoidPayment(ctx context.Context, paymentID string) (*models.Payment, error)
}

type receiptRenderer interface {
	Render(data export.ReceiptData) ([]byte, error)
}

type documentStore interface {
	Save(relPath string, data []byte) error
	Exists(relPath string) bool
	Resolve(relPath string) (string, error)
}

type urlSigner interface {
	Sign(relPath string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// ApplyPaymentRequest records one journal entry against a ledger.
type ApplyPaymentRequest struct {
	Amount      decimal.Decimal    `json:"amount"`
	Category    models.FeeCategory `json:"category" validate:"required,oneof=REGISTRATION TUITION BOOK"`
	Method      string             `json:"method" validate:"required,max=50"`
	PaymentDate time.Time          `json:"payment_date"`
	Reference   *string            `json:"reference,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
	RecordedBy  *string            `json:"-"`
}

// ReceiptLink is an expiring download grant for a generated receipt.
type ReceiptLink struct {
	PaymentID string    `json:"payment_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BillingService exposes the ledger and its payment journal. All
// mutations go through single-transaction repository operations so the
// reconciliation invariant never breaks mid-flight.
type BillingService struct {
	repo      billingRepository
	receipts  receiptRenderer
	store     documentStore
	signer    urlSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingService constructs BillingService.
func NewBillingService(repo billingRepository, receipts receiptRenderer, store documentStore, signer urlSigner, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{repo: repo, receipts: receipts, store: store, signer: signer, validator: validate, logger: logger}
}

// GetLedger returns a ledger with its journal and enrollment context.
func (s *BillingService) GetLedger(ctx context.Context, id string) (*models.LedgerDetail, error) {
	detail, err := s.repo.FindLedgerDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing ledger")
	}
	return detail, nil
}

// GetLedgerByEnrollment returns the ledger attached to an enrollment.
func (s *BillingService) GetLedgerByEnrollment(ctx context.Context, enrollmentID string) (*models.LedgerDetail, error) {
	ledger, err := s.repo.FindLedgerByEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing ledger")
	}
	return s.GetLedger(ctx, ledger.ID)
}

// ListPayments returns the journal of one ledger, oldest first.
func (s *BillingService) ListPayments(ctx context.Context, ledgerID string) ([]models.Payment, error) {
	if _, err := s.repo.FindLedger(ctx, ledgerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing ledger")
	}
	payments, err := s.repo.ListPayments(ctx, ledgerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ApplyPayment validates and records a payment. The over-balance check
// in the repository runs under a row lock; a payment that would push
// amount_paid past total_due is rejected with the ledger unchanged.
func (s *BillingService) ApplyPayment(ctx context.Context, ledgerID string, req ApplyPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "payment amount must be positive")
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = time.Now().UTC()
	}

	payment, err := s.repo.ApplyPayment(ctx, repository.PaymentInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Method:      req.Method,
		PaymentDate: req.PaymentDate,
		Reference:   req.Reference,
		RecordedBy:  req.RecordedBy,
		Notes:       req.Notes,
	}, ledgerID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "billing ledger not found")
		case errors.Is(err, repository.ErrExceedsBalance):
			return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "payment cannot exceed remaining balance")
		case errors.Is(err, repository.ErrTxRetryable):
			return nil, appErrors.Clone(appErrors.ErrTransactionFailed, "payment conflicted with a concurrent update, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply payment")
	}

	s.logger.Info("payment applied",
		zap.String("ledger_id", ledgerID),
		zap.String("payment_id", payment.ID),
		zap.String("amount", payment.Amount.String()),
		zap.String("category", string(payment.Category)))
	return payment, nil
}

// VoidPayment deletes a journal entry and compensates its ledger.
func (s *BillingService) VoidPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.repo.VoidPayment(ctx, paymentID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		case errors.Is(err, repository.ErrTxRetryable):
			return nil, appErrors.Clone(appErrors.ErrTransactionFailed, "void conflicted with a concurrent update, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to void payment")
	}

	s.logger.Info("payment voided",
		zap.String("ledger_id", payment.LedgerID),
		zap.String("payment_id", payment.ID),
		zap.String("amount", payment.Amount.String()))
	return payment, nil
}

// GenerateReceipt renders the PDF receipt of one payment, stores it and
// returns an expiring download token.
func (s *BillingService) GenerateReceipt(ctx context.Context, paymentID string) (*ReceiptLink, error) {
	payment, err := s.repo.FindPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	detail, err := s.repo.FindLedgerDetail(ctx, payment.LedgerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing ledger")
	}

	relPath := receiptPath(payment.ID)
	if !s.store.Exists(relPath) {
		reference := ""
		if payment.Reference != nil {
			reference = *payment.Reference
		}
		pdf, err := s.receipts.Render(export.ReceiptData{
			ReceiptNumber:   receiptNumber(payment.ID),
			StudentName:     detail.StudentName,
			WaveName:        detail.WaveName,
			PaymentDate:     payment.PaymentDate,
			Amount:          payment.Amount.StringFixed(2),
			Method:          payment.Method,
			Category:        string(payment.Category),
			Reference:       reference,
			TotalDue:        detail.TotalDue.StringFixed(2),
			AmountPaid:      detail.AmountPaid.StringFixed(2),
			AmountRemaining: detail.AmountRemaining.StringFixed(2),
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
		}
		if err := s.store.Save(relPath, pdf); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
		}
	}

	token, expiresAt, err := s.signer.Sign(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}
	return &ReceiptLink{PaymentID: payment.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// OpenReceipt verifies a download token and returns the absolute path
// of the stored receipt.
func (s *BillingService) OpenReceipt(token string) (string, error) {
	relPath, err := s.signer.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenExpired):
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "download link has expired")
		default:
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid")
		}
	}
	if !s.store.Exists(relPath) {
		return "", appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
	}
	full, err := s.store.Resolve(relPath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve receipt")
	}
	return full, nil
}

// ExportPayments renders the journal of one ledger as CSV.
func (s *BillingService) ExportPayments(ctx context.Context, ledgerID string) ([]byte, string, error) {
	payments, err := s.ListPayments(ctx, ledgerID)
	if err != nil {
		return nil, "", err
	}
	rows := make([]export.PaymentRow, 0, len(payments))
	for _, p := range payments {
		reference := ""
		if p.Reference != nil {
			reference = *p.Reference
		}
		rows = append(rows, export.PaymentRow{
			Date:      p.PaymentDate.Format("2006-01-02"),
			Amount:    p.Amount.StringFixed(2),
			Method:    p.Method,
			Category:  string(p.Category),
			Reference: reference,
		})
	}
	csv, err := export.NewPaymentsCSVExporter().Render(rows)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export payments")
	}
	filename := fmt.Sprintf("payments-%s.csv", ledgerID)
	return csv, filename, nil
}

func receiptPath(paymentID string) string {
	return "receipts/" + paymentID + ".pdf"
}

func receiptNumber(paymentID string) string {
	id := strings.ReplaceAll(paymentID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}
