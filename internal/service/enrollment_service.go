package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, waveID string) (bool, error)
	CountActiveByWave(ctx context.Context, waveID string) (int, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	EnrollTx(ctx context.Context, params repository.EnrollParams) (*repository.EnrollResult, error)
	WithdrawTx(ctx context.Context, waveID, studentID string) error
}

type studentStore interface {
	FindByPhone(ctx context.Context, phone string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type waveReader interface {
	FindByID(ctx context.Context, id string) (*models.Wave, error)
}

type feeScheduleResolver interface {
	ResolveFeeSchedule(ctx context.Context, levelID string) (*models.FeeSchedule, error)
}

// EnrollStudentInfo identifies the learner, by phone natural key.
type EnrollStudentInfo struct {
	FullName string  `json:"full_name" validate:"required"`
	Phone    string  `json:"phone" validate:"required"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  *string `json:"address,omitempty"`
}

// InitialPaymentRequest is an optional payment taken at enroll time.
type InitialPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required"`
	Reference *string         `json:"reference,omitempty"`
}

// EnrollRequest describes an enrollment attempt. InitialStatus is set
// by trusted callers only; it defaults to ACTIVE.
type EnrollRequest struct {
	WaveID         string                  `json:"wave_id" validate:"required"`
	Student        EnrollStudentInfo       `json:"student" validate:"required"`
	Notes          *string                 `json:"notes,omitempty"`
	InitialPayment *InitialPaymentRequest  `json:"initial_payment,omitempty"`
	InitialStatus  models.EnrollmentStatus `json:"-"`
	RecordedBy     *string                 `json:"-"`
}

// EnrollResponse reports the records created by a successful enrollment.
type EnrollResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	StudentID    string `json:"student_id"`
	LedgerID     string `json:"ledger_id"`
	PaymentID    string `json:"payment_id,omitempty"`
}

// EnrollmentService orchestrates the enrollment workflow: precondition
// checks, student find-or-create, and the atomic enroll unit that seeds
// the billing ledger.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentStore
	waves     waveReader
	fees      feeScheduleResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentStore, waves waveReader, fees feeScheduleResolver, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, waves: waves, fees: fees, validator: validate, logger: logger}
}

// Enroll registers a student into a wave. Preconditions are checked in
// order, first failure wins: wave exists, wave open, capacity, student
// resolution, (student, wave) uniqueness. The insert itself re-checks
// state and capacity under a row lock.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	wave, err := s.waves.FindByID(ctx, req.WaveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wave not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wave")
	}
	if !wave.Status.OpenForEnrollment() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "wave not open for enrollment")
	}
	if wave.CapacityMax != nil {
		active, err := s.repo.CountActiveByWave(ctx, req.WaveID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check capacity")
		}
		if active >= *wave.CapacityMax {
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "wave is full")
		}
	}

	student, err := s.resolveStudent(ctx, req.Student)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, student.ID, req.WaveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this wave")
	}

	fees, err := s.fees.ResolveFeeSchedule(ctx, wave.LevelID)
	if err != nil {
		return nil, err
	}
	totalDue := fees.TotalDue()

	params := repository.EnrollParams{
		StudentID: student.ID,
		WaveID:    req.WaveID,
		TotalDue:  totalDue,
		Status:    req.InitialStatus,
		Notes:     req.Notes,
	}
	if req.InitialPayment != nil {
		if !req.InitialPayment.Amount.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "payment amount must be positive")
		}
		if req.InitialPayment.Amount.GreaterThan(totalDue) {
			return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "payment cannot exceed remaining balance")
		}
		params.InitialPayment = &repository.PaymentInput{
			Amount:      req.InitialPayment.Amount,
			Category:    inferInitialCategory(fees),
			Method:      req.InitialPayment.Method,
			PaymentDate: time.Now().UTC(),
			Reference:   req.InitialPayment.Reference,
			RecordedBy:  req.RecordedBy,
		}
	}

	result, err := s.repo.EnrollTx(ctx, params)
	if err != nil {
		return nil, s.mapEnrollError(err)
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", result.EnrollmentID),
		zap.String("student_id", student.ID),
		zap.String("wave_id", req.WaveID),
		zap.String("total_due", totalDue.String()),
	)

	return &EnrollResponse{
		EnrollmentID: result.EnrollmentID,
		StudentID:    student.ID,
		LedgerID:     result.LedgerID,
		PaymentID:    result.PaymentID,
	}, nil
}

// resolveStudent finds a student by phone or creates one. A concurrent
// create racing on the same phone is resolved by re-reading.
func (s *EnrollmentService) resolveStudent(ctx context.Context, info EnrollStudentInfo) (*models.Student, error) {
	student, err := s.students.FindByPhone(ctx, info.Phone)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student = &models.Student{
		FullName: info.FullName,
		Phone:    info.Phone,
		Email:    info.Email,
		Address:  info.Address,
	}
	if err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return s.students.FindByPhone(ctx, info.Phone)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

func (s *EnrollmentService) mapEnrollError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "wave not found")
	case errors.Is(err, repository.ErrWaveClosed):
		return appErrors.Clone(appErrors.ErrInvalidState, "wave not open for enrollment")
	case errors.Is(err, repository.ErrCapacityFull):
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "wave is full")
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return appErrors.Clone(appErrors.ErrConflict, "already enrolled in this wave")
	case errors.Is(err, repository.ErrExceedsBalance):
		return appErrors.Clone(appErrors.ErrInvalidAmount, "payment cannot exceed remaining balance")
	case errors.Is(err, repository.ErrTxRetryable):
		return appErrors.Clone(appErrors.ErrTransactionFailed, "enrollment aborted, retry the operation")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
}

// inferInitialCategory picks the fee bucket of an enroll-time payment:
// registration first while a registration fee exists, tuition otherwise.
func inferInitialCategory(fees *models.FeeSchedule) models.FeeCategory {
	if fees.RegistrationFee.IsPositive() {
		return models.FeeCategoryRegistration
	}
	return models.FeeCategoryTuition
}

// Withdraw removes the enrollment of a student from a wave together
// with its ledger and journal.
func (s *EnrollmentService) Withdraw(ctx context.Context, waveID, studentID string) error {
	if err := s.repo.WithdrawTx(ctx, waveID, studentID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrTxRetryable):
			return appErrors.Clone(appErrors.ErrTransactionFailed, "withdrawal aborted, retry the operation")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	s.logger.Info("enrollment withdrawn", zap.String("wave_id", waveID), zap.String("student_id", studentID))
	return nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one enrollment with context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// UpdateStatus moves an enrollment through its lifecycle.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) (*models.EnrollmentDetail, error) {
	switch status {
	case models.EnrollmentStatusActive, models.EnrollmentStatusAbandoned, models.EnrollmentStatusCompleted,
		models.EnrollmentStatusPendingReview, models.EnrollmentStatusRejected:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	return s.Get(ctx, id)
}
