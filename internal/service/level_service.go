package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
)

type levelRepository interface {
	List(ctx context.Context, filter models.LevelFilter) ([]models.Level, int, error)
	FindByID(ctx context.Context, id string) (*models.Level, error)
	Create(ctx context.Context, level *models.Level) error
	Update(ctx context.Context, id string, patch models.LevelPatch) error
	Delete(ctx context.Context, id string) error
}

// CreateLevelRequest describes a new fee/duration template.
type CreateLevelRequest struct {
	Code              string          `json:"code" validate:"required"`
	Name              string          `json:"name" validate:"required"`
	RegistrationFee   decimal.Decimal `json:"registration_fee"`
	TuitionFee        decimal.Decimal `json:"tuition_fee"`
	BookFee           decimal.Decimal `json:"book_fee"`
	RequiredBookCount int             `json:"required_book_count" validate:"gte=0"`
	DurationMonths    int             `json:"duration_months" validate:"gte=0"`
}

// LevelService manages fee templates and resolves billing seeds.
type LevelService struct {
	repo      levelRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLevelService constructs LevelService.
func NewLevelService(repo levelRepository, validate *validator.Validate, logger *zap.Logger) *LevelService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelService{repo: repo, validator: validate, logger: logger}
}

// ResolveFeeSchedule returns the fee components seeding a new billing
// ledger. Inactive levels resolve the same as missing ones.
func (s *LevelService) ResolveFeeSchedule(ctx context.Context, levelID string) (*models.FeeSchedule, error) {
	level, err := s.repo.FindByID(ctx, levelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level")
	}
	if !level.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
	}
	return &models.FeeSchedule{
		RegistrationFee:   level.RegistrationFee,
		TuitionFee:        level.TuitionFee,
		BookFee:           level.BookFee,
		RequiredBookCount: level.RequiredBookCount,
		DurationMonths:    level.DurationMonths,
	}, nil
}

// List returns levels with pagination metadata.
func (s *LevelService) List(ctx context.Context, filter models.LevelFilter) ([]models.Level, *models.Pagination, error) {
	levels, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list levels")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return levels, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single level.
func (s *LevelService) Get(ctx context.Context, id string) (*models.Level, error) {
	level, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level")
	}
	return level, nil
}

// Create registers a new level template.
func (s *LevelService) Create(ctx context.Context, req CreateLevelRequest) (*models.Level, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid level payload")
	}
	if req.RegistrationFee.IsNegative() || req.TuitionFee.IsNegative() || req.BookFee.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fees must not be negative")
	}
	level := &models.Level{
		Code:              req.Code,
		Name:              req.Name,
		RegistrationFee:   req.RegistrationFee,
		TuitionFee:        req.TuitionFee,
		BookFee:           req.BookFee,
		RequiredBookCount: req.RequiredBookCount,
		DurationMonths:    req.DurationMonths,
		Active:            true,
	}
	if err := s.repo.Create(ctx, level); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "level code already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create level")
	}
	return level, nil
}

// Update applies a partial update to a level.
func (s *LevelService) Update(ctx context.Context, id string, patch models.LevelPatch) (*models.Level, error) {
	if err := s.repo.Update(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
		case errors.Is(err, repository.ErrDuplicateCode):
			return nil, appErrors.Clone(appErrors.ErrConflict, "level code already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update level")
	}
	return s.Get(ctx, id)
}

// Delete removes a level unless waves reference it.
func (s *LevelService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "level not found")
		case errors.Is(err, repository.ErrLevelReferenced):
			return appErrors.Clone(appErrors.ErrConflict, "level is referenced by existing waves")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete level")
	}
	return nil
}
