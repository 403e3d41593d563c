package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
)

type waveRepository interface {
	List(ctx context.Context, filter models.WaveFilter) ([]models.WaveDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Wave, error)
	FindDetailByID(ctx context.Context, id string) (*models.WaveDetail, error)
	CountScheduleConflicts(ctx context.Context, kind models.ResourceKind, resourceID, dayID, slotID, excludeWaveID string) (int, error)
	Create(ctx context.Context, wave *models.Wave, schedule []models.WaveScheduleEntry) error
	Update(ctx context.Context, id string, patch models.WavePatch) error
	UpdateStatus(ctx context.Context, id string, status models.WaveStatus) error
}

// CreateWaveRequest describes a new wave and its weekly schedule.
type CreateWaveRequest struct {
	Name        string                     `json:"name" validate:"required"`
	LevelID     string                     `json:"level_id" validate:"required,uuid"`
	TeacherID   *string                    `json:"teacher_id,omitempty"`
	RoomID      *string                    `json:"room_id,omitempty"`
	StartDate   time.Time                  `json:"start_date" validate:"required"`
	EndDate     time.Time                  `json:"end_date" validate:"required"`
	CapacityMax *int                       `json:"capacity_max,omitempty"`
	Notes       *string                    `json:"notes,omitempty"`
	Schedule    []models.WaveScheduleEntry `json:"schedule" validate:"dive"`
}

// validTransitions encodes the wave lifecycle. CANCELLED is reachable
// from any non-terminal status.
var validTransitions = map[models.WaveStatus][]models.WaveStatus{
	models.WaveStatusPlanned:    {models.WaveStatusInProgress, models.WaveStatusCancelled},
	models.WaveStatusInProgress: {models.WaveStatusCompleted, models.WaveStatusCancelled},
}

// WaveService manages waves, their schedules and resource availability.
type WaveService struct {
	repo      waveRepository
	levels    levelRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWaveService constructs WaveService.
func NewWaveService(repo waveRepository, levels levelRepository, validate *validator.Validate, logger *zap.Logger) *WaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaveService{repo: repo, levels: levels, validator: validate, logger: logger}
}

// List returns waves with pagination metadata.
func (s *WaveService) List(ctx context.Context, filter models.WaveFilter) ([]models.WaveDetail, *models.Pagination, error) {
	waves, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waves")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return waves, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a wave with its schedule and derived enrollment count.
func (s *WaveService) Get(ctx context.Context, id string) (*models.WaveDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wave not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wave")
	}
	return detail, nil
}

// IsAvailable reports whether a resource is free at a weekly slot.
// Slots held by non-open waves do not count, and excludeWaveID lets a
// wave reschedule without colliding with itself.
func (s *WaveService) IsAvailable(ctx context.Context, kind models.ResourceKind, resourceID, dayID, slotID, excludeWaveID string) (bool, error) {
	if kind != models.ResourceRoom && kind != models.ResourceTeacher {
		return false, appErrors.Clone(appErrors.ErrValidation, "resource kind must be room or teacher")
	}
	if resourceID == "" || dayID == "" || slotID == "" {
		return false, appErrors.Clone(appErrors.ErrValidation, "resource, day and time slot are required")
	}
	count, err := s.repo.CountScheduleConflicts(ctx, kind, resourceID, dayID, slotID, excludeWaveID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	return count == 0, nil
}

// Create validates, pre-checks availability and persists a wave. The
// database unique indexes remain the authoritative guard, so a race
// slipping past the pre-check still fails with a conflict.
func (s *WaveService) Create(ctx context.Context, req CreateWaveRequest) (*models.WaveDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid wave payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}
	if req.CapacityMax != nil && *req.CapacityMax <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity must be positive")
	}

	if _, err := s.levels.FindByID(ctx, req.LevelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level")
	}

	if err := s.checkScheduleFree(ctx, req.RoomID, req.TeacherID, req.Schedule, ""); err != nil {
		return nil, err
	}

	wave := &models.Wave{
		Name:        req.Name,
		LevelID:     req.LevelID,
		TeacherID:   req.TeacherID,
		RoomID:      req.RoomID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CapacityMax: req.CapacityMax,
		Status:      models.WaveStatusPlanned,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, wave, req.Schedule); err != nil {
		if errors.Is(err, repository.ErrScheduleTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule slot is already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create wave")
	}

	s.logger.Info("wave created", zap.String("wave_id", wave.ID), zap.String("level_id", wave.LevelID))
	return s.Get(ctx, wave.ID)
}

// Update applies a partial update, re-checking availability whenever
// the schedule or a bound resource changes.
func (s *WaveService) Update(ctx context.Context, id string, patch models.WavePatch) (*models.WaveDetail, error) {
	current, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wave not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wave")
	}
	if patch.StartDate != nil || patch.EndDate != nil {
		start := current.StartDate
		end := current.EndDate
		if patch.StartDate != nil {
			start = *patch.StartDate
		}
		if patch.EndDate != nil {
			end = *patch.EndDate
		}
		if end.Before(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
		}
	}
	if patch.CapacityMax != nil && *patch.CapacityMax <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity must be positive")
	}

	if patch.Schedule != nil || patch.RoomID != nil || patch.TeacherID != nil {
		roomID := current.RoomID
		if patch.RoomID != nil {
			roomID = nilIfEmpty(*patch.RoomID)
		}
		teacherID := current.TeacherID
		if patch.TeacherID != nil {
			teacherID = nilIfEmpty(*patch.TeacherID)
		}
		schedule := patch.Schedule
		if schedule == nil {
			for _, entry := range current.Schedule {
				schedule = append(schedule, models.WaveScheduleEntry{DayID: entry.DayID, TimeSlotID: entry.TimeSlotID})
			}
		}
		if err := s.checkScheduleFree(ctx, roomID, teacherID, schedule, id); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wave not found")
		case errors.Is(err, repository.ErrScheduleTaken):
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule slot is already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update wave")
	}
	return s.Get(ctx, id)
}

// UpdateStatus moves a wave through its lifecycle.
func (s *WaveService) UpdateStatus(ctx context.Context, id string, status models.WaveStatus) (*models.WaveDetail, error) {
	wave, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wave not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wave")
	}

	allowed := false
	for _, next := range validTransitions[wave.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "invalid wave status transition")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrScheduleTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule slot is already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update wave status")
	}

	s.logger.Info("wave status updated",
		zap.String("wave_id", id),
		zap.String("from", string(wave.Status)),
		zap.String("to", string(status)))
	return s.Get(ctx, id)
}

func (s *WaveService) checkScheduleFree(ctx context.Context, roomID, teacherID *string, schedule []models.WaveScheduleEntry, excludeWaveID string) error {
	for _, entry := range schedule {
		if roomID != nil && *roomID != "" {
			count, err := s.repo.CountScheduleConflicts(ctx, models.ResourceRoom, *roomID, entry.DayID, entry.TimeSlotID, excludeWaveID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
			}
			if count > 0 {
				return appErrors.Clone(appErrors.ErrConflict, "room is not available at the requested time")
			}
		}
		if teacherID != nil && *teacherID != "" {
			count, err := s.repo.CountScheduleConflicts(ctx, models.ResourceTeacher, *teacherID, entry.DayID, entry.TimeSlotID, excludeWaveID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
			}
			if count > 0 {
				return appErrors.Clone(appErrors.ErrConflict, "teacher is not available at the requested time")
			}
		}
	}
	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
