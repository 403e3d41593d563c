package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
)

type referenceRepository interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListDays(ctx context.Context) ([]models.Day, error)
	ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error)
	ListTeachers(ctx context.Context) ([]models.TeacherInfo, error)
}

// ReferenceService serves rooms, days, time slots and the teacher
// roster with an optional redis read-through cache. A nil or failing
// redis client degrades to direct database reads.
type ReferenceService struct {
	repo    referenceRepository
	cache   *redis.Client
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewReferenceService constructs ReferenceService. cache and metrics may
// be nil.
func NewReferenceService(repo referenceRepository, cache *redis.Client, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ReferenceService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// ListRooms returns active rooms.
func (s *ReferenceService) ListRooms(ctx context.Context) ([]models.Room, error) {
	return cachedList(ctx, s, "reference:rooms", s.repo.ListRooms)
}

// ListDays returns weekdays in display order.
func (s *ReferenceService) ListDays(ctx context.Context) ([]models.Day, error) {
	return cachedList(ctx, s, "reference:days", s.repo.ListDays)
}

// ListTimeSlots returns teaching periods.
func (s *ReferenceService) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	return cachedList(ctx, s, "reference:time_slots", s.repo.ListTimeSlots)
}

// ListTeachers returns the active teacher roster.
func (s *ReferenceService) ListTeachers(ctx context.Context) ([]models.TeacherInfo, error) {
	return cachedList(ctx, s, "reference:teachers", s.repo.ListTeachers)
}

// Invalidate drops all cached reference entries.
func (s *ReferenceService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := []string{"reference:rooms", "reference:days", "reference:time_slots", "reference:teachers"}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("failed to invalidate reference cache", zap.Error(err))
	}
}

func cachedList[T any](ctx context.Context, s *ReferenceService, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var items []T
			if json.Unmarshal(raw, &items) == nil {
				return items, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	start := time.Now()
	items, err := load(ctx)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(strings.ReplaceAll(key, ":", "_"), time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return items, nil
}
