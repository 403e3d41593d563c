package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vokatra/cfp-admin-api/internal/models"
)

// ReferenceRepository serves the static reference tables feeding wave
// creation: rooms, days, time slots and the teacher roster.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListRooms returns all active rooms.
func (r *ReferenceRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, seats, active FROM rooms WHERE active ORDER BY name`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListDays returns weekdays in display order.
func (r *ReferenceRepository) ListDays(ctx context.Context) ([]models.Day, error) {
	const query = `SELECT id, name, position FROM days ORDER BY position`
	var days []models.Day
	if err := r.db.SelectContext(ctx, &days, query); err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return days, nil
}

// ListTimeSlots returns teaching periods ordered by start time.
func (r *ReferenceRepository) ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	const query = `SELECT id, label, starts_at::text AS starts_at, ends_at::text AS ends_at FROM time_slots ORDER BY starts_at`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// ListTeachers returns active users holding the TEACHER role.
func (r *ReferenceRepository) ListTeachers(ctx context.Context) ([]models.TeacherInfo, error) {
	const query = `SELECT id, full_name, email, active FROM users WHERE role = $1 AND active ORDER BY full_name`
	var teachers []models.TeacherInfo
	if err := r.db.SelectContext(ctx, &teachers, query, models.RoleTeacher); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}
