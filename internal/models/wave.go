package models

import "time"

// WaveStatus represents the lifecycle of an enrollment wave.
type WaveStatus string

// Possible wave statuses.
const (
	WaveStatusPlanned    WaveStatus = "PLANNED"
	WaveStatusInProgress WaveStatus = "IN_PROGRESS"
	WaveStatusCompleted  WaveStatus = "COMPLETED"
	WaveStatusCancelled  WaveStatus = "CANCELLED"
)

// OpenForEnrollment reports whether new enrollments may join the wave.
func (s WaveStatus) OpenForEnrollment() bool {
	return s == WaveStatusPlanned || s == WaveStatusInProgress
}

// ResourceKind identifies a schedulable resource.
type ResourceKind string

const (
	ResourceRoom    ResourceKind = "room"
	ResourceTeacher ResourceKind = "teacher"
)

// Wave is one dated offering of a level.
type Wave struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	LevelID     string     `db:"level_id" json:"level_id"`
	TeacherID   *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	RoomID      *string    `db:"room_id" json:"room_id,omitempty"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     time.Time  `db:"end_date" json:"end_date"`
	CapacityMax *int       `db:"capacity_max" json:"capacity_max,omitempty"`
	Status      WaveStatus `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// WaveSchedule is one weekly (day, time slot) meeting of a wave.
type WaveSchedule struct {
	ID         string `db:"id" json:"id"`
	WaveID     string `db:"wave_id" json:"wave_id"`
	DayID      string `db:"day_id" json:"day_id"`
	TimeSlotID string `db:"time_slot_id" json:"time_slot_id"`
}

// WaveDetail enriches Wave with display data and the computed
// enrollment count. EnrolledCount is always derived from enrollments,
// never stored.
type WaveDetail struct {
	Wave
	LevelCode     string         `db:"level_code" json:"level_code"`
	LevelName     string         `db:"level_name" json:"level_name"`
	TeacherName   *string        `db:"teacher_name" json:"teacher_name,omitempty"`
	RoomName      *string        `db:"room_name" json:"room_name,omitempty"`
	EnrolledCount int            `db:"enrolled_count" json:"enrolled_count"`
	Schedule      []WaveSchedule `json:"schedule"`
}

// WavePatch lists the fields an update may touch. Nil means untouched.
// Schedule replaces all entries when non-nil.
type WavePatch struct {
	Name        *string             `json:"name,omitempty"`
	TeacherID   *string             `json:"teacher_id,omitempty"`
	RoomID      *string             `json:"room_id,omitempty"`
	StartDate   *time.Time          `json:"start_date,omitempty"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
	CapacityMax *int                `json:"capacity_max,omitempty"`
	Notes       *string             `json:"notes,omitempty"`
	Schedule    []WaveScheduleEntry `json:"schedule,omitempty"`
}

// WaveScheduleEntry is the (day, slot) pair used on create/update.
type WaveScheduleEntry struct {
	DayID      string `json:"day_id" validate:"required"`
	TimeSlotID string `json:"time_slot_id" validate:"required"`
}

// WaveFilter encapsulates list filters for waves.
type WaveFilter struct {
	LevelID   string
	TeacherID string
	RoomID    string
	Status    WaveStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
