package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive        EnrollmentStatus = "ACTIVE"
	EnrollmentStatusAbandoned     EnrollmentStatus = "ABANDONED"
	EnrollmentStatusCompleted     EnrollmentStatus = "COMPLETED"
	EnrollmentStatusPendingReview EnrollmentStatus = "PENDING_REVIEW"
	EnrollmentStatusRejected      EnrollmentStatus = "REJECTED"
)

// Enrollment links one student to one wave. The (student, wave) pair is
// unique; each enrollment owns exactly one billing ledger.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	WaveID     string           `db:"wave_id" json:"wave_id"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and wave info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentPhone string `db:"student_phone" json:"student_phone"`
	WaveName     string `db:"wave_name" json:"wave_name"`
	LevelName    string `db:"level_name" json:"level_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	WaveID    string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
