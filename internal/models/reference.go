package models

// Room is a physical classroom.
type Room struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Seats  *int   `db:"seats" json:"seats,omitempty"`
	Active bool   `db:"active" json:"active"`
}

// Day is a weekday reference row.
type Day struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Position int    `db:"position" json:"position"`
}

// TimeSlot is a teaching period reference row.
type TimeSlot struct {
	ID       string `db:"id" json:"id"`
	Label    string `db:"label" json:"label"`
	StartsAt string `db:"starts_at" json:"starts_at"`
	EndsAt   string `db:"ends_at" json:"ends_at"`
}

// TeacherInfo is the roster view of a users row with the TEACHER role.
type TeacherInfo struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Active   bool   `db:"active" json:"active"`
}
