package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Grade          string    `db:"grade" json:"grade"`
	Avatar         *string   `db:"avatar" json:"avatar,omitempty"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Grade     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
