package models

import "time"

// DefaultClassColor is applied when a class is created without an explicit
// display color.
const DefaultClassColor = "#06b6d4"

// Class represents a scheduled teaching session. DayOfWeek uses 0-6 with
// Sunday=0; StartTime and EndTime are zero-padded "HH:MM" strings forming a
// half-open interval, so lexicographic comparison is valid.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Subject     string    `db:"subject" json:"subject"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	MaxStudents int       `db:"max_students" json:"max_students"`
	Color       string    `db:"color" json:"color"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ClassWithDetails is a Class joined with its teacher, room, and enrollment
// count. This is the shape conflict detection and the timetable operate on.
type ClassWithDetails struct {
	Class
	TeacherName     string `db:"teacher_name" json:"teacher_name"`
	RoomName        string `db:"room_name" json:"room_name"`
	EnrollmentCount int    `db:"enrollment_count" json:"enrollment_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TeacherID string
	RoomID    string
	DayOfWeek *int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ConflictQuery carries the scheduling axes of a candidate class. ExcludeID
// removes the class being updated from the scan so it cannot conflict with
// itself.
type ConflictQuery struct {
	TeacherID string
	RoomID    string
	DayOfWeek int
	StartTime string
	EndTime   string
	ExcludeID string
}

// ClassConflict is the wire shape describing one colliding class in a 409
// response.
type ClassConflict struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
	Time    string `json:"time"`
}

// NewClassConflict builds the conflict summary for an existing class.
func NewClassConflict(cls ClassWithDetails) ClassConflict {
	return ClassConflict{
		ID:      cls.ID,
		Name:    cls.Name,
		Teacher: cls.TeacherName,
		Room:    cls.RoomName,
		Time:    cls.StartTime + " - " + cls.EndTime,
	}
}

// ClassConflictError is returned when a candidate class collides with
// existing classes on the teacher or room axis.
type ClassConflictError struct {
	Message   string          `json:"message"`
	Conflicts []ClassConflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *ClassConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
