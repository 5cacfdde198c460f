package dto

import "github.com/classgrid/classgrid-api/internal/models"

// TimetableCell is one (day, slot) position in the weekly grid. Conflict is
// set when more than one class occupies the cell, regardless of whether they
// share a resource.
type TimetableCell struct {
	DayOfWeek int                       `json:"day_of_week"`
	Slot      string                    `json:"slot"`
	Classes   []models.ClassWithDetails `json:"classes"`
	Conflict  bool                      `json:"conflict"`
}

// ResourceConflict flags a pair of classes that share a slot AND a teacher or
// room. This drives the banner-level warning, which is a stricter check than
// the per-cell flag.
type ResourceConflict struct {
	DayOfWeek int    `json:"day_of_week"`
	Slot      string `json:"slot"`
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	OtherID   string `json:"other_id"`
	OtherName string `json:"other_name"`
	Dimension string `json:"dimension"`
}

// TimetableGrid is the view-ready weekly grid. Cells are ordered slot-major
// then day, matching the rendered rows. Classes whose start time does not
// match a slot label exactly are not placed in any cell.
type TimetableGrid struct {
	Days              []int              `json:"days"`
	Slots             []string           `json:"slots"`
	Cells             []TimetableCell    `json:"cells"`
	ResourceConflicts []ResourceConflict `json:"resource_conflicts,omitempty"`
}
