package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/models"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassWithDetails, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassWithDetails, error)
	FindConflicts(ctx context.Context, probe models.ConflictQuery) ([]models.ClassWithDetails, error)
	CreateGuarded(ctx context.Context, cls *models.Class) ([]models.ClassWithDetails, error)
	UpdateGuarded(ctx context.Context, cls *models.Class) ([]models.ClassWithDetails, error)
	Delete(ctx context.Context, id string) error
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type roomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// CreateClassRequest represents payload for scheduling a class.
type CreateClassRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Subject     string `json:"subject" validate:"required,max=200"`
	TeacherID   string `json:"teacher_id" validate:"required"`
	RoomID      string `json:"room_id" validate:"required"`
	DayOfWeek   *int   `json:"day_of_week" validate:"required,gte=0,lte=6"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
	MaxStudents int    `json:"max_students" validate:"required,gt=0"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateClassRequest represents a partial update; nil fields are left as-is.
type UpdateClassRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Subject     *string `json:"subject" validate:"omitempty,min=1,max=200"`
	TeacherID   *string `json:"teacher_id" validate:"omitempty,min=1"`
	RoomID      *string `json:"room_id" validate:"omitempty,min=1"`
	DayOfWeek   *int    `json:"day_of_week" validate:"omitempty,gte=0,lte=6"`
	StartTime   *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	MaxStudents *int    `json:"max_students" validate:"omitempty,gt=0"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

// CheckConflictRequest probes the detector without persisting anything.
type CheckConflictRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
	DayOfWeek *int   `json:"day_of_week" validate:"required,gte=0,lte=6"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	ExcludeID string `json:"exclude_id"`
}

// ClassService schedules classes and enforces the conflict rule: two classes
// collide when they fall on the same day, share a teacher or a room, and
// their half-open time ranges overlap. Writes are serialized behind a mutex
// on top of the transactional guard in the repository.
type ClassService struct {
	repo      classRepository
	teachers  teacherFinder
	rooms     roomFinder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	mu sync.Mutex
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, teachers teacherFinder, rooms roomFinder, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, teachers: teachers, rooms: rooms, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns classes with resolved details plus pagination data.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassWithDetails, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns a class by id.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassWithDetails, error) {
	cls, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return cls, nil
}

// Create schedules a new class. It returns *models.ClassConflictError when
// the slot collides with an existing class on the teacher or room axis.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.ClassWithDetails, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	if err := validateTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.TeacherID, req.RoomID); err != nil {
		return nil, err
	}

	cls := &models.Class{
		Name:        strings.TrimSpace(req.Name),
		Subject:     strings.TrimSpace(req.Subject),
		TeacherID:   req.TeacherID,
		RoomID:      req.RoomID,
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxStudents: req.MaxStudents,
		Color:       req.Color,
	}

	s.mu.Lock()
	conflicts, err := s.repo.CreateGuarded(ctx, cls)
	s.mu.Unlock()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	if len(conflicts) > 0 {
		return nil, s.conflictError(conflicts)
	}

	s.invalidateStats(ctx)
	return s.Get(ctx, cls.ID)
}

// Update applies a partial update, re-running the conflict scan on the
// resulting schedule with the class itself excluded.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.ClassWithDetails, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	cls := existing.Class
	if req.Name != nil {
		cls.Name = strings.TrimSpace(*req.Name)
	}
	if req.Subject != nil {
		cls.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.TeacherID != nil {
		cls.TeacherID = *req.TeacherID
	}
	if req.RoomID != nil {
		cls.RoomID = *req.RoomID
	}
	if req.DayOfWeek != nil {
		cls.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		cls.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		cls.EndTime = *req.EndTime
	}
	if req.MaxStudents != nil {
		cls.MaxStudents = *req.MaxStudents
	}
	if req.Color != nil {
		cls.Color = *req.Color
	}

	if err := validateTimeRange(cls.StartTime, cls.EndTime); err != nil {
		return nil, err
	}
	if req.TeacherID != nil || req.RoomID != nil {
		if err := s.ensureReferences(ctx, cls.TeacherID, cls.RoomID); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	conflicts, err := s.repo.UpdateGuarded(ctx, &cls)
	s.mu.Unlock()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	if len(conflicts) > 0 {
		return nil, s.conflictError(conflicts)
	}

	s.invalidateStats(ctx)
	return s.Get(ctx, id)
}

// Move relocates a class to a new day and start time, preserving its
// duration. The move runs through the same guarded update path.
func (s *ClassService) Move(ctx context.Context, id string, dayOfWeek int, startTime string) (*models.ClassWithDetails, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 0 and 6")
	}
	start, err := parseClock(startTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	oldStart, err := parseClock(existing.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored start time is malformed")
	}
	oldEnd, err := parseClock(existing.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored end time is malformed")
	}
	end := start + (oldEnd - oldStart)
	if end >= 24*60 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class would end past midnight")
	}

	cls := existing.Class
	cls.DayOfWeek = dayOfWeek
	cls.StartTime = formatClock(start)
	cls.EndTime = formatClock(end)

	s.mu.Lock()
	conflicts, err := s.repo.UpdateGuarded(ctx, &cls)
	s.mu.Unlock()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move class")
	}
	if len(conflicts) > 0 {
		return nil, s.conflictError(conflicts)
	}

	s.invalidateStats(ctx)
	return s.Get(ctx, id)
}

// CheckConflicts runs the detector without writing anything.
func (s *ClassService) CheckConflicts(ctx context.Context, req CheckConflictRequest) ([]models.ClassConflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid conflict probe")
	}
	if err := validateTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	found, err := s.repo.FindConflicts(ctx, models.ConflictQuery{
		TeacherID: req.TeacherID,
		RoomID:    req.RoomID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan for conflicts")
	}
	conflicts := make([]models.ClassConflict, 0, len(found))
	for _, cls := range found {
		conflicts = append(conflicts, models.NewClassConflict(cls))
	}
	return conflicts, nil
}

// Delete removes a class and its enrollments.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *ClassService) ensureReferences(ctx context.Context, teacherID, roomID string) error {
	if s.teachers != nil {
		if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}
	if s.rooms != nil {
		if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "room not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
		}
	}
	return nil
}

func (s *ClassService) conflictError(found []models.ClassWithDetails) error {
	if s.metrics != nil {
		s.metrics.RecordScheduleConflict()
	}
	conflicts := make([]models.ClassConflict, 0, len(found))
	for _, cls := range found {
		conflicts = append(conflicts, models.NewClassConflict(cls))
	}
	return &models.ClassConflictError{Message: "schedule conflict detected", Conflicts: conflicts}
}

func (s *ClassService) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}
}

// validateTimeRange rejects inverted or empty ranges. Zero-padded HH:MM
// strings compare correctly as text.
func validateTimeRange(start, end string) error {
	if start >= end {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(value string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(value, "%2d:%2d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", value)
	}
	return hours*60 + minutes, nil
}

// formatClock renders minutes since midnight as zero-padded "HH:MM".
func formatClock(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
