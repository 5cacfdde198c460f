package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/models"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type enrollmentRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
	Exists(ctx context.Context, classID, studentID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, classID, studentID string) (bool, error)
}

type enrollmentClassFinder interface {
	FindByID(ctx context.Context, id string) (*models.ClassWithDetails, error)
}

type enrollmentStudentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnrollStudentRequest represents payload for enrolling a student in a class.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// EnrollmentService manages class rosters.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   enrollmentClassFinder
	students  enrollmentStudentFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes enrollmentClassFinder, students enrollmentStudentFinder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, students: students, validator: validate, logger: logger}
}

// ListByClass returns the roster for a class.
func (s *EnrollmentService) ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Enroll adds a student to a class. Enrolling the same student twice is
// rejected with a conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, classID string, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	cls, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	exists, err := s.repo.Exists(ctx, classID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in this class")
	}
	if cls.MaxStudents > 0 && cls.EnrollmentCount >= cls.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class is full")
	}

	enrollment := &models.Enrollment{ClassID: classID, StudentID: req.StudentID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	return enrollment, nil
}

// Unenroll removes a student from a class.
func (s *EnrollmentService) Unenroll(ctx context.Context, classID, studentID string) error {
	if err := s.ensureClass(ctx, classID); err != nil {
		return err
	}
	removed, err := s.repo.Delete(ctx, classID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return nil
}

func (s *EnrollmentService) ensureClass(ctx context.Context, classID string) error {
	if s.classes == nil {
		return nil
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return nil
}
