package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classgrid/classgrid-api/internal/models"
)

// classDetailColumns selects a class joined with its teacher and room names
// plus the enrollment count, producing models.ClassWithDetails rows.
const classDetailColumns = `c.id, c.name, c.subject, c.teacher_id, c.room_id, c.day_of_week, c.start_time, c.end_time, c.max_students, c.color, c.created_at, t.name AS teacher_name, r.name AS room_name, (SELECT COUNT(*) FROM class_enrollments e WHERE e.class_id = c.id) AS enrollment_count`

const classDetailJoins = `FROM classes c JOIN teachers t ON t.id = c.teacher_id JOIN rooms r ON r.id = c.room_id`

// ClassRepository manages persistence for classes and runs the schedule
// conflict scan.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes with resolved details, optionally filtered by teacher,
// room, or day.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassWithDetails, int, error) {
	base := classDetailJoins + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("c.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("c.day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":        "c.name",
		"day_of_week": "c.day_of_week",
		"start_time":  "c.start_time",
		"created_at":  "c.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, c.start_time ASC LIMIT %d OFFSET %d", classDetailColumns, base, column, order, size, offset)
	var classes []models.ClassWithDetails
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// FindByID loads a class with resolved details.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassWithDetails, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE c.id = $1", classDetailColumns, classDetailJoins)
	var cls models.ClassWithDetails
	if err := r.db.GetContext(ctx, &cls, query, id); err != nil {
		return nil, err
	}
	return &cls, nil
}

// conflictPredicate mirrors the detection rule: same day, shared teacher or
// room, half-open time overlap. Touching endpoints do not overlap.
const conflictPredicate = `c.day_of_week = $1 AND (c.teacher_id = $2 OR c.room_id = $3) AND c.start_time < $4 AND $5 < c.end_time`

// FindConflicts returns every existing class colliding with the candidate.
func (r *ClassRepository) FindConflicts(ctx context.Context, probe models.ConflictQuery) ([]models.ClassWithDetails, error) {
	return findConflicts(ctx, r.db, probe)
}

func findConflicts(ctx context.Context, q sqlx.QueryerContext, probe models.ConflictQuery) ([]models.ClassWithDetails, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE %s", classDetailColumns, classDetailJoins, conflictPredicate)
	args := []interface{}{probe.DayOfWeek, probe.TeacherID, probe.RoomID, probe.EndTime, probe.StartTime}
	if probe.ExcludeID != "" {
		query += " AND c.id <> $6"
		args = append(args, probe.ExcludeID)
	}
	var conflicts []models.ClassWithDetails
	if err := sqlx.SelectContext(ctx, q, &conflicts, query, args...); err != nil {
		return nil, fmt.Errorf("find schedule conflicts: %w", err)
	}
	return conflicts, nil
}

// CreateGuarded runs the conflict scan and the insert in one transaction. It
// returns the colliding classes without inserting when any exist. Keeping
// both steps in a single transaction closes the check-then-act window between
// concurrent writers.
func (r *ClassRepository) CreateGuarded(ctx context.Context, cls *models.Class) ([]models.ClassWithDetails, error) {
	if cls.ID == "" {
		cls.ID = uuid.NewString()
	}
	if cls.CreatedAt.IsZero() {
		cls.CreatedAt = time.Now().UTC()
	}
	if cls.Color == "" {
		cls.Color = models.DefaultClassColor
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create class: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	conflicts, err := findConflicts(ctx, tx, models.ConflictQuery{
		TeacherID: cls.TeacherID,
		RoomID:    cls.RoomID,
		DayOfWeek: cls.DayOfWeek,
		StartTime: cls.StartTime,
		EndTime:   cls.EndTime,
	})
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	const query = `INSERT INTO classes (id, name, subject, teacher_id, room_id, day_of_week, start_time, end_time, max_students, color, created_at)
		VALUES (:id, :name, :subject, :teacher_id, :room_id, :day_of_week, :start_time, :end_time, :max_students, :color, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, cls); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create class: %w", err)
	}
	return nil, nil
}

// UpdateGuarded applies an update after re-running the conflict scan in the
// same transaction, excluding the class itself.
func (r *ClassRepository) UpdateGuarded(ctx context.Context, cls *models.Class) ([]models.ClassWithDetails, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update class: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	conflicts, err := findConflicts(ctx, tx, models.ConflictQuery{
		TeacherID: cls.TeacherID,
		RoomID:    cls.RoomID,
		DayOfWeek: cls.DayOfWeek,
		StartTime: cls.StartTime,
		EndTime:   cls.EndTime,
		ExcludeID: cls.ID,
	})
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	const query = `UPDATE classes SET name = :name, subject = :subject, teacher_id = :teacher_id, room_id = :room_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, max_students = :max_students, color = :color WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, cls); err != nil {
		return nil, fmt.Errorf("update class: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update class: %w", err)
	}
	return nil, nil
}

// Delete removes a class by id.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// Count returns the total number of classes.
func (r *ClassRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes`); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return total, nil
}

// CountByTeacher returns how many classes reference the teacher. Used to
// guard teacher deletion.
func (r *ClassRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count classes by teacher: %w", err)
	}
	return total, nil
}

// CountByRoom returns how many classes reference the room. Used to guard room
// deletion.
func (r *ClassRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE room_id = $1`, roomID); err != nil {
		return 0, fmt.Errorf("count classes by room: %w", err)
	}
	return total, nil
}
