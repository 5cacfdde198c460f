package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgrid/classgrid-api/internal/models"
)

var classDetailRowColumns = []string{
	"id", "name", "subject", "teacher_id", "room_id", "day_of_week",
	"start_time", "end_time", "max_students", "color", "created_at",
	"teacher_name", "room_name", "enrollment_count",
}

func classDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows(classDetailRowColumns)
}

const conflictPredicatePattern = `c\.day_of_week = \$1 AND \(c\.teacher_id = \$2 OR c\.room_id = \$3\) AND c\.start_time < \$4 AND \$5 < c\.end_time`

func TestClassRepositoryFindConflicts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := classDetailRows().
		AddRow("c1", "Algebra", "Math", "t1", "r1", 1, "09:00", "10:00", 30, "#06b6d4", time.Now(), "Teacher A", "Room 1", 5)
	mock.ExpectQuery(conflictPredicatePattern).
		WithArgs(1, "t1", "r2", "10:30", "09:30").
		WillReturnRows(rows)

	conflicts, err := repo.FindConflicts(context.Background(), models.ConflictQuery{
		TeacherID: "t1",
		RoomID:    "r2",
		DayOfWeek: 1,
		StartTime: "09:30",
		EndTime:   "10:30",
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c1", conflicts[0].ID)
	assert.Equal(t, "Teacher A", conflicts[0].TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindConflictsExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(conflictPredicatePattern + ` AND c\.id <> \$6`).
		WithArgs(1, "t1", "r1", "10:00", "09:00", "c1").
		WillReturnRows(classDetailRows())

	conflicts, err := repo.FindConflicts(context.Background(), models.ConflictQuery{
		TeacherID: "t1",
		RoomID:    "r1",
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "10:00",
		ExcludeID: "c1",
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(conflictPredicatePattern).
		WithArgs(1, "t1", "r1", "10:00", "09:00").
		WillReturnRows(classDetailRows())
	mock.ExpectExec("INSERT INTO classes").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cls := &models.Class{
		Name:        "Algebra",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   1,
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxStudents: 30,
	}
	conflicts, err := repo.CreateGuarded(context.Background(), cls)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NotEmpty(t, cls.ID)
	assert.Equal(t, models.DefaultClassColor, cls.Color)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateGuardedConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	rows := classDetailRows().
		AddRow("c9", "Biology", "Science", "t1", "r9", 1, "09:00", "10:00", 25, "#06b6d4", time.Now(), "Teacher A", "Lab", 0)
	mock.ExpectQuery(conflictPredicatePattern).
		WithArgs(1, "t1", "r1", "10:00", "09:00").
		WillReturnRows(rows)
	mock.ExpectRollback()

	cls := &models.Class{
		Name:        "Algebra",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   1,
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxStudents: 30,
	}
	conflicts, err := repo.CreateGuarded(context.Background(), cls)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c9", conflicts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(conflictPredicatePattern + ` AND c\.id <> \$6`).
		WithArgs(2, "t1", "r1", "11:00", "10:00", "c1").
		WillReturnRows(classDetailRows())
	mock.ExpectExec("UPDATE classes SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cls := &models.Class{
		ID:          "c1",
		Name:        "Algebra",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   2,
		StartTime:   "10:00",
		EndTime:     "11:00",
		MaxStudents: 30,
		Color:       "#06b6d4",
	}
	conflicts, err := repo.UpdateGuarded(context.Background(), cls)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCountByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	day := 1
	mock.ExpectQuery(`c\.teacher_id = \$1 AND c\.day_of_week = \$2`).
		WithArgs("t1", 1).
		WillReturnRows(classDetailRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("t1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.ClassFilter{TeacherID: "t1", DayOfWeek: &day})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
