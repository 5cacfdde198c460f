package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/models"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type mockClassRepo struct {
	items  map[string]*models.ClassWithDetails
	nextID int
}

func newMockClassRepo(seed ...models.ClassWithDetails) *mockClassRepo {
	repo := &mockClassRepo{items: make(map[string]*models.ClassWithDetails)}
	for i := range seed {
		cp := seed[i]
		repo.items[cp.ID] = &cp
	}
	return repo
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassWithDetails, int, error) {
	var out []models.ClassWithDetails
	for _, cls := range m.items {
		out = append(out, *cls)
	}
	return out, len(out), nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.ClassWithDetails, error) {
	if cls, ok := m.items[id]; ok {
		cp := *cls
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindConflicts(ctx context.Context, probe models.ConflictQuery) ([]models.ClassWithDetails, error) {
	var conflicts []models.ClassWithDetails
	for _, cls := range m.items {
		if cls.ID == probe.ExcludeID {
			continue
		}
		if cls.DayOfWeek != probe.DayOfWeek {
			continue
		}
		if cls.TeacherID != probe.TeacherID && cls.RoomID != probe.RoomID {
			continue
		}
		if cls.StartTime < probe.EndTime && probe.StartTime < cls.EndTime {
			conflicts = append(conflicts, *cls)
		}
	}
	return conflicts, nil
}

func (m *mockClassRepo) CreateGuarded(ctx context.Context, cls *models.Class) ([]models.ClassWithDetails, error) {
	conflicts, _ := m.FindConflicts(ctx, models.ConflictQuery{
		TeacherID: cls.TeacherID,
		RoomID:    cls.RoomID,
		DayOfWeek: cls.DayOfWeek,
		StartTime: cls.StartTime,
		EndTime:   cls.EndTime,
	})
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	if cls.ID == "" {
		m.nextID++
		cls.ID = "class-" + string(rune('a'+m.nextID))
	}
	if cls.Color == "" {
		cls.Color = models.DefaultClassColor
	}
	m.items[cls.ID] = &models.ClassWithDetails{Class: *cls}
	return nil, nil
}

func (m *mockClassRepo) UpdateGuarded(ctx context.Context, cls *models.Class) ([]models.ClassWithDetails, error) {
	conflicts, _ := m.FindConflicts(ctx, models.ConflictQuery{
		TeacherID: cls.TeacherID,
		RoomID:    cls.RoomID,
		DayOfWeek: cls.DayOfWeek,
		StartTime: cls.StartTime,
		EndTime:   cls.EndTime,
		ExcludeID: cls.ID,
	})
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	existing := m.items[cls.ID]
	updated := models.ClassWithDetails{Class: *cls}
	if existing != nil {
		updated.TeacherName = existing.TeacherName
		updated.RoomName = existing.RoomName
	}
	m.items[cls.ID] = &updated
	return nil, nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type stubFinders struct{}

func (stubFinders) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	return &models.Teacher{ID: id, Active: true}, nil
}

type stubRoomFinder struct{}

func (stubRoomFinder) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return &models.Room{ID: id}, nil
}

func newClassService(repo *mockClassRepo) *ClassService {
	return NewClassService(repo, stubFinders{}, stubRoomFinder{}, nil, nil, validator.New(), zap.NewNop())
}

func seedClass(id, teacherID, roomID string, day int, start, end string) models.ClassWithDetails {
	return models.ClassWithDetails{
		Class: models.Class{
			ID:          id,
			Name:        "Seed " + id,
			Subject:     "Subject",
			TeacherID:   teacherID,
			RoomID:      roomID,
			DayOfWeek:   day,
			StartTime:   start,
			EndTime:     end,
			MaxStudents: 30,
			Color:       models.DefaultClassColor,
		},
		TeacherName: "Teacher " + teacherID,
		RoomName:    "Room " + roomID,
	}
}

func intPtr(v int) *int { return &v }

func TestClassServiceCreate(t *testing.T) {
	repo := newMockClassRepo()
	service := newClassService(repo)

	created, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Algebra",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   intPtr(1),
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxStudents: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultClassColor, created.Color)
	assert.Len(t, repo.items, 1)
}

func TestClassServiceCreateTeacherConflict(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:00"))
	service := newClassService(repo)

	_, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Algebra",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r2",
		DayOfWeek:   intPtr(1),
		StartTime:   "09:30",
		EndTime:     "10:30",
		MaxStudents: 30,
	})
	require.Error(t, err)

	var conflictErr *models.ClassConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "c1", conflictErr.Conflicts[0].ID)
	assert.Equal(t, "09:00 - 10:00", conflictErr.Conflicts[0].Time)
	assert.Len(t, repo.items, 1)
}

func TestClassServiceCreateRoomConflict(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 2, "13:00", "15:00"))
	service := newClassService(repo)

	_, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Biology",
		Subject:     "Science",
		TeacherID:   "t2",
		RoomID:      "r1",
		DayOfWeek:   intPtr(2),
		StartTime:   "14:00",
		EndTime:     "16:00",
		MaxStudents: 25,
	})
	var conflictErr *models.ClassConflictError
	require.True(t, errors.As(err, &conflictErr))
}

func TestClassServiceTouchingEndpointsNoConflict(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:00"))
	service := newClassService(repo)

	_, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Geometry",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   intPtr(1),
		StartTime:   "10:00",
		EndTime:     "11:00",
		MaxStudents: 30,
	})
	require.NoError(t, err)
	assert.Len(t, repo.items, 2)
}

func TestClassServiceDifferentDayNoConflict(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:00"))
	service := newClassService(repo)

	_, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Geometry",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   intPtr(2),
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxStudents: 30,
	})
	require.NoError(t, err)
}

func TestClassServiceOverlapWithoutSharedResourceNoConflict(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:00"))
	service := newClassService(repo)

	_, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Chemistry",
		Subject:     "Science",
		TeacherID:   "t2",
		RoomID:      "r2",
		DayOfWeek:   intPtr(1),
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxStudents: 30,
	})
	require.NoError(t, err)
}

func TestClassServiceUpdateExcludesSelf(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:00"))
	service := newClassService(repo)

	// Shifting within its own window must not conflict with itself.
	start := "09:30"
	end := "10:30"
	updated, err := service.Update(context.Background(), "c1", UpdateClassRequest{
		StartTime: &start,
		EndTime:   &end,
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", updated.StartTime)
}

func TestClassServiceUpdateConflict(t *testing.T) {
	repo := newMockClassRepo(
		seedClass("c1", "t1", "r1", 1, "09:00", "10:00"),
		seedClass("c2", "t1", "r2", 1, "11:00", "12:00"),
	)
	service := newClassService(repo)

	start := "09:30"
	end := "10:30"
	_, err := service.Update(context.Background(), "c2", UpdateClassRequest{
		StartTime: &start,
		EndTime:   &end,
	})
	var conflictErr *models.ClassConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "c1", conflictErr.Conflicts[0].ID)
}

func TestClassServiceInvertedRangeRejected(t *testing.T) {
	service := newClassService(newMockClassRepo())

	_, err := service.Create(context.Background(), CreateClassRequest{
		Name:        "Backwards",
		Subject:     "Math",
		TeacherID:   "t1",
		RoomID:      "r1",
		DayOfWeek:   intPtr(1),
		StartTime:   "11:00",
		EndTime:     "10:00",
		MaxStudents: 30,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestClassServiceCreateValidationNamesFields(t *testing.T) {
	service := newClassService(newMockClassRepo())

	_, err := service.Create(context.Background(), CreateClassRequest{Name: "Algebra"})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Details, "subject is required")
	assert.Contains(t, appErr.Details, "teacher_id is required")
	assert.Contains(t, appErr.Details, "day_of_week is required")
	assert.Contains(t, appErr.Details, "start_time is required")
}

func TestClassServiceConcurrentCreatesSingleWinner(t *testing.T) {
	repo := newMockClassRepo()
	service := newClassService(repo)

	// Every request wants the same teacher in the same slot; the serialized
	// scan-and-insert must let exactly one through.
	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Create(context.Background(), CreateClassRequest{
				Name:        fmt.Sprintf("Session %d", i),
				Subject:     "Math",
				TeacherID:   "t1",
				RoomID:      fmt.Sprintf("r%d", i),
				DayOfWeek:   intPtr(1),
				StartTime:   "09:00",
				EndTime:     "10:00",
				MaxStudents: 30,
			})
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflictErr *models.ClassConflictError
		require.True(t, errors.As(err, &conflictErr))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, repo.items, 1)
}

func TestClassServiceMovePreservesDuration(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:30"))
	service := newClassService(repo)

	moved, err := service.Move(context.Background(), "c1", 3, "14:00")
	require.NoError(t, err)
	assert.Equal(t, 3, moved.DayOfWeek)
	assert.Equal(t, "14:00", moved.StartTime)
	assert.Equal(t, "15:30", moved.EndTime)
}

func TestClassServiceMoveConflict(t *testing.T) {
	repo := newMockClassRepo(
		seedClass("c1", "t1", "r1", 1, "09:00", "10:00"),
		seedClass("c2", "t1", "r2", 2, "09:00", "10:00"),
	)
	service := newClassService(repo)

	_, err := service.Move(context.Background(), "c2", 1, "09:00")
	var conflictErr *models.ClassConflictError
	require.True(t, errors.As(err, &conflictErr))

	// The move must not have persisted.
	untouched, findErr := repo.FindByID(context.Background(), "c2")
	require.NoError(t, findErr)
	assert.Equal(t, 2, untouched.DayOfWeek)
}

func TestClassServiceCheckConflicts(t *testing.T) {
	repo := newMockClassRepo(seedClass("c1", "t1", "r1", 1, "09:00", "10:00"))
	service := newClassService(repo)

	conflicts, err := service.CheckConflicts(context.Background(), CheckConflictRequest{
		TeacherID: "t1",
		RoomID:    "r9",
		DayOfWeek: intPtr(1),
		StartTime: "09:30",
		EndTime:   "10:30",
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "c1", conflicts[0].ID)
	// Probing never writes.
	assert.Len(t, repo.items, 1)
}

func TestClassServiceDeleteNotFound(t *testing.T) {
	service := newClassService(newMockClassRepo())

	err := service.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
