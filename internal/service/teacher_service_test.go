package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/models"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type mockTeacherRepo struct {
	items      map[string]*models.Teacher
	emailIndex map[string]string
	listResult []models.Teacher
	listTotal  int
	listErr    error
	deleted    []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	if owner, ok := m.emailIndex[email]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type stubClassCounts struct {
	byTeacher map[string]int
	byRoom    map[string]int
}

func (s *stubClassCounts) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	return s.byTeacher[teacherID], nil
}

func (s *stubClassCounts) CountByRoom(ctx context.Context, roomID string) (int, error) {
	return s.byRoom[roomID], nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, &stubClassCounts{}, nil, validator.New(), zap.NewNop())

	teacher, err := service.Create(context.Background(), CreateTeacherRequest{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Subject: "Mathematics",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", teacher.Email)
	assert.True(t, teacher.Active)
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockTeacherRepo{emailIndex: map[string]string{"ada@example.com": "another"}}
	service := NewTeacherService(repo, &stubClassCounts{}, nil, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTeacherRequest{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Subject: "Mathematics",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestTeacherServicePartialUpdate(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Name: "Ada Lovelace", Email: "ada@example.com", Subject: "Mathematics", Active: true},
		},
	}
	service := NewTeacherService(repo, &stubClassCounts{}, nil, validator.New(), zap.NewNop())

	subject := "Computer Science"
	updated, err := service.Update(context.Background(), "t1", UpdateTeacherRequest{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", updated.Subject)
	assert.Equal(t, "ada@example.com", updated.Email)
	assert.Equal(t, "Ada Lovelace", updated.Name)
}

func TestTeacherServiceDeleteBlockedByClasses(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Name: "Ada Lovelace", Email: "ada@example.com", Subject: "Mathematics", Active: true},
		},
	}
	counts := &stubClassCounts{byTeacher: map[string]int{"t1": 3}}
	service := NewTeacherService(repo, counts, nil, validator.New(), zap.NewNop())

	err := service.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)
}

func TestTeacherServiceDelete(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Name: "Ada Lovelace", Email: "ada@example.com", Subject: "Mathematics", Active: true},
		},
	}
	service := NewTeacherService(repo, &stubClassCounts{}, nil, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, repo.deleted)
}

func TestTeacherServiceDeleteNotFound(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, &stubClassCounts{}, nil, validator.New(), zap.NewNop())

	err := service.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
