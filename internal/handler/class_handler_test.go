package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgrid/classgrid-api/internal/models"
	"github.com/classgrid/classgrid-api/internal/service"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type fakeClassService struct {
	created    *models.ClassWithDetails
	createErr  error
	updated    *models.ClassWithDetails
	updateErr  error
	conflicts  []models.ClassConflict
	deleteErr  error
	lastCreate service.CreateClassRequest
}

func (f *fakeClassService) List(context.Context, models.ClassFilter) ([]models.ClassWithDetails, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func (f *fakeClassService) Get(context.Context, string) (*models.ClassWithDetails, error) {
	return f.created, nil
}

func (f *fakeClassService) Create(_ context.Context, req service.CreateClassRequest) (*models.ClassWithDetails, error) {
	f.lastCreate = req
	return f.created, f.createErr
}

func (f *fakeClassService) Update(context.Context, string, service.UpdateClassRequest) (*models.ClassWithDetails, error) {
	return f.updated, f.updateErr
}

func (f *fakeClassService) CheckConflicts(context.Context, service.CheckConflictRequest) ([]models.ClassConflict, error) {
	return f.conflicts, nil
}

func (f *fakeClassService) Delete(context.Context, string) error {
	return f.deleteErr
}

type envelope struct {
	Data      map[string]interface{}   `json:"data"`
	Error     *appErrors.Error         `json:"error"`
	Conflicts []map[string]interface{} `json:"conflicts"`
	Meta      map[string]interface{}   `json:"meta"`
}

func performJSON(t *testing.T, handle gin.HandlerFunc, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handle(c)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

const validClassBody = `{"name":"Algebra","subject":"Math","teacher_id":"t1","room_id":"r1","day_of_week":1,"start_time":"09:00","end_time":"10:00","max_students":30}`

func TestClassHandlerCreate(t *testing.T) {
	fake := &fakeClassService{
		created: &models.ClassWithDetails{Class: models.Class{ID: "c1", Name: "Algebra"}},
	}
	handler := NewClassHandler(fake)

	rec, env := performJSON(t, handler.Create, http.MethodPost, "/classes", validClassBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "c1", env.Data["id"])
	assert.Equal(t, "t1", fake.lastCreate.TeacherID)
}

func TestClassHandlerCreateConflict(t *testing.T) {
	fake := &fakeClassService{
		createErr: &models.ClassConflictError{
			Message: "schedule conflict detected",
			Conflicts: []models.ClassConflict{
				{ID: "c9", Name: "Biology", Teacher: "Ada Lovelace", Room: "Lab A", Time: "09:00 - 10:00"},
			},
		},
	}
	handler := NewClassHandler(fake)

	rec, env := performJSON(t, handler.Create, http.MethodPost, "/classes", validClassBody)

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "schedule conflict detected", env.Error.Message)
	require.Len(t, env.Conflicts, 1)
	assert.Equal(t, "c9", env.Conflicts[0]["id"])
	assert.Equal(t, "09:00 - 10:00", env.Conflicts[0]["time"])
}

func TestClassHandlerCreateMalformedBody(t *testing.T) {
	handler := NewClassHandler(&fakeClassService{})

	rec, _ := performJSON(t, handler.Create, http.MethodPost, "/classes", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassHandlerCreateValidationListsFields(t *testing.T) {
	valErr := appErrors.Clone(appErrors.ErrValidation, "invalid class payload")
	valErr.Details = []string{"subject is required", "teacher_id is required"}
	handler := NewClassHandler(&fakeClassService{createErr: valErr})

	rec, env := performJSON(t, handler.Create, http.MethodPost, "/classes", `{"name":"Algebra"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "subject is required")
	assert.Contains(t, env.Error.Details, "teacher_id is required")
}

func TestClassHandlerUpdateConflict(t *testing.T) {
	fake := &fakeClassService{
		updateErr: &models.ClassConflictError{
			Message:   "schedule conflict detected",
			Conflicts: []models.ClassConflict{{ID: "c9"}},
		},
	}
	handler := NewClassHandler(fake)

	rec, env := performJSON(t, handler.Update, http.MethodPatch, "/classes/c1", `{"start_time":"09:00"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, env.Conflicts, 1)
}

func TestClassHandlerCheckConflicts(t *testing.T) {
	fake := &fakeClassService{
		conflicts: []models.ClassConflict{{ID: "c9", Name: "Biology"}},
	}
	handler := NewClassHandler(fake)

	body := `{"teacher_id":"t1","room_id":"r1","day_of_week":1,"start_time":"09:00","end_time":"10:00"}`
	rec, env := performJSON(t, handler.CheckConflicts, http.MethodPost, "/classes/check-conflicts", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env.Data["has_conflict"])
}

func TestClassHandlerDeleteNotFound(t *testing.T) {
	handler := NewClassHandler(&fakeClassService{
		deleteErr: appErrors.Clone(appErrors.ErrNotFound, "class not found"),
	})

	rec, _ := performJSON(t, handler.Delete, http.MethodDelete, "/classes/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
