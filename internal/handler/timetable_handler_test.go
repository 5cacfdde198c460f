package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgrid/classgrid-api/internal/dto"
	"github.com/classgrid/classgrid-api/internal/models"
	"github.com/classgrid/classgrid-api/internal/service"
)

type fakeTimetableService struct {
	grid        *dto.TimetableGrid
	gridErr     error
	relocated   *models.ClassWithDetails
	relocateErr error
	export      *service.ExportResult
	exportErr   error
	lastFormat  string
}

func (f *fakeTimetableService) Grid(context.Context) (*dto.TimetableGrid, error) {
	return f.grid, f.gridErr
}

func (f *fakeTimetableService) Relocate(context.Context, service.RelocateClassRequest) (*models.ClassWithDetails, error) {
	return f.relocated, f.relocateErr
}

func (f *fakeTimetableService) Export(_ context.Context, format string) (*service.ExportResult, error) {
	f.lastFormat = format
	return f.export, f.exportErr
}

func TestTimetableHandlerGrid(t *testing.T) {
	handler := NewTimetableHandler(&fakeTimetableService{
		grid: &dto.TimetableGrid{Days: []int{1, 2, 3, 4, 5}, Slots: []string{"09:00"}},
	})

	rec, env := performJSON(t, handler.Grid, http.MethodGet, "/timetable", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.Data["days"], 5)
}

func TestTimetableHandlerRelocateConflict(t *testing.T) {
	handler := NewTimetableHandler(&fakeTimetableService{
		relocateErr: &models.ClassConflictError{
			Message:   "schedule conflict detected",
			Conflicts: []models.ClassConflict{{ID: "c9"}},
		},
	})

	body := `{"class_id":"c1","day_of_week":2,"start_time":"10:00"}`
	rec, env := performJSON(t, handler.Relocate, http.MethodPost, "/timetable/relocate", body)

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, env.Conflicts, 1)
	assert.Equal(t, "c9", env.Conflicts[0]["id"])
}

func TestTimetableHandlerExport(t *testing.T) {
	fake := &fakeTimetableService{
		export: &service.ExportResult{FileName: "timetable.csv", ContentType: "text/csv", Content: []byte("Time,Monday\n")},
	}
	handler := NewTimetableHandler(fake)

	rec, _ := performJSON(t, handler.Export, http.MethodGet, "/timetable/export?format=csv", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", fake.lastFormat)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timetable.csv")
}
