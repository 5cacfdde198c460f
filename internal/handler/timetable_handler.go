package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classgrid/classgrid-api/internal/dto"
	"github.com/classgrid/classgrid-api/internal/models"
	"github.com/classgrid/classgrid-api/internal/service"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
	"github.com/classgrid/classgrid-api/pkg/response"
)

type timetableService interface {
	Grid(ctx context.Context) (*dto.TimetableGrid, error)
	Relocate(ctx context.Context, req service.RelocateClassRequest) (*models.ClassWithDetails, error)
	Export(ctx context.Context, format string) (*service.ExportResult, error)
}

// TimetableHandler serves the weekly grid view and its exports.
type TimetableHandler struct {
	timetable timetableService
}

// NewTimetableHandler constructs a new TimetableHandler.
func NewTimetableHandler(timetable timetableService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable}
}

// Grid godoc
// @Summary Weekly timetable grid
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	grid, err := h.timetable.Grid(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Relocate godoc
// @Summary Relocate a class in the grid
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.RelocateClassRequest true "Target position"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflicting classes listed in conflicts"
// @Router /timetable/relocate [post]
func (h *TimetableHandler) Relocate(c *gin.Context) {
	var req service.RelocateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid relocate payload"))
		return
	}
	cls, err := h.timetable.Relocate(c.Request.Context(), req)
	if err != nil {
		var conflictErr *models.ClassConflictError
		if errors.As(err, &conflictErr) {
			response.Conflict(c, conflictErr.Message, conflictErr.Conflicts)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cls, nil)
}

// Export godoc
// @Summary Export the timetable
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} binary
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	result, err := h.timetable.Export(c.Request.Context(), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
