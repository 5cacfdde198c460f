package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classgrid/classgrid-api/internal/models"
	"github.com/classgrid/classgrid-api/internal/service"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
	"github.com/classgrid/classgrid-api/pkg/response"
)

type classService interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassWithDetails, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ClassWithDetails, error)
	Create(ctx context.Context, req service.CreateClassRequest) (*models.ClassWithDetails, error)
	Update(ctx context.Context, id string, req service.UpdateClassRequest) (*models.ClassWithDetails, error)
	CheckConflicts(ctx context.Context, req service.CheckConflictRequest) ([]models.ClassConflict, error)
	Delete(ctx context.Context, id string) error
}

// ClassHandler wires the class service to HTTP routes. Schedule conflicts
// surface as 409 responses carrying the colliding classes.
type ClassHandler struct {
	classes classService
}

// NewClassHandler constructs a new ClassHandler.
func NewClassHandler(classes classService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param teacherId query string false "Filter by teacher"
// @Param roomId query string false "Filter by room"
// @Param dayOfWeek query int false "Filter by day of week (0-6)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (name,day_of_week,start_time,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	filter := models.ClassFilter{
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
		RoomID:    strings.TrimSpace(c.Query("roomId")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if day := c.Query("dayOfWeek"); day != "" {
		if parsed, err := strconv.Atoi(day); err == nil {
			filter.DayOfWeek = &parsed
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	classes, pagination, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	cls, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cls, nil)
}

// Create godoc
// @Summary Schedule a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflicting classes listed in conflicts"
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}
	cls, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, cls)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflicting classes listed in conflicts"
// @Router /classes/{id} [patch]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}
	cls, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cls, nil)
}

// CheckConflicts godoc
// @Summary Probe the conflict detector
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CheckConflictRequest true "Candidate slot"
// @Success 200 {object} response.Envelope
// @Router /classes/check-conflicts [post]
func (h *ClassHandler) CheckConflicts(c *gin.Context) {
	var req service.CheckConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict probe"))
		return
	}
	conflicts, err := h.classes.CheckConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"has_conflict": len(conflicts) > 0, "conflicts": conflicts}, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *ClassHandler) respondError(c *gin.Context, err error) {
	var conflictErr *models.ClassConflictError
	if errors.As(err, &conflictErr) {
		response.Conflict(c, conflictErr.Message, conflictErr.Conflicts)
		return
	}
	response.Error(c, err)
}
