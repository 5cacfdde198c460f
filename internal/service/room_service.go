package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/models"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
}

type roomClassCounter interface {
	CountByRoom(ctx context.Context, roomID string) (int, error)
}

// CreateRoomRequest represents payload for creating rooms.
type CreateRoomRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Capacity  int      `json:"capacity" validate:"required,gt=0"`
	Type      string   `json:"type" validate:"required,oneof=classroom laboratory studio auditorium library conference"`
	Status    string   `json:"status" validate:"omitempty,oneof=available occupied maintenance"`
	Equipment []string `json:"equipment" validate:"omitempty,dive,max=100"`
}

// UpdateRoomRequest represents a partial update; nil fields are left as-is.
type UpdateRoomRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Capacity  *int     `json:"capacity" validate:"omitempty,gt=0"`
	Type      *string  `json:"type" validate:"omitempty,oneof=classroom laboratory studio auditorium library conference"`
	Status    *string  `json:"status" validate:"omitempty,oneof=available occupied maintenance"`
	Equipment []string `json:"equipment" validate:"omitempty,dive,max=100"`
}

// RoomService orchestrates room operations.
type RoomService struct {
	repo      roomRepository
	classes   roomClassCounter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(repo roomRepository, classes roomClassCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, classes: classes, cache: cache, validator: validate, logger: logger}
}

// List returns rooms plus pagination data.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rooms, pagination, nil
}

// Get returns a room by id.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create registers a new room record.
func (s *RoomService) Create(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid room payload")
	}
	if err := s.ensureUniqueName(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	room := &models.Room{
		Name:      strings.TrimSpace(req.Name),
		Capacity:  req.Capacity,
		Type:      req.Type,
		Status:    req.Status,
		Equipment: pq.StringArray(req.Equipment),
	}
	if room.Status == "" {
		room.Status = models.RoomStatusAvailable
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.invalidateStats(ctx)
	return room, nil
}

// Update applies a partial update to an existing room.
func (s *RoomService) Update(ctx context.Context, id string, req UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid room payload")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if req.Name != nil {
		if err := s.ensureUniqueName(ctx, *req.Name, id); err != nil {
			return nil, err
		}
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Type != nil {
		room.Type = *req.Type
	}
	if req.Status != nil {
		room.Status = *req.Status
	}
	if req.Equipment != nil {
		room.Equipment = pq.StringArray(req.Equipment)
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	s.invalidateStats(ctx)
	return room, nil
}

// Delete removes a room unless classes still reference it.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if s.classes != nil {
		count, err := s.classes.CountByRoom(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room references")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "room still has scheduled classes")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *RoomService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room name uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "room name already used")
	}
	return nil
}

func (s *RoomService) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}
}
