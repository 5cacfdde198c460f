package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/dto"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
)

type dashboardClassCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardTeacherCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardStudentCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardRoomCounter interface {
	Counts(ctx context.Context) (total int, occupied int, err error)
}

// DashboardService aggregates the stats snapshot, optionally served from
// cache.
type DashboardService struct {
	classes  dashboardClassCounter
	teachers dashboardTeacherCounter
	students dashboardStudentCounter
	rooms    dashboardRoomCounter
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(classes dashboardClassCounter, teachers dashboardTeacherCounter, students dashboardStudentCounter, rooms dashboardRoomCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{classes: classes, teachers: teachers, students: students, rooms: rooms, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Stats returns the dashboard snapshot plus whether it came from cache.
// Cache errors are logged and the aggregation falls through to the database.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, bool, error) {
	if s.cache != nil && s.cache.Enabled() {
		var cached dto.DashboardStats
		if hit, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	totalClasses, err := s.classes.Count(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	activeTeachers, err := s.teachers.CountActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	totalStudents, err := s.students.Count(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	totalRooms, occupiedRooms, err := s.rooms.Counts(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count rooms")
	}

	stats := &dto.DashboardStats{
		TotalClasses:    totalClasses,
		ActiveTeachers:  activeTeachers,
		TotalStudents:   totalStudents,
		RoomUtilization: utilization(occupiedRooms, totalRooms),
	}

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
		}
	}
	return stats, false, nil
}

// utilization rounds the occupied percentage; division by zero is defined as
// zero utilization.
func utilization(occupied, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(occupied) / float64(total) * 100))
}
