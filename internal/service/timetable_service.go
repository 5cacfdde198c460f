package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/classgrid/classgrid-api/internal/dto"
	"github.com/classgrid/classgrid-api/internal/models"
	appErrors "github.com/classgrid/classgrid-api/pkg/errors"
	"github.com/classgrid/classgrid-api/pkg/export"
)

type timetableClassLister interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassWithDetails, int, error)
}

type classMover interface {
	Move(ctx context.Context, id string, dayOfWeek int, startTime string) (*models.ClassWithDetails, error)
}

// RelocateClassRequest moves a class to a new grid position.
type RelocateClassRequest struct {
	ClassID   string `json:"class_id" validate:"required"`
	DayOfWeek *int   `json:"day_of_week" validate:"required,gte=0,lte=6"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
}

// ExportResult carries a rendered timetable document.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

var dayNames = map[int]string{
	0: "Sunday",
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
}

// TimetableService composes the weekly grid view. Classes are placed by exact
// start-time match against the configured slot labels; classes starting
// off-slot stay persisted but never appear in the grid.
type TimetableService struct {
	classes timetableClassLister
	mover   classMover
	days    []int
	slots   []string
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewTimetableService constructs a TimetableService for the configured days
// and slots.
func NewTimetableService(classes timetableClassLister, mover classMover, days []int, slots []string, logger *zap.Logger) *TimetableService {
	if len(days) == 0 {
		days = []int{1, 2, 3, 4, 5}
	}
	if len(slots) == 0 {
		slots = []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		classes: classes,
		mover:   mover,
		days:    days,
		slots:   slots,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// Grid builds the weekly grid plus both conflict views: the per-cell flag
// (any doubling in a cell) and the resource conflict list (pairs sharing a
// slot and a teacher or room).
func (s *TimetableService) Grid(ctx context.Context) (*dto.TimetableGrid, error) {
	classes, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	grid := &dto.TimetableGrid{
		Days:  append([]int(nil), s.days...),
		Slots: append([]string(nil), s.slots...),
		Cells: make([]dto.TimetableCell, 0, len(s.days)*len(s.slots)),
	}

	for _, slot := range s.slots {
		for _, day := range s.days {
			cell := dto.TimetableCell{DayOfWeek: day, Slot: slot}
			for _, cls := range classes {
				if cls.DayOfWeek == day && cls.StartTime == slot {
					cell.Classes = append(cell.Classes, cls)
				}
			}
			cell.Conflict = len(cell.Classes) > 1
			grid.Cells = append(grid.Cells, cell)
		}
	}

	grid.ResourceConflicts = resourceConflicts(classes)
	return grid, nil
}

// Relocate drags a class to a new position, running the full conflict check
// before anything persists.
func (s *TimetableService) Relocate(ctx context.Context, req RelocateClassRequest) (*models.ClassWithDetails, error) {
	if req.ClassID == "" || req.DayOfWeek == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id and day_of_week are required")
	}
	return s.mover.Move(ctx, req.ClassID, *req.DayOfWeek, req.StartTime)
}

// Export renders the grid as a downloadable document. Supported formats are
// "csv" and "pdf".
func (s *TimetableService) Export(ctx context.Context, format string) (*ExportResult, error) {
	grid, err := s.Grid(ctx)
	if err != nil {
		return nil, err
	}
	table := gridTable(grid)

	switch strings.ToLower(format) {
	case "csv", "":
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv timetable")
		}
		return &ExportResult{FileName: "timetable.csv", ContentType: "text/csv", Content: content}, nil
	case "pdf":
		content, err := s.pdf.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf timetable")
		}
		return &ExportResult{FileName: "timetable.pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *TimetableService) loadAll(ctx context.Context) ([]models.ClassWithDetails, error) {
	var all []models.ClassWithDetails
	page := 1
	for {
		classes, total, err := s.classes.List(ctx, models.ClassFilter{Page: page, PageSize: 100})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes for timetable")
		}
		all = append(all, classes...)
		if len(classes) == 0 || len(all) >= total {
			return all, nil
		}
		page++
	}
}

// resourceConflicts reports every ordered-once pair of classes sharing a
// start slot and a teacher or room. This is the banner-level warning and is
// intentionally stricter than the per-cell doubling flag.
func resourceConflicts(classes []models.ClassWithDetails) []dto.ResourceConflict {
	var conflicts []dto.ResourceConflict
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			a, b := classes[i], classes[j]
			if a.DayOfWeek != b.DayOfWeek || a.StartTime != b.StartTime {
				continue
			}
			var dimension string
			switch {
			case a.TeacherID == b.TeacherID:
				dimension = "teacher"
			case a.RoomID == b.RoomID:
				dimension = "room"
			default:
				continue
			}
			conflicts = append(conflicts, dto.ResourceConflict{
				DayOfWeek: a.DayOfWeek,
				Slot:      a.StartTime,
				ClassID:   a.ID,
				ClassName: a.Name,
				OtherID:   b.ID,
				OtherName: b.Name,
				Dimension: dimension,
			})
		}
	}
	return conflicts
}

// gridTable flattens the grid into an exportable table: one row per slot, one
// column per day, plus the leading time column.
func gridTable(grid *dto.TimetableGrid) export.Table {
	headers := make([]string, 0, len(grid.Days)+1)
	headers = append(headers, "Time")
	for _, day := range grid.Days {
		name, ok := dayNames[day]
		if !ok {
			name = fmt.Sprintf("Day %d", day)
		}
		headers = append(headers, name)
	}

	cellIndex := make(map[string][]models.ClassWithDetails, len(grid.Cells))
	for _, cell := range grid.Cells {
		cellIndex[fmt.Sprintf("%d|%s", cell.DayOfWeek, cell.Slot)] = cell.Classes
	}

	rows := make([][]string, 0, len(grid.Slots))
	for _, slot := range grid.Slots {
		row := make([]string, 0, len(headers))
		row = append(row, slot)
		for _, day := range grid.Days {
			classes := cellIndex[fmt.Sprintf("%d|%s", day, slot)]
			labels := make([]string, 0, len(classes))
			for _, cls := range classes {
				labels = append(labels, fmt.Sprintf("%s (%s, %s)", cls.Name, cls.TeacherName, cls.RoomName))
			}
			row = append(row, strings.Join(labels, "; "))
		}
		rows = append(rows, row)
	}

	return export.Table{Title: "Weekly Timetable", Headers: headers, Rows: rows}
}
