package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgrid/classgrid-api/internal/models"
)

func TestRoomRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'occupied') AS occupied FROM rooms")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "occupied"}).AddRow(4, 1))

	total, occupied, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, occupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec("INSERT INTO rooms").
		WithArgs(sqlmock.AnyArg(), "Lab A", 24, models.RoomTypeLaboratory, models.RoomStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	room := &models.Room{Name: "Lab A", Capacity: 24, Type: models.RoomTypeLaboratory, Equipment: pq.StringArray{"projector"}}
	require.NoError(t, repo.Create(context.Background(), room))
	assert.Equal(t, models.RoomStatusAvailable, room.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryListTypeFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectQuery(`FROM rooms WHERE 1=1 AND type = \$1`).
		WithArgs("laboratory").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capacity", "type", "status", "equipment"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rooms WHERE 1=1 AND type = $1")).
		WithArgs("laboratory").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.RoomFilter{Type: "laboratory"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
