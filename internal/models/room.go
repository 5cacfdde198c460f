package models

import "github.com/lib/pq"

// Room types supported by the facility catalog.
const (
	RoomTypeClassroom  = "classroom"
	RoomTypeLaboratory = "laboratory"
	RoomTypeStudio     = "studio"
	RoomTypeAuditorium = "auditorium"
	RoomTypeLibrary    = "library"
	RoomTypeConference = "conference"
)

// Room occupancy statuses.
const (
	RoomStatusAvailable   = "available"
	RoomStatusOccupied    = "occupied"
	RoomStatusMaintenance = "maintenance"
)

// Room represents a bookable physical space.
type Room struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Capacity  int            `db:"capacity" json:"capacity"`
	Type      string         `db:"type" json:"type"`
	Status    string         `db:"status" json:"status"`
	Equipment pq.StringArray `db:"equipment" json:"equipment"`
}

// RoomFilter defines filter criteria for listing rooms.
type RoomFilter struct {
	Search    string
	Type      string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
