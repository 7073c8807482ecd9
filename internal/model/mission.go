package model

import (
	"time"

	"github.com/google/uuid"
)

type MissionStatus string

const (
	MissionStatusPlanned   MissionStatus = "planned"
	MissionStatusOngoing   MissionStatus = "ongoing"
	MissionStatusCompleted MissionStatus = "completed"
	MissionStatusCancelled MissionStatus = "cancelled"
)

// Mission is a planned or completed field operation with pre-allocated stock.
type Mission struct {
	Base
	Title      string        `db:"title" json:"title"`
	Date       time.Time     `db:"date" json:"date"`
	Status     MissionStatus `db:"status" json:"status"`
	Volunteers []uuid.UUID   `json:"volunteers,omitempty"`
	Allocated  []Allocation  `json:"allocated_items,omitempty"`
}

// Allocation is one (item, quantity) pair reserved for a mission.
type Allocation struct {
	MissionID uuid.UUID `db:"mission_id" json:"mission_id"`
	ItemID    uuid.UUID `db:"item_id" json:"item_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
}

// RecommendedItem is one advisory entry surfaced to a clinician or pharmacist
// during a consultation or dispensation.
type RecommendedItem struct {
	ItemID   uuid.UUID `json:"item_id"`
	Name     string    `json:"name"`
	Unit     string    `json:"unit"`
	OnHand   int       `json:"on_hand"`
	LowStock bool      `json:"low_stock"`
}

type CreateMissionRequest struct {
	Title      string       `json:"title" binding:"required"`
	Date       time.Time    `json:"date" binding:"required"`
	Volunteers []string     `json:"volunteers"`
	Allocated  []Allocation `json:"allocated_items"`
}

type UpdateMissionRequest struct {
	Title  *string    `json:"title"`
	Date   *time.Time `json:"date"`
	Status *string    `json:"status"`
}
