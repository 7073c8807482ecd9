package model

import (
	"time"

	"github.com/google/uuid"
)

// ItemCategory is the fixed inventory category vocabulary.
type ItemCategory string

const (
	CategoryMedications ItemCategory = "Medicamentos"
	CategoryFood        ItemCategory = "Alimentos"
	CategoryHygiene     ItemCategory = "Higiene"
	CategoryClothing    ItemCategory = "Vestuário"
	CategoryOther       ItemCategory = "Outros"
)

func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryMedications, CategoryFood, CategoryHygiene, CategoryClothing, CategoryOther:
		return true
	}
	return false
}

// LowStockThreshold flags items worth restocking soon.
const LowStockThreshold = 10

// Item is one inventory line. Quantity is never allowed to go negative;
// decrements are guarded at the database layer.
type Item struct {
	Base
	Name      string       `db:"name" json:"name"`
	Category  ItemCategory `db:"category" json:"category"`
	Unit      string       `db:"unit" json:"unit"`
	Quantity  int          `db:"quantity" json:"quantity"`
	UnitValue float64      `db:"unit_value" json:"unit_value"`
}

func (i *Item) LowStock() bool {
	return i.Quantity < LowStockThreshold
}

// StockMovementType classifies a stock mutation.
type StockMovementType string

const (
	MovementIn         StockMovementType = "in"
	MovementOut        StockMovementType = "out"
	MovementDispense   StockMovementType = "dispense"
	MovementAdjustment StockMovementType = "adjustment"
)

// StockMovement records one change to an item's on-hand quantity, with the
// before/after snapshot and an optional reference to the visit that caused it.
type StockMovement struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	ItemID         uuid.UUID         `db:"item_id" json:"item_id"`
	Type           StockMovementType `db:"type" json:"type"`
	Quantity       int               `db:"quantity" json:"quantity"`
	QuantityBefore int               `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int               `db:"quantity_after" json:"quantity_after"`
	Reason         string            `db:"reason" json:"reason,omitempty"`
	VisitID        *uuid.UUID        `db:"visit_id" json:"visit_id,omitempty"`
	ActorName      string            `db:"actor_name" json:"actor_name"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

type CreateItemRequest struct {
	Name      string  `json:"name" binding:"required"`
	Category  string  `json:"category" binding:"required"`
	Unit      string  `json:"unit" binding:"required"`
	Quantity  int     `json:"quantity" binding:"gte=0"`
	UnitValue float64 `json:"unit_value" binding:"gte=0"`
}

type UpdateItemRequest struct {
	Name      *string  `json:"name"`
	Category  *string  `json:"category"`
	Unit      *string  `json:"unit"`
	UnitValue *float64 `json:"unit_value"`
}

type AdjustStockRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

type ItemFilters struct {
	Pagination
	Category   string `json:"category" form:"category"`
	SearchTerm string `json:"search_term" form:"search_term"`
	LowStock   bool   `json:"low_stock" form:"low_stock"`
}
