package model

import "github.com/google/uuid"

// DispenseLine is one requested (item, quantity) pair.
type DispenseLine struct {
	ItemID   uuid.UUID `json:"item_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,gt=0"`
}

type DispenseRequest struct {
	Lines []DispenseLine `json:"lines" binding:"required,min=1,dive"`
	Notes string         `json:"notes"`
}
