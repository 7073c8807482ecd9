package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// Action types
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"

	// Entity types
	AuditEntityBeneficiary = "beneficiary"
	AuditEntityVisit       = "visit"
	AuditEntityItem        = "item"
	AuditEntityMission     = "mission"
)

// AuditLog is an immutable record of one mutation elsewhere in the system.
// Rows are append-only; no update or delete path exists.
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ActorID      uuid.UUID       `json:"actor_id" db:"actor_id"`
	ActorName    string          `json:"actor_name" db:"actor_name"`
	ActorEmail   string          `json:"actor_email" db:"actor_email"`
	EntityType   string          `json:"entity_type" db:"entity_type"`
	EntityID     uuid.UUID       `json:"entity_id" db:"entity_id"`
	Action       string          `json:"action" db:"action"`
	PreviousData json.RawMessage `json:"previous_data,omitempty" db:"previous_data"`
	NewData      json.RawMessage `json:"new_data,omitempty" db:"new_data"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// AuditEvent is the domain event emitted by every mutating core operation.
// It travels through the outbox and is turned into an AuditLog row by the
// audit writer. EventID is deterministic per mutation so at-least-once
// delivery never produces duplicate log rows.
type AuditEvent struct {
	EventID      uuid.UUID       `json:"event_id"`
	Actor        Actor           `json:"actor"`
	EntityType   string          `json:"entity_type"`
	EntityID     uuid.UUID       `json:"entity_id"`
	Action       string          `json:"action"`
	PreviousData json.RawMessage `json:"previous_data,omitempty"`
	NewData      json.RawMessage `json:"new_data,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type AuditFilters struct {
	Pagination
	ActorID    string    `json:"actor_id" form:"actor_id"`
	EntityType string    `json:"entity_type" form:"entity_type"`
	EntityID   string    `json:"entity_id" form:"entity_id"`
	Action     string    `json:"action" form:"action"`
	StartDate  time.Time `json:"start_date" form:"start_date"`
	EndDate    time.Time `json:"end_date" form:"end_date"`
}

// AggregateStats summarizes audit activity for the admin dashboard.
type AggregateStats struct {
	TotalLogs     int64          `json:"total_logs"`
	ActionCounts  map[string]int `json:"action_counts"`
	EntityCounts  map[string]int `json:"entity_counts"`
	ActorActivity map[string]int `json:"actor_activity"`
}
