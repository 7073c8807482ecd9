package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/internal/model"
)

// Sentinel errors the service layer maps onto its error taxonomy.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrStaleStatus       = errors.New("record status changed concurrently")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// TxBeginner starts a database transaction shared across repositories.
type TxBeginner interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
}

type BeneficiaryRepository interface {
	Create(ctx context.Context, b *model.Beneficiary) error
	Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error)
	Update(ctx context.Context, b *model.Beneficiary) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *model.BeneficiaryFilters) ([]*model.Beneficiary, int, error)
}

type VisitRepository interface {
	// Create inserts a visit; a second visit for the same beneficiary on the
	// same day fails with ErrDuplicate (unique index, serialized
	// check-and-create).
	Create(ctx context.Context, v *model.Visit) error
	Get(ctx context.Context, id uuid.UUID) (*model.Visit, error)

	// Stage writes are guarded by the expected current status; if the row
	// moved on concurrently the write affects zero rows and ErrStaleStatus
	// is returned.
	SetTriage(ctx context.Context, id uuid.UUID, triage *model.TriageRecord, from, to model.VisitStatus) error
	SetDoctor(ctx context.Context, id uuid.UUID, doctor *model.DoctorRecord, from, to model.VisitStatus) error
	SetStatus(ctx context.Context, id uuid.UUID, from, to model.VisitStatus) error
	CompleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, pharmacy *model.PharmacyRecord) error

	ListByStatusForDay(ctx context.Context, status model.VisitStatus, day time.Time) ([]*model.Visit, error)
	CountByStatusForDay(ctx context.Context, day time.Time) (map[model.VisitStatus]int, error)
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	Get(ctx context.Context, id uuid.UUID) (*model.Item, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Item, error)
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *model.ItemFilters) ([]*model.Item, int, error)

	// AdjustQuantity applies a signed delta with a non-negativity guard;
	// a decrement past zero returns ErrInsufficientStock. Returns the
	// quantity before and after the adjustment.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (before, after int, err error)
	// DecrementTx is the transactional variant used by dispensation.
	DecrementTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, qty int) (before, after int, err error)
}

type StockMovementRepository interface {
	Create(ctx context.Context, m *model.StockMovement) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error
	ListForItem(ctx context.Context, itemID uuid.UUID, p *model.Pagination) ([]*model.StockMovement, error)
}

type MissionRepository interface {
	Create(ctx context.Context, m *model.Mission) error
	Get(ctx context.Context, id uuid.UUID) (*model.Mission, error)
	Update(ctx context.Context, m *model.Mission) error
	List(ctx context.Context, p *model.Pagination) ([]*model.Mission, error)

	// ListForVolunteer returns non-cancelled missions the volunteer is
	// assigned to, nearest date first.
	ListForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]*model.Mission, error)
	// NextPlanned returns the nearest-dated mission still in planned state,
	// or ErrNotFound when none exists.
	NextPlanned(ctx context.Context) (*model.Mission, error)
	// AllocationsByCategory returns the allocated items of the given missions
	// whose item belongs to the category, joined with current item state.
	AllocationsByCategory(ctx context.Context, missionIDs []uuid.UUID, category model.ItemCategory) ([]*model.RecommendedItem, error)
}

type AuditRepository interface {
	// Create is idempotent on the log ID so at-least-once delivery never
	// produces duplicate rows.
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error)
	GetAggregateStats(ctx context.Context, filters *model.AuditFilters) (*model.AggregateStats, error)
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
