package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

// ErrConflict is returned when a row changed between read and write.
var ErrConflict = errors.New("concurrent update")

// AdmitFunc is called inside the repository's transaction with the current
// resource count. A non-nil return aborts the write.
type AdmitFunc func(count int) error

// Lookups return *domain.NotFoundError for unknown ids.

type CatalogRepository interface {
	// CreatePartType counts the account's part types, admits, and inserts in one transaction.
	CreatePartType(ctx context.Context, pt domain.PartType, admit AdmitFunc) error
	GetPartType(ctx context.Context, id string) (*domain.PartType, error)
	CreateInspectionPlan(ctx context.Context, plan domain.InspectionPlan) error
	GetInspectionPlan(ctx context.Context, id string) (*domain.InspectionPlan, error)
}

type ShipmentRepository interface {
	CreateShipment(ctx context.Context, s domain.Shipment) error
	GetShipment(ctx context.Context, id string) (*domain.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, id string, status domain.ShipmentStatus, at time.Time) error
}

type InspectionRepository interface {
	// CreateInspection counts the account's inspections created since the given
	// time, admits, inserts the inspection, and moves its shipment to in_inspection.
	CreateInspection(ctx context.Context, insp domain.Inspection, since time.Time, admit AdmitFunc) error
	GetInspection(ctx context.Context, id string) (*domain.Inspection, error)

	// SaveInspectionProgress stores characteristic results of an unfinished
	// inspection. It only applies while the stored version equals insp.Version
	// and bumps it. Returns ErrConflict if the inspection was finalized or
	// written meanwhile.
	SaveInspectionProgress(ctx context.Context, insp domain.Inspection) error

	// FinalizeInspection writes the resolved inspection, the proposed shipment
	// status, and an optional quarantine batch in a single transaction, under
	// the same version guard as SaveInspectionProgress.
	FinalizeInspection(ctx context.Context, insp domain.Inspection, status domain.ShipmentStatus, batch *domain.QuarantineBatch) error
}

type QuarantineRepository interface {
	CreateQuarantineBatch(ctx context.Context, b domain.QuarantineBatch) error
	GetQuarantineBatch(ctx context.Context, id string) (*domain.QuarantineBatch, error)

	// UpdateQuarantineBatch applies the batch only if the stored version still
	// equals b.Version, bumps the version, and appends the audit entry.
	UpdateQuarantineBatch(ctx context.Context, b domain.QuarantineBatch, audit domain.QuarantineAuditEntry) error
	ListQuarantineAudit(ctx context.Context, batchID string) ([]domain.QuarantineAuditEntry, error)
}

type GageRepository interface {
	CreateGage(ctx context.Context, g domain.Gage) error
	GetGage(ctx context.Context, id string) (*domain.Gage, error)
	UpdateGage(ctx context.Context, g domain.Gage) error
	ListGages(ctx context.Context, accountID string) ([]domain.Gage, error)
}

// QualityRepository is the full persistence boundary.
type QualityRepository interface {
	CatalogRepository
	ShipmentRepository
	InspectionRepository
	QuarantineRepository
	GageRepository
}
