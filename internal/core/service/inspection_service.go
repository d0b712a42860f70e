package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

type InspectionStore interface {
	port.CatalogRepository
	port.ShipmentRepository
	port.InspectionRepository
}

type InspectionService struct {
	base
	repo InspectionStore
}

func NewInspectionService(repo InspectionStore, opts ...Option) *InspectionService {
	return &InspectionService{base: newBase(opts), repo: repo}
}

// RecordOutcome is what a result submission produced. ShipmentStatus is empty
// while the inspection is still pending; Batch is set when a failed lot was
// routed into quarantine.
type RecordOutcome struct {
	Inspection     *domain.Inspection
	Summary        domain.Summary
	ShipmentStatus domain.ShipmentStatus
	Batch          *domain.QuarantineBatch
}

func (s *InspectionService) Start(ctx context.Context, p domain.Principal, shipmentID, planID string, sampleSize int) (*domain.Inspection, error) {
	if err := requireFeature(p, domain.FeatureInspections); err != nil {
		return nil, err
	}

	shipment, err := s.repo.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := owned(p, shipment.AccountID, "shipment", shipmentID); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetInspectionPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.PartTypeID != shipment.PartTypeID {
		return nil, &domain.ValidationError{
			Field:  "plan_id",
			Reason: fmt.Sprintf("plan %s is for part type %s, shipment is %s", plan.ID, plan.PartTypeID, shipment.PartTypeID),
		}
	}

	now := s.now()
	insp, err := domain.NewInspection(s.newID(), p.AccountID, shipmentID, *plan, sampleSize, p.ID, now)
	if err != nil {
		return nil, err
	}

	admit := func(count int) error {
		return domain.CheckQuota(p.Tier, domain.ResourceInspectionsPerMonth, count)
	}
	if err := s.repo.CreateInspection(ctx, *insp, monthStart(now), admit); err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}

	s.log.Info("inspection started",
		"inspection_id", insp.ID,
		"shipment_id", shipmentID,
		"plan_id", planID,
		"characteristics", len(insp.Characteristics),
	)
	return insp, nil
}

func (s *InspectionService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Inspection, error) {
	insp, err := s.repo.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(p, insp.AccountID, "inspection", id); err != nil {
		return nil, err
	}
	return insp, nil
}

// Record applies inspector entries. Once the inspection resolves, the proposed
// shipment status and any quarantine batch are written together with it.
func (s *InspectionService) Record(ctx context.Context, p domain.Principal, inspectionID string, entries []domain.ResultEntry, requestID string) (outcome *RecordOutcome, err error) {
	if err := requireFeature(p, domain.FeatureInspections); err != nil {
		return nil, err
	}

	release, err := s.claim(ctx, "inspection:"+inspectionID, requestID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	insp, err := s.Get(ctx, p, inspectionID)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.GetInspectionPlan(ctx, insp.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next, summary, err := insp.Record(*plan, entries, now)
	if err != nil {
		return nil, err
	}
	outcome = &RecordOutcome{Inspection: next, Summary: summary}

	status, resolved := domain.ProposedShipmentStatus(summary.Overall)
	if !resolved {
		if err := s.repo.SaveInspectionProgress(ctx, *next); err != nil {
			return nil, conflict(fmt.Errorf("save inspection progress: %w", err))
		}
		next.Version++
		return outcome, nil
	}
	outcome.ShipmentStatus = status

	if summary.Overall == domain.ResultFail {
		batch, err := s.quarantineFailedLot(ctx, p, next, plan)
		if err != nil {
			return nil, err
		}
		outcome.Batch = batch
	}

	if err := s.repo.FinalizeInspection(ctx, *next, status, outcome.Batch); err != nil {
		return nil, conflict(fmt.Errorf("finalize inspection: %w", err))
	}
	next.Version++

	s.log.Info("inspection resolved",
		"inspection_id", next.ID,
		"shipment_id", next.ShipmentID,
		"overall", summary.Overall,
		"pass", summary.PassCount,
		"fail", summary.FailCount,
		"pending", summary.PendingCount,
		"shipment_status", status,
	)
	return outcome, nil
}

// quarantineFailedLot builds the batch for a failed lot, or returns nil when
// the tier has no quarantine workflow.
func (s *InspectionService) quarantineFailedLot(ctx context.Context, p domain.Principal, insp *domain.Inspection, plan *domain.InspectionPlan) (*domain.QuarantineBatch, error) {
	ok, err := domain.Permits(p.Tier, domain.FeatureQuarantine)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Warn("failed lot not quarantined, tier lacks quarantine", "inspection_id", insp.ID, "tier", p.Tier)
		return nil, nil
	}

	shipment, err := s.repo.GetShipment(ctx, insp.ShipmentID)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, id := range insp.FailedSpecs() {
		if spec, ok := plan.Spec(id); ok {
			names = append(names, spec.Name)
		}
	}
	reason := "failed characteristics: " + strings.Join(names, ", ")

	batch, err := domain.NewQuarantineBatch(s.newID(), insp.AccountID, shipment.ID, strconv.Itoa(shipment.Quantity), reason, p.ID, s.now())
	if err != nil {
		return nil, err
	}
	batch.InspectionID = insp.ID
	return batch, nil
}
