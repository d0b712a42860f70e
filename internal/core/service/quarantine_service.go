package service

import (
	"context"
	"fmt"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

type QuarantineService struct {
	base
	shipments port.ShipmentRepository
	repo      port.QuarantineRepository
}

func NewQuarantineService(shipments port.ShipmentRepository, repo port.QuarantineRepository, opts ...Option) *QuarantineService {
	return &QuarantineService{base: newBase(opts), shipments: shipments, repo: repo}
}

func (s *QuarantineService) Create(ctx context.Context, p domain.Principal, shipmentID, quantity, reason string) (*domain.QuarantineBatch, error) {
	if err := requireFeature(p, domain.FeatureQuarantine); err != nil {
		return nil, err
	}

	batch, err := domain.NewQuarantineBatch(s.newID(), p.AccountID, shipmentID, quantity, reason, p.ID, s.now())
	if err != nil {
		return nil, err
	}
	shipment, err := s.shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := owned(p, shipment.AccountID, "shipment", shipmentID); err != nil {
		return nil, err
	}

	if err := s.repo.CreateQuarantineBatch(ctx, *batch); err != nil {
		return nil, fmt.Errorf("create quarantine batch: %w", err)
	}
	s.log.Info("quarantine batch created", "batch_id", batch.ID, "shipment_id", shipmentID, "quantity", batch.Quantity.String())
	return batch, nil
}

func (s *QuarantineService) Get(ctx context.Context, p domain.Principal, id string) (*domain.QuarantineBatch, error) {
	batch, err := s.repo.GetQuarantineBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(p, batch.AccountID, "quarantine batch", id); err != nil {
		return nil, err
	}
	return batch, nil
}

// Transition advances a batch one step. The write is conditional on the
// version read here, so of two racing requests only one can apply.
func (s *QuarantineService) Transition(ctx context.Context, p domain.Principal, batchID, target, notes, requestID string) (result *domain.QuarantineBatch, err error) {
	if err := requireFeature(p, domain.FeatureQuarantine); err != nil {
		return nil, err
	}

	release, err := s.claim(ctx, "quarantine:"+batchID, requestID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	batch, err := s.Get(ctx, p, batchID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next, err := batch.Transition(target, notes, p.ID, now)
	if err != nil {
		return nil, err
	}

	audit := domain.QuarantineAuditEntry{
		ID:      s.newID(),
		BatchID: batch.ID,
		From:    batch.Status,
		To:      next.Status,
		Actor:   p.ID,
		Notes:   notes,
		At:      now,
	}
	if err := s.repo.UpdateQuarantineBatch(ctx, *next, audit); err != nil {
		return nil, conflict(fmt.Errorf("update quarantine batch: %w", err))
	}
	next.Version++

	s.log.Info("quarantine batch transitioned",
		"batch_id", batch.ID,
		"from", batch.Status,
		"to", next.Status,
		"by", p.ID,
	)
	return next, nil
}

func (s *QuarantineService) History(ctx context.Context, p domain.Principal, batchID string) ([]domain.QuarantineAuditEntry, error) {
	if _, err := s.Get(ctx, p, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListQuarantineAudit(ctx, batchID)
}
