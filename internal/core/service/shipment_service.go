package service

import (
	"context"
	"fmt"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

type ShipmentService struct {
	base
	catalog port.CatalogRepository
	repo    port.ShipmentRepository
}

func NewShipmentService(catalog port.CatalogRepository, repo port.ShipmentRepository, opts ...Option) *ShipmentService {
	return &ShipmentService{base: newBase(opts), catalog: catalog, repo: repo}
}

func (s *ShipmentService) CreateShipment(ctx context.Context, p domain.Principal, partTypeID string, quantity int) (*domain.Shipment, error) {
	shipment, err := domain.NewShipment(s.newID(), p.AccountID, partTypeID, quantity, s.now())
	if err != nil {
		return nil, err
	}
	pt, err := s.catalog.GetPartType(ctx, partTypeID)
	if err != nil {
		return nil, err
	}
	if err := owned(p, pt.AccountID, "part type", partTypeID); err != nil {
		return nil, err
	}

	if err := s.repo.CreateShipment(ctx, *shipment); err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}
	s.log.Info("shipment received", "shipment_id", shipment.ID, "part_type_id", partTypeID, "quantity", quantity)
	return shipment, nil
}

func (s *ShipmentService) GetShipment(ctx context.Context, p domain.Principal, id string) (*domain.Shipment, error) {
	shipment, err := s.repo.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(p, shipment.AccountID, "shipment", id); err != nil {
		return nil, err
	}
	return shipment, nil
}

// SetStatus is the explicit operator override of a shipment's status.
func (s *ShipmentService) SetStatus(ctx context.Context, p domain.Principal, id, status string) (*domain.Shipment, error) {
	st, err := domain.ParseShipmentStatus(status)
	if err != nil {
		return nil, err
	}
	shipment, err := s.GetShipment(ctx, p, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.UpdateShipmentStatus(ctx, id, st, now); err != nil {
		return nil, fmt.Errorf("update shipment status: %w", err)
	}
	s.log.Info("shipment status set", "shipment_id", id, "from", shipment.Status, "to", st, "by", p.ID)

	shipment.Status = st
	shipment.UpdatedAt = now
	return shipment, nil
}
