package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func (s *SQLAdapter) CreateShipment(ctx context.Context, sh domain.Shipment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipments (id, account_id, part_type_id, quantity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.AccountID, sh.PartTypeID, sh.Quantity, string(sh.Status),
		formatTimestamp(sh.CreatedAt), formatTimestamp(sh.UpdatedAt),
	)
	if err != nil {
		return insertErr(err, "shipment", sh.ID)
	}
	return nil
}

func (s *SQLAdapter) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	var (
		sh                   domain.Shipment
		status               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, part_type_id, quantity, status, created_at, updated_at
		FROM shipments WHERE id = ?`, id,
	).Scan(&sh.ID, &sh.AccountID, &sh.PartTypeID, &sh.Quantity, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err, "shipment", id)
	}

	sh.Status = domain.ShipmentStatus(status)
	if sh.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if sh.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *SQLAdapter) UpdateShipmentStatus(ctx context.Context, id string, status domain.ShipmentStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTimestamp(at), id,
	)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	return expectOne(res, "shipment", id)
}
