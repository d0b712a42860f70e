package domain

import (
	"strings"
	"time"
)

type ShipmentStatus string

const (
	ShipmentPending      ShipmentStatus = "pending"
	ShipmentInInspection ShipmentStatus = "in_inspection"
	ShipmentApproved     ShipmentStatus = "approved"
	ShipmentRejected     ShipmentStatus = "rejected"
	ShipmentPartial      ShipmentStatus = "partial"
)

func ParseShipmentStatus(s string) (ShipmentStatus, error) {
	switch st := ShipmentStatus(strings.TrimSpace(s)); st {
	case ShipmentPending, ShipmentInInspection, ShipmentApproved, ShipmentRejected, ShipmentPartial:
		return st, nil
	}
	return "", invalid("status", "unknown shipment status %q", s)
}

type Shipment struct {
	ID         string
	AccountID  string
	PartTypeID string
	Quantity   int
	Status     ShipmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewShipment(id, accountID, partTypeID string, quantity int, now time.Time) (*Shipment, error) {
	if strings.TrimSpace(partTypeID) == "" {
		return nil, invalid("part_type_id", "part type is required")
	}
	if quantity <= 0 {
		return nil, invalid("quantity", "quantity must be positive, got %d", quantity)
	}
	return &Shipment{
		ID:         id,
		AccountID:  accountID,
		PartTypeID: partTypeID,
		Quantity:   quantity,
		Status:     ShipmentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

type PartType struct {
	ID          string
	AccountID   string
	Name        string
	Description string
	CreatedAt   time.Time
}

func NewPartType(id, accountID, name, description string, now time.Time) (*PartType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("name", "part type name is required")
	}
	return &PartType{
		ID:          id,
		AccountID:   accountID,
		Name:        strings.TrimSpace(name),
		Description: description,
		CreatedAt:   now,
	}, nil
}
