package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type QuarantineStatus string

const (
	QuarantinePending     QuarantineStatus = "pending"
	QuarantineUnderReview QuarantineStatus = "under-review"
	QuarantineDisposition QuarantineStatus = "disposition"
	QuarantineReleased    QuarantineStatus = "released"
	QuarantineScrapped    QuarantineStatus = "scrapped"
	QuarantineReturned    QuarantineStatus = "returned"
)

// quarantineTransitions lists the only legal forward edges.
var quarantineTransitions = map[QuarantineStatus][]QuarantineStatus{
	QuarantinePending:     {QuarantineUnderReview},
	QuarantineUnderReview: {QuarantineDisposition},
	QuarantineDisposition: {QuarantineReleased, QuarantineScrapped, QuarantineReturned},
}

func ParseQuarantineStatus(s string) (QuarantineStatus, error) {
	switch st := QuarantineStatus(strings.TrimSpace(s)); st {
	case QuarantinePending, QuarantineUnderReview, QuarantineDisposition,
		QuarantineReleased, QuarantineScrapped, QuarantineReturned:
		return st, nil
	}
	return "", invalid("status", "unknown quarantine status %q", s)
}

func (s QuarantineStatus) Terminal() bool {
	return s == QuarantineReleased || s == QuarantineScrapped || s == QuarantineReturned
}

// Successors returns the statuses reachable in one step.
func (s QuarantineStatus) Successors() []QuarantineStatus {
	next := quarantineTransitions[s]
	out := make([]QuarantineStatus, len(next))
	copy(out, next)
	return out
}

func (s QuarantineStatus) CanTransitionTo(target QuarantineStatus) bool {
	for _, next := range quarantineTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type QuarantineBatch struct {
	ID               string
	AccountID        string
	ShipmentID       string
	InspectionID     string
	Quantity         decimal.Decimal
	Reason           string
	Status           QuarantineStatus
	Disposition      QuarantineStatus
	DispositionNotes string
	DispositionBy    string
	DispositionDate  *time.Time
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int
}

// NewQuarantineBatch validates the mandatory reason and quantity and opens the batch in pending.
func NewQuarantineBatch(id, accountID, shipmentID, quantity, reason, createdBy string, now time.Time) (*QuarantineBatch, error) {
	if strings.TrimSpace(shipmentID) == "" {
		return nil, invalid("shipment_id", "shipment is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, invalid("reason", "reason is required")
	}
	if strings.TrimSpace(quantity) == "" {
		return nil, invalid("quantity", "quantity is required")
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil || !boundedDecimal(qty) {
		return nil, invalid("quantity", "quantity %q is not a number", quantity)
	}
	if qty.IsNegative() {
		return nil, invalid("quantity", "quantity cannot be negative, got %s", qty)
	}

	return &QuarantineBatch{
		ID:         id,
		AccountID:  accountID,
		ShipmentID: shipmentID,
		Quantity:   qty,
		Reason:     strings.TrimSpace(reason),
		Status:     QuarantinePending,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Transition moves the batch one step along the disposition graph and returns
// the new value. The receiver is never modified. Entering a terminal status
// writes all four disposition fields at once.
func (b *QuarantineBatch) Transition(target, notes, actor string, now time.Time) (*QuarantineBatch, error) {
	to, err := ParseQuarantineStatus(target)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, invalid("status", "batch %s is %s and can no longer change", b.ID, b.Status)
	}
	if !b.Status.CanTransitionTo(to) {
		return nil, invalid("status", "cannot move batch from %s to %s", b.Status, to)
	}

	next := *b
	next.Status = to
	next.UpdatedAt = now
	if to.Terminal() {
		if strings.TrimSpace(actor) == "" {
			return nil, invalid("disposition_by", "a principal is required to disposition a batch")
		}
		at := now
		next.Disposition = to
		next.DispositionNotes = notes
		next.DispositionBy = actor
		next.DispositionDate = &at
	}
	return &next, nil
}

// QuarantineAuditEntry records one applied transition.
type QuarantineAuditEntry struct {
	ID      string
	BatchID string
	From    QuarantineStatus
	To      QuarantineStatus
	Actor   string
	Notes   string
	At      time.Time
}
