package domain

import "time"

type Inspection struct {
	ID              string
	AccountID       string
	ShipmentID      string
	PlanID          string
	Characteristics []CharacteristicResult
	OverallResult   Result
	SampleSize      int
	InspectorID     string
	CreatedAt       time.Time
	CompletedAt     *time.Time
	Version         int
}

// NewInspection opens an inspection with one pending result per plan characteristic.
func NewInspection(id, accountID, shipmentID string, plan InspectionPlan, sampleSize int, inspectorID string, now time.Time) (*Inspection, error) {
	if shipmentID == "" {
		return nil, invalid("shipment_id", "shipment is required")
	}
	if sampleSize < 0 {
		return nil, invalid("sample_size", "sample size cannot be negative, got %d", sampleSize)
	}

	results := make([]CharacteristicResult, 0, len(plan.Characteristics))
	for _, spec := range plan.Characteristics {
		results = append(results, CharacteristicResult{SpecID: spec.ID, Result: ResultPending})
	}

	return &Inspection{
		ID:              id,
		AccountID:       accountID,
		ShipmentID:      shipmentID,
		PlanID:          plan.ID,
		Characteristics: results,
		OverallResult:   ResultPending,
		SampleSize:      sampleSize,
		InspectorID:     inspectorID,
		CreatedAt:       now,
	}, nil
}

func (i *Inspection) Finalized() bool {
	return i.CompletedAt != nil
}

// ResultEntry is one value submitted by an inspector.
type ResultEntry struct {
	SpecID      string
	ActualValue string
	Manual      Result
}

// Record applies entries against the plan and re-aggregates. It works on a
// copy and only returns the updated inspection if every entry is valid, so a
// rejected submission never leaves half-applied results behind.
func (i *Inspection) Record(plan InspectionPlan, entries []ResultEntry, now time.Time) (*Inspection, Summary, error) {
	if i.Finalized() {
		return nil, Summary{}, invalid("inspection", "inspection %s is already %s", i.ID, i.OverallResult)
	}

	next := *i
	next.Characteristics = make([]CharacteristicResult, len(i.Characteristics))
	copy(next.Characteristics, i.Characteristics)

	index := make(map[string]int, len(next.Characteristics))
	for n, r := range next.Characteristics {
		index[r.SpecID] = n
	}

	for _, e := range entries {
		spec, ok := plan.Spec(e.SpecID)
		if !ok {
			return nil, Summary{}, invalid("spec_id", "characteristic %q is not part of plan %s", e.SpecID, plan.ID)
		}
		n, ok := index[e.SpecID]
		if !ok {
			return nil, Summary{}, invalid("spec_id", "characteristic %q is not part of inspection %s", e.SpecID, i.ID)
		}
		if len(e.ActualValue) > MaxValueLength {
			return nil, Summary{}, invalid("actual_value", "value for %q exceeds %d characters", e.SpecID, MaxValueLength)
		}
		next.Characteristics[n] = CharacteristicResult{
			SpecID:      e.SpecID,
			ActualValue: e.ActualValue,
			Result:      spec.Resolve(e.ActualValue, e.Manual),
		}
	}

	summary := Aggregate(next.Characteristics)
	next.OverallResult = summary.Overall
	if summary.Overall.Resolved() {
		completed := now
		next.CompletedAt = &completed
	}
	return &next, summary, nil
}

// FailedSpecs lists the characteristics currently judged out of tolerance.
func (i *Inspection) FailedSpecs() []string {
	var ids []string
	for _, r := range i.Characteristics {
		if r.Result == ResultFail {
			ids = append(ids, r.SpecID)
		}
	}
	return ids
}

type Summary struct {
	Overall      Result
	PassCount    int
	FailCount    int
	PendingCount int
}

// Aggregate folds characteristic results into an inspection outcome. Any
// fail decides the inspection even while other fields are pending; pass needs
// every characteristic resolved, and an empty checklist stays pending.
func Aggregate(results []CharacteristicResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Result {
		case ResultPass:
			s.PassCount++
		case ResultFail:
			s.FailCount++
		default:
			s.PendingCount++
		}
	}

	switch {
	case s.FailCount > 0:
		s.Overall = ResultFail
	case len(results) > 0 && s.PendingCount == 0:
		s.Overall = ResultPass
	default:
		s.Overall = ResultPending
	}
	return s
}

// ProposedShipmentStatus maps a resolved inspection outcome to the status its
// shipment should take. The second return is false while the outcome is pending.
func ProposedShipmentStatus(overall Result) (ShipmentStatus, bool) {
	switch overall {
	case ResultPass:
		return ShipmentApproved, true
	case ResultFail:
		return ShipmentRejected, true
	}
	return "", false
}
