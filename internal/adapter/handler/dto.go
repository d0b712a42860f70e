package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/core/service"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// scalar accepts a JSON string, number, or null. Measured values arrive both
// ways from the inspection forms.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = scalar(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*s = scalar(n.String())
	}
	return nil
}

type CharacteristicSpecDTO struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Kind           string              `json:"kind"`
	Unit           string              `json:"unit,omitempty"`
	Nominal        decimal.Decimal     `json:"nominal"`
	UpperTolerance decimal.NullDecimal `json:"upper_tolerance"`
	LowerTolerance decimal.NullDecimal `json:"lower_tolerance"`
	IsCritical     bool                `json:"is_critical"`
}

func (d CharacteristicSpecDTO) toDomain() (domain.CharacteristicSpec, error) {
	kind, err := domain.ParseCharacteristicKind(d.Kind)
	if err != nil {
		return domain.CharacteristicSpec{}, err
	}
	spec := domain.CharacteristicSpec{
		ID:             d.ID,
		Name:           d.Name,
		Kind:           kind,
		Unit:           d.Unit,
		Nominal:        d.Nominal,
		UpperTolerance: d.UpperTolerance,
		LowerTolerance: d.LowerTolerance,
		IsCritical:     d.IsCritical,
	}
	if err := spec.ValidateLimits(); err != nil {
		return domain.CharacteristicSpec{}, err
	}
	return spec, nil
}

func specDTO(s domain.CharacteristicSpec) CharacteristicSpecDTO {
	return CharacteristicSpecDTO{
		ID:             s.ID,
		Name:           s.Name,
		Kind:           string(s.Kind),
		Unit:           s.Unit,
		Nominal:        s.Nominal,
		UpperTolerance: s.UpperTolerance,
		LowerTolerance: s.LowerTolerance,
		IsCritical:     s.IsCritical,
	}
}

type EvaluateRequest struct {
	Spec        CharacteristicSpecDTO `json:"spec"`
	ActualValue scalar                `json:"actual_value"`
}

type EvaluateResponse struct {
	Result     string `json:"result"`
	LowerLimit string `json:"lower_limit,omitempty"`
	UpperLimit string `json:"upper_limit,omitempty"`
}

type CreatePartTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PartTypeDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func partTypeDTO(pt *domain.PartType) PartTypeDTO {
	return PartTypeDTO{ID: pt.ID, Name: pt.Name, Description: pt.Description, CreatedAt: pt.CreatedAt}
}

type CreatePlanRequest struct {
	PartTypeID      string                  `json:"part_type_id"`
	Name            string                  `json:"name"`
	Characteristics []CharacteristicSpecDTO `json:"characteristics"`
}

type PlanDTO struct {
	ID              string                  `json:"id"`
	PartTypeID      string                  `json:"part_type_id"`
	Name            string                  `json:"name"`
	Characteristics []CharacteristicSpecDTO `json:"characteristics"`
}

func planDTO(p *domain.InspectionPlan) PlanDTO {
	specs := make([]CharacteristicSpecDTO, 0, len(p.Characteristics))
	for _, s := range p.Characteristics {
		specs = append(specs, specDTO(s))
	}
	return PlanDTO{ID: p.ID, PartTypeID: p.PartTypeID, Name: p.Name, Characteristics: specs}
}

type CreateShipmentRequest struct {
	PartTypeID string `json:"part_type_id"`
	Quantity   int    `json:"quantity"`
}

type SetShipmentStatusRequest struct {
	Status string `json:"status"`
}

type ShipmentDTO struct {
	ID         string    `json:"id"`
	PartTypeID string    `json:"part_type_id"`
	Quantity   int       `json:"quantity"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func shipmentDTO(s *domain.Shipment) ShipmentDTO {
	return ShipmentDTO{ID: s.ID, PartTypeID: s.PartTypeID, Quantity: s.Quantity, Status: string(s.Status), UpdatedAt: s.UpdatedAt}
}

type StartInspectionRequest struct {
	ShipmentID string `json:"shipment_id"`
	PlanID     string `json:"plan_id"`
	SampleSize int    `json:"sample_size"`
}

type ResultEntryDTO struct {
	SpecID      string `json:"spec_id"`
	ActualValue scalar `json:"actual_value"`
	Result      string `json:"result"`
}

type RecordResultsRequest struct {
	RequestID string           `json:"request_id"`
	Results   []ResultEntryDTO `json:"results"`
}

func (r RecordResultsRequest) entries() ([]domain.ResultEntry, error) {
	entries := make([]domain.ResultEntry, 0, len(r.Results))
	for _, e := range r.Results {
		manual, err := domain.ParseResult(e.Result)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.ResultEntry{SpecID: e.SpecID, ActualValue: string(e.ActualValue), Manual: manual})
	}
	return entries, nil
}

type CharacteristicResultDTO struct {
	SpecID      string `json:"spec_id"`
	ActualValue string `json:"actual_value,omitempty"`
	Result      string `json:"result"`
}

type InspectionDTO struct {
	ID              string                    `json:"id"`
	ShipmentID      string                    `json:"shipment_id"`
	PlanID          string                    `json:"plan_id"`
	OverallResult   string                    `json:"overall_result"`
	SampleSize      int                       `json:"sample_size"`
	InspectorID     string                    `json:"inspector_id"`
	Characteristics []CharacteristicResultDTO `json:"characteristics"`
	CreatedAt       time.Time                 `json:"created_at"`
	CompletedAt     *time.Time                `json:"completed_at,omitempty"`
	Version         int                       `json:"version"`
}

func inspectionDTO(i *domain.Inspection) InspectionDTO {
	results := make([]CharacteristicResultDTO, 0, len(i.Characteristics))
	for _, r := range i.Characteristics {
		results = append(results, CharacteristicResultDTO{SpecID: r.SpecID, ActualValue: r.ActualValue, Result: string(r.Result)})
	}
	return InspectionDTO{
		ID:              i.ID,
		ShipmentID:      i.ShipmentID,
		PlanID:          i.PlanID,
		OverallResult:   string(i.OverallResult),
		SampleSize:      i.SampleSize,
		InspectorID:     i.InspectorID,
		Characteristics: results,
		CreatedAt:       i.CreatedAt,
		CompletedAt:     i.CompletedAt,
		Version:         i.Version,
	}
}

type RecordResultsResponse struct {
	Inspection     InspectionDTO       `json:"inspection"`
	PassCount      int                 `json:"pass_count"`
	FailCount      int                 `json:"fail_count"`
	PendingCount   int                 `json:"pending_count"`
	ShipmentStatus string              `json:"shipment_status,omitempty"`
	Quarantine     *QuarantineBatchDTO `json:"quarantine,omitempty"`
}

func recordOutcomeDTO(o *service.RecordOutcome) RecordResultsResponse {
	resp := RecordResultsResponse{
		Inspection:     inspectionDTO(o.Inspection),
		PassCount:      o.Summary.PassCount,
		FailCount:      o.Summary.FailCount,
		PendingCount:   o.Summary.PendingCount,
		ShipmentStatus: string(o.ShipmentStatus),
	}
	if o.Batch != nil {
		b := quarantineDTO(o.Batch)
		resp.Quarantine = &b
	}
	return resp
}

type CreateQuarantineRequest struct {
	ShipmentID string `json:"shipment_id"`
	Quantity   scalar `json:"quantity"`
	Reason     string `json:"reason"`
}

type TransitionRequest struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

type QuarantineBatchDTO struct {
	ID               string     `json:"id"`
	ShipmentID       string     `json:"shipment_id"`
	InspectionID     string     `json:"inspection_id,omitempty"`
	Quantity         string     `json:"quantity"`
	Reason           string     `json:"reason"`
	Status           string     `json:"status"`
	Disposition      string     `json:"disposition,omitempty"`
	DispositionNotes string     `json:"disposition_notes,omitempty"`
	DispositionBy    string     `json:"disposition_by,omitempty"`
	DispositionDate  *time.Time `json:"disposition_date,omitempty"`
	AllowedNext      []string   `json:"allowed_next"`
	Version          int        `json:"version"`
}

func quarantineDTO(b *domain.QuarantineBatch) QuarantineBatchDTO {
	next := make([]string, 0, 3)
	for _, s := range b.Status.Successors() {
		next = append(next, string(s))
	}
	return QuarantineBatchDTO{
		ID:               b.ID,
		ShipmentID:       b.ShipmentID,
		InspectionID:     b.InspectionID,
		Quantity:         b.Quantity.String(),
		Reason:           b.Reason,
		Status:           string(b.Status),
		Disposition:      string(b.Disposition),
		DispositionNotes: b.DispositionNotes,
		DispositionBy:    b.DispositionBy,
		DispositionDate:  b.DispositionDate,
		AllowedNext:      next,
		Version:          b.Version,
	}
}

type AuditEntryDTO struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor string    `json:"actor"`
	Notes string    `json:"notes,omitempty"`
	At    time.Time `json:"at"`
}

func auditDTOs(entries []domain.QuarantineAuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryDTO{From: string(e.From), To: string(e.To), Actor: e.Actor, Notes: e.Notes, At: e.At})
	}
	return out
}

type RegisterGageRequest struct {
	Name                    string `json:"name"`
	SerialNumber            string `json:"serial_number"`
	CalibrationDate         string `json:"calibration_date"`
	NextCalibrationDate     string `json:"next_calibration_date"`
	CalibrationIntervalDays *int   `json:"calibration_interval_days"`
	Status                  string `json:"status"`
}

type RecordCalibrationRequest struct {
	CalibrationDate         string `json:"calibration_date"`
	NextCalibrationDate     string `json:"next_calibration_date"`
	CalibrationIntervalDays *int   `json:"calibration_interval_days"`
}

type GageDTO struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	SerialNumber            string  `json:"serial_number,omitempty"`
	CalibrationDate         *string `json:"calibration_date"`
	NextCalibrationDate     *string `json:"next_calibration_date"`
	CalibrationIntervalDays *int    `json:"calibration_interval_days"`
	Status                  string  `json:"status"`
}

func gageDTO(g *domain.Gage) GageDTO {
	return GageDTO{
		ID:                      g.ID,
		Name:                    g.Name,
		SerialNumber:            g.SerialNumber,
		CalibrationDate:         formatDate(g.CalibrationDate),
		NextCalibrationDate:     formatDate(g.NextCalibrationDate),
		CalibrationIntervalDays: g.CalibrationIntervalDays,
		Status:                  string(g.Status),
	}
}

type GageCalibrationDTO struct {
	Gage         GageDTO `json:"gage"`
	DueDate      *string `json:"due_date"`
	DaysUntilDue *int    `json:"days_until_due"`
	Status       string  `json:"calibration_status"`
}

func gageCalibrationDTO(c service.GageCalibration) GageCalibrationDTO {
	return GageCalibrationDTO{
		Gage:         gageDTO(&c.Gage),
		DueDate:      formatDate(c.DueDate),
		DaysUntilDue: c.DaysUntilDue,
		Status:       string(c.Status),
	}
}

type TierLimitsDTO struct {
	Tier                   string   `json:"tier"`
	MaxPartTypes           int      `json:"max_part_types"`
	MaxInspectionsPerMonth int      `json:"max_inspections_per_month"`
	MaxUsers               int      `json:"max_users"`
	Features               []string `json:"features"`
}

func tierLimitsDTO(tier domain.Tier, l domain.TierLimits) TierLimitsDTO {
	features := make([]string, 0, len(l.Features))
	for f, ok := range l.Features {
		if ok {
			features = append(features, string(f))
		}
	}
	sort.Strings(features)
	return TierLimitsDTO{
		Tier:                   string(tier),
		MaxPartTypes:           l.MaxPartTypes,
		MaxInspectionsPerMonth: l.MaxInspectionsPerMonth,
		MaxUsers:               l.MaxUsers,
		Features:               features,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// parseDate reads an optional YYYY-MM-DD field.
func parseDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", v)}
	}
	return &t, nil
}
