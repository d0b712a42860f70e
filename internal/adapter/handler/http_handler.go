package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/core/service"
)

// Headers set by the authentication gateway in front of this service.
const (
	HeaderPrincipalID   = "X-Principal-ID"
	HeaderPrincipalRole = "X-Principal-Role"
	HeaderPrincipalTier = "X-Principal-Tier"
	HeaderAccountID     = "X-Account-ID"
)

type Services struct {
	Catalog     *service.CatalogService
	Shipments   *service.ShipmentService
	Inspections *service.InspectionService
	Quarantine  *service.QuarantineService
	Gages       *service.GageService
}

type HTTPHandler struct {
	svc Services
	now func() time.Time
	log *slog.Logger
}

func NewHTTPHandler(svc Services, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{svc: svc, now: func() time.Time { return time.Now().UTC() }, log: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/characteristics/evaluate", h.Evaluate)
	mux.HandleFunc("GET /api/tiers/{tier}", h.TierLimits)

	mux.HandleFunc("POST /api/part-types", h.CreatePartType)
	mux.HandleFunc("POST /api/plans", h.CreatePlan)

	mux.HandleFunc("POST /api/shipments", h.CreateShipment)
	mux.HandleFunc("PUT /api/shipments/{id}/status", h.SetShipmentStatus)

	mux.HandleFunc("POST /api/inspections", h.StartInspection)
	mux.HandleFunc("POST /api/inspections/{id}/results", h.RecordResults)

	mux.HandleFunc("POST /api/quarantine", h.CreateQuarantine)
	mux.HandleFunc("POST /api/quarantine/{id}/transition", h.TransitionQuarantine)
	mux.HandleFunc("GET /api/quarantine/{id}/history", h.QuarantineHistory)

	mux.HandleFunc("POST /api/gages", h.RegisterGage)
	mux.HandleFunc("GET /api/gages/report", h.CalibrationReport)
	mux.HandleFunc("POST /api/gages/{id}/calibration", h.RecordCalibration)
	mux.HandleFunc("GET /api/gages/{id}/status", h.GageStatus)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decode(w, r, &req) {
		return
	}
	spec, err := req.Spec.toDomain()
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := EvaluateResponse{Result: string(spec.Evaluate(string(req.ActualValue)))}
	if spec.Kind == domain.KindMeasurement {
		lower, upper := spec.Limits()
		resp.LowerLimit, resp.UpperLimit = lower.String(), upper.String()
	}
	writeData(w, http.StatusOK, resp)
}

func (h *HTTPHandler) TierLimits(w http.ResponseWriter, r *http.Request) {
	tier, err := domain.ParseTier(r.PathValue("tier"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	limits, err := domain.LimitsFor(tier)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, tierLimitsDTO(tier, limits))
}

func (h *HTTPHandler) CreatePartType(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreatePartTypeRequest
	if !decode(w, r, &req) {
		return
	}

	pt, err := h.svc.Catalog.CreatePartType(r.Context(), p, req.Name, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, partTypeDTO(pt))
}

func (h *HTTPHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreatePlanRequest
	if !decode(w, r, &req) {
		return
	}

	plan := domain.InspectionPlan{PartTypeID: req.PartTypeID, Name: req.Name}
	for _, d := range req.Characteristics {
		spec, err := d.toDomain()
		if err != nil {
			h.writeError(w, err)
			return
		}
		plan.Characteristics = append(plan.Characteristics, spec)
	}

	created, err := h.svc.Catalog.CreateInspectionPlan(r.Context(), p, plan)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, planDTO(created))
}

func (h *HTTPHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateShipmentRequest
	if !decode(w, r, &req) {
		return
	}

	sh, err := h.svc.Shipments.CreateShipment(r.Context(), p, req.PartTypeID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, shipmentDTO(sh))
}

func (h *HTTPHandler) SetShipmentStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req SetShipmentStatusRequest
	if !decode(w, r, &req) {
		return
	}

	sh, err := h.svc.Shipments.SetStatus(r.Context(), p, r.PathValue("id"), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, shipmentDTO(sh))
}

func (h *HTTPHandler) StartInspection(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req StartInspectionRequest
	if !decode(w, r, &req) {
		return
	}

	insp, err := h.svc.Inspections.Start(r.Context(), p, req.ShipmentID, req.PlanID, req.SampleSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, inspectionDTO(insp))
}

func (h *HTTPHandler) RecordResults(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req RecordResultsRequest
	if !decode(w, r, &req) {
		return
	}
	entries, err := req.entries()
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.svc.Inspections.Record(r.Context(), p, r.PathValue("id"), entries, req.RequestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, recordOutcomeDTO(outcome))
}

func (h *HTTPHandler) CreateQuarantine(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateQuarantineRequest
	if !decode(w, r, &req) {
		return
	}

	batch, err := h.svc.Quarantine.Create(r.Context(), p, req.ShipmentID, string(req.Quantity), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, quarantineDTO(batch))
}

func (h *HTTPHandler) TransitionQuarantine(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !decode(w, r, &req) {
		return
	}

	batch, err := h.svc.Quarantine.Transition(r.Context(), p, r.PathValue("id"), req.Status, req.Notes, req.RequestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, quarantineDTO(batch))
}

func (h *HTTPHandler) QuarantineHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.Quarantine.History(r.Context(), p, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, auditDTOs(entries))
}

func (h *HTTPHandler) RegisterGage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req RegisterGageRequest
	if !decode(w, r, &req) {
		return
	}

	calibrated, err := parseDate("calibration_date", req.CalibrationDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	next, err := parseDate("next_calibration_date", req.NextCalibrationDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	g, err := h.svc.Gages.Register(r.Context(), p, domain.Gage{
		Name:                    req.Name,
		SerialNumber:            req.SerialNumber,
		CalibrationDate:         calibrated,
		NextCalibrationDate:     next,
		CalibrationIntervalDays: req.CalibrationIntervalDays,
		Status:                  domain.GageStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, gageDTO(g))
}

func (h *HTTPHandler) RecordCalibration(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req RecordCalibrationRequest
	if !decode(w, r, &req) {
		return
	}

	calibrated, err := parseDate("calibration_date", req.CalibrationDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if calibrated == nil {
		h.writeError(w, &domain.ValidationError{Field: "calibration_date", Reason: "calibration date is required"})
		return
	}
	next, err := parseDate("next_calibration_date", req.NextCalibrationDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	g, err := h.svc.Gages.RecordCalibration(r.Context(), p, r.PathValue("id"), *calibrated, req.CalibrationIntervalDays, next)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, gageDTO(g))
}

func (h *HTTPHandler) GageStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	today, err := h.today(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	c, err := h.svc.Gages.Status(r.Context(), p, r.PathValue("id"), today)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, gageCalibrationDTO(*c))
}

func (h *HTTPHandler) CalibrationReport(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	today, err := h.today(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	report, err := h.svc.Gages.Report(r.Context(), p, today)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]GageCalibrationDTO, 0, len(report))
	for _, c := range report {
		out = append(out, gageCalibrationDTO(c))
	}
	writeData(w, http.StatusOK, out)
}

// today honours an optional ?today=YYYY-MM-DD so reports can be replayed.
func (h *HTTPHandler) today(r *http.Request) (time.Time, error) {
	d, err := parseDate("today", r.URL.Query().Get("today"))
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return domain.CalendarDate(h.now()), nil
	}
	return *d, nil
}

func (h *HTTPHandler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, err := domain.NewPrincipal(
		r.Header.Get(HeaderPrincipalID),
		r.Header.Get(HeaderAccountID),
		r.Header.Get(HeaderPrincipalRole),
		r.Header.Get(HeaderPrincipalTier),
	)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, Response{Success: false, Message: err.Error()})
		return domain.Principal{}, false
	}
	return p, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := Response{Success: false, Message: "internal error"}

	var validation *domain.ValidationError
	var quota *domain.QuotaExceededError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		resp.Message = validation.Reason
		resp.Field = validation.Field
	case errors.As(err, &quota):
		status = http.StatusPaymentRequired
		resp.Message = quota.Error()
		resp.Data = map[string]any{"tier": quota.Tier, "resource": quota.Resource, "limit": quota.Limit}
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		resp.Message = err.Error()
	case errors.Is(err, service.ErrDuplicateRequest):
		status = http.StatusConflict
		resp.Message = "duplicate request"
	case errors.Is(err, service.ErrConcurrentUpdate):
		status = http.StatusConflict
		resp.Message = "modified concurrently, reload and retry"
	case errors.Is(err, service.ErrFeatureNotPermitted):
		status = http.StatusForbidden
		resp.Message = err.Error()
	default:
		h.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, resp)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
