package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/incoming-qc/internal/adapter/storage"
	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/core/service"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	mux *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(ctx))

	opts := []service.Option{service.WithClock(func() time.Time { return fixedNow })}
	h := NewHTTPHandler(Services{
		Catalog:     service.NewCatalogService(repo, opts...),
		Shipments:   service.NewShipmentService(repo, repo, opts...),
		Inspections: service.NewInspectionService(repo, opts...),
		Quarantine:  service.NewQuarantineService(repo, repo, opts...),
		Gages:       service.NewGageService(repo, opts...),
	}, nil)
	h.now = func() time.Time { return fixedNow }

	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{t: t, mux: mux}
}

// do sends body as JSON with principal headers for tier. An empty tier sends none.
func (s *testServer) do(method, path string, tier domain.Tier, body any) (int, envelope) {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if tier != "" {
		req.Header.Set(HeaderPrincipalID, "user-1")
		req.Header.Set(HeaderAccountID, "acct-1")
		req.Header.Set(HeaderPrincipalRole, "quality_engineer")
		req.Header.Set(HeaderPrincipalTier, string(tier))
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// seedShipment creates a part type, a bore/pins plan, and a shipment of 50.
func (s *testServer) seedShipment(tier domain.Tier) (PlanDTO, ShipmentDTO) {
	s.t.Helper()

	code, env := s.do(http.MethodPost, "/api/part-types", tier, CreatePartTypeRequest{Name: "Connector J12"})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	pt := decodeData[PartTypeDTO](s.t, env)

	code, env = s.do(http.MethodPost, "/api/plans", tier, map[string]any{
		"part_type_id": pt.ID,
		"name":         "J12 receiving",
		"characteristics": []map[string]any{
			{"id": "bore", "name": "Bore diameter", "kind": "measurement", "unit": "mm",
				"nominal": 10.5, "upper_tolerance": 0.05, "lower_tolerance": "-0.05", "is_critical": true},
			{"id": "pins", "name": "Pin straightness", "kind": "visual"},
		},
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	plan := decodeData[PlanDTO](s.t, env)

	code, env = s.do(http.MethodPost, "/api/shipments", tier, CreateShipmentRequest{PartTypeID: pt.ID, Quantity: 50})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	return plan, decodeData[ShipmentDTO](s.t, env)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)
	spec := map[string]any{"kind": "measurement", "nominal": "10.5", "upper_tolerance": "0.05", "lower_tolerance": "0.05"}

	tests := []struct {
		name   string
		actual any
		want   string
	}{
		{"upper boundary", 10.55, "pass"},
		{"lower boundary as string", "10.45", "pass"},
		{"inside", 10.54, "pass"},
		{"outside", 10.56, "fail"},
		{"blank", "", "pending"},
		{"not a number", "n/a", "pending"},
		{"null", nil, "pending"},
		{"extreme exponent", "1e50000000", "pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(http.MethodPost, "/api/characteristics/evaluate", "", map[string]any{"spec": spec, "actual_value": tt.actual})
			require.Equal(t, http.StatusOK, code, env.Message)
			got := decodeData[EvaluateResponse](t, env)
			assert.Equal(t, tt.want, got.Result)
			assert.Equal(t, "10.45", got.LowerLimit)
			assert.Equal(t, "10.55", got.UpperLimit)
		})
	}

	t.Run("visual is judged manually", func(t *testing.T) {
		code, env := s.do(http.MethodPost, "/api/characteristics/evaluate", "", map[string]any{
			"spec": map[string]any{"kind": "visual"}, "actual_value": "ok",
		})
		require.Equal(t, http.StatusOK, code)
		got := decodeData[EvaluateResponse](t, env)
		assert.Equal(t, "pending", got.Result)
		assert.Empty(t, got.UpperLimit)
	})

	t.Run("nominal out of range", func(t *testing.T) {
		code, env := s.do(http.MethodPost, "/api/characteristics/evaluate", "", map[string]any{
			"spec": map[string]any{"kind": "measurement", "nominal": "1e50000000"}, "actual_value": "10",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "nominal", env.Field)
	})

	t.Run("unknown kind", func(t *testing.T) {
		code, env := s.do(http.MethodPost, "/api/characteristics/evaluate", "", map[string]any{"spec": map[string]any{"kind": "gut-feel"}})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "kind", env.Field)
	})
}

func TestTierLimits(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/api/tiers/basic", "", nil)
	require.Equal(t, http.StatusOK, code)
	limits := decodeData[TierLimitsDTO](t, env)
	assert.Equal(t, 50, limits.MaxPartTypes)
	assert.Equal(t, []string{"gage_calibration", "inspections", "quarantine"}, limits.Features)

	code, env = s.do(http.MethodGet, "/api/tiers/enterprise", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.Unlimited, decodeData[TierLimitsDTO](t, env).MaxInspectionsPerMonth)

	code, _ = s.do(http.MethodGet, "/api/tiers/platinum", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMissingPrincipal(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/part-types", "", CreatePartTypeRequest{Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = s.do(http.MethodPost, "/api/part-types", domain.Tier("gold"), CreatePartTypeRequest{Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/shipments", domain.TierBasic, "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid request body", env.Message)
}

func TestInspectionFailureQuarantinesLot(t *testing.T) {
	s := newTestServer(t)
	plan, shipment := s.seedShipment(domain.TierBasic)

	code, env := s.do(http.MethodPost, "/api/inspections", domain.TierBasic, StartInspectionRequest{ShipmentID: shipment.ID, PlanID: plan.ID, SampleSize: 5})
	require.Equal(t, http.StatusCreated, code, env.Message)
	insp := decodeData[InspectionDTO](t, env)
	assert.Equal(t, "pending", insp.OverallResult)
	assert.Len(t, insp.Characteristics, 2)

	results := fmt.Sprintf("/api/inspections/%s/results", insp.ID)
	code, env = s.do(http.MethodPost, results, domain.TierBasic, map[string]any{
		"results": []map[string]any{{"spec_id": "pins", "result": "pass"}},
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	progress := decodeData[RecordResultsResponse](t, env)
	assert.Equal(t, "pending", progress.Inspection.OverallResult)
	assert.Empty(t, progress.ShipmentStatus)
	assert.Nil(t, progress.Quarantine)

	code, env = s.do(http.MethodPost, results, domain.TierBasic, map[string]any{
		"results": []map[string]any{{"spec_id": "bore", "actual_value": 10.62}},
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	outcome := decodeData[RecordResultsResponse](t, env)
	assert.Equal(t, "fail", outcome.Inspection.OverallResult)
	assert.Equal(t, 1, outcome.FailCount)
	assert.Equal(t, "rejected", outcome.ShipmentStatus)
	require.NotNil(t, outcome.Quarantine)
	assert.Equal(t, "50", outcome.Quarantine.Quantity)
	assert.Equal(t, "failed characteristics: Bore diameter", outcome.Quarantine.Reason)
	assert.Equal(t, []string{"under-review"}, outcome.Quarantine.AllowedNext)

	// resolved inspections are immutable
	code, _ = s.do(http.MethodPost, results, domain.TierBasic, map[string]any{
		"results": []map[string]any{{"spec_id": "bore", "actual_value": "10.5"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	batchPath := "/api/quarantine/" + outcome.Quarantine.ID
	for _, target := range []string{"under-review", "disposition"} {
		code, env = s.do(http.MethodPost, batchPath+"/transition", domain.TierBasic, TransitionRequest{Status: target})
		require.Equal(t, http.StatusOK, code, env.Message)
		assert.Empty(t, decodeData[QuarantineBatchDTO](t, env).Disposition)
	}

	code, env = s.do(http.MethodPost, batchPath+"/transition", domain.TierBasic, TransitionRequest{Status: "scrapped", Notes: "bore oversize"})
	require.Equal(t, http.StatusOK, code, env.Message)
	scrapped := decodeData[QuarantineBatchDTO](t, env)
	assert.Equal(t, "scrapped", scrapped.Disposition)
	assert.Equal(t, "bore oversize", scrapped.DispositionNotes)
	assert.Equal(t, "user-1", scrapped.DispositionBy)
	require.NotNil(t, scrapped.DispositionDate)
	assert.Empty(t, scrapped.AllowedNext)

	code, env = s.do(http.MethodPost, batchPath+"/transition", domain.TierBasic, TransitionRequest{Status: "released"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "status", env.Field)

	code, env = s.do(http.MethodGet, batchPath+"/history", domain.TierBasic, nil)
	require.Equal(t, http.StatusOK, code)
	history := decodeData[[]AuditEntryDTO](t, env)
	require.Len(t, history, 3)
	assert.Equal(t, "pending", history[0].From)
	assert.Equal(t, "scrapped", history[2].To)
}

func TestShipmentStatus(t *testing.T) {
	s := newTestServer(t)
	_, shipment := s.seedShipment(domain.TierFree)
	path := "/api/shipments/" + shipment.ID + "/status"

	code, env := s.do(http.MethodPut, path, domain.TierFree, SetShipmentStatusRequest{Status: "partial"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "partial", decodeData[ShipmentDTO](t, env).Status)

	code, _ = s.do(http.MethodPut, path, domain.TierFree, SetShipmentStatusRequest{Status: "lost"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPut, "/api/shipments/missing/status", domain.TierFree, SetShipmentStatusRequest{Status: "approved"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPartTypeQuota(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		code, env := s.do(http.MethodPost, "/api/part-types", domain.TierFree, CreatePartTypeRequest{Name: fmt.Sprintf("part %d", i)})
		require.Equal(t, http.StatusCreated, code, env.Message)
	}

	code, env := s.do(http.MethodPost, "/api/part-types", domain.TierFree, CreatePartTypeRequest{Name: "one too many"})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Contains(t, env.Message, "free tier allows 5 part_types")
}

func TestFeatureNotPermitted(t *testing.T) {
	s := newTestServer(t)
	_, shipment := s.seedShipment(domain.TierFree)

	code, _ := s.do(http.MethodPost, "/api/quarantine", domain.TierFree, map[string]any{
		"shipment_id": shipment.ID, "quantity": 3, "reason": "bent pins",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/api/gages", domain.TierFree, RegisterGageRequest{Name: "caliper"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestCreateQuarantine_Validation(t *testing.T) {
	s := newTestServer(t)
	_, shipment := s.seedShipment(domain.TierBasic)

	code, env := s.do(http.MethodPost, "/api/quarantine", domain.TierBasic, map[string]any{
		"shipment_id": shipment.ID, "quantity": 50, "reason": "bent pins",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	batch := decodeData[QuarantineBatchDTO](t, env)
	assert.Equal(t, "pending", batch.Status)
	assert.Equal(t, "50", batch.Quantity)

	code, env = s.do(http.MethodPost, "/api/quarantine", domain.TierBasic, map[string]any{
		"shipment_id": shipment.ID, "quantity": "-1", "reason": "bent pins",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "quantity", env.Field)

	code, env = s.do(http.MethodPost, "/api/quarantine", domain.TierBasic, map[string]any{
		"shipment_id": shipment.ID, "quantity": 2,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "reason", env.Field)

	code, _ = s.do(http.MethodGet, "/api/quarantine/nope/history", domain.TierBasic, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGageCalibration(t *testing.T) {
	s := newTestServer(t)
	interval := 90

	code, env := s.do(http.MethodPost, "/api/gages", domain.TierBasic, RegisterGageRequest{
		Name:                    "Bore micrometer",
		CalibrationDate:         "2026-01-01",
		CalibrationIntervalDays: &interval,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	gage := decodeData[GageDTO](t, env)
	assert.Equal(t, "active", gage.Status)

	code, env = s.do(http.MethodPost, "/api/gages", domain.TierBasic, RegisterGageRequest{Name: "Feeler set"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = s.do(http.MethodGet, "/api/gages/"+gage.ID+"/status?today=2026-03-25", domain.TierBasic, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	status := decodeData[GageCalibrationDTO](t, env)
	assert.Equal(t, "due-soon", status.Status)
	require.NotNil(t, status.DueDate)
	assert.Equal(t, "2026-04-01", *status.DueDate)
	require.NotNil(t, status.DaysUntilDue)
	assert.Equal(t, 7, *status.DaysUntilDue)

	code, env = s.do(http.MethodGet, "/api/gages/report?today=2026-04-02", domain.TierBasic, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	report := decodeData[[]GageCalibrationDTO](t, env)
	require.Len(t, report, 2)
	assert.Equal(t, "overdue", report[0].Status)
	assert.Equal(t, "unknown", report[1].Status)

	code, env = s.do(http.MethodPost, "/api/gages/"+gage.ID+"/calibration", domain.TierBasic, RecordCalibrationRequest{
		CalibrationDate:     "2026-04-02",
		NextCalibrationDate: "2026-03-01",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	recalibrated := decodeData[GageDTO](t, env)
	require.NotNil(t, recalibrated.CalibrationIntervalDays)
	assert.Equal(t, 0, *recalibrated.CalibrationIntervalDays)
	assert.Equal(t, "2026-03-01", *recalibrated.NextCalibrationDate)

	code, env = s.do(http.MethodPost, "/api/gages/"+gage.ID+"/calibration", domain.TierBasic, RecordCalibrationRequest{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "calibration_date", env.Field)

	code, _ = s.do(http.MethodGet, "/api/gages/"+gage.ID+"/status?today=04/02/2026", domain.TierBasic, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
