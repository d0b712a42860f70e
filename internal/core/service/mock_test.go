package service

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

// Mock QualityRepository
type mockRepo struct {
	mu          sync.Mutex
	partTypes   map[string]domain.PartType
	plans       map[string]domain.InspectionPlan
	shipments   map[string]domain.Shipment
	inspections map[string]domain.Inspection
	batches     map[string]domain.QuarantineBatch
	audit       map[string][]domain.QuarantineAuditEntry
	gages       map[string]domain.Gage
}

var _ port.QualityRepository = (*mockRepo)(nil)

func newMockRepo() *mockRepo {
	return &mockRepo{
		partTypes:   make(map[string]domain.PartType),
		plans:       make(map[string]domain.InspectionPlan),
		shipments:   make(map[string]domain.Shipment),
		inspections: make(map[string]domain.Inspection),
		batches:     make(map[string]domain.QuarantineBatch),
		audit:       make(map[string][]domain.QuarantineAuditEntry),
		gages:       make(map[string]domain.Gage),
	}
}

func (m *mockRepo) CreatePartType(ctx context.Context, pt domain.PartType, admit port.AdmitFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, existing := range m.partTypes {
		if existing.AccountID == pt.AccountID {
			count++
		}
	}
	if err := admit(count); err != nil {
		return err
	}
	m.partTypes[pt.ID] = pt
	return nil
}

func (m *mockRepo) GetPartType(ctx context.Context, id string) (*domain.PartType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pt, ok := m.partTypes[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "part type", ID: id}
	}
	return &pt, nil
}

func (m *mockRepo) CreateInspectionPlan(ctx context.Context, plan domain.InspectionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	return nil
}

func (m *mockRepo) GetInspectionPlan(ctx context.Context, id string) (*domain.InspectionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "inspection plan", ID: id}
	}
	return &plan, nil
}

func (m *mockRepo) CreateShipment(ctx context.Context, s domain.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipments[s.ID] = s
	return nil
}

func (m *mockRepo) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "shipment", ID: id}
	}
	return &s, nil
}

func (m *mockRepo) UpdateShipmentStatus(ctx context.Context, id string, status domain.ShipmentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return &domain.NotFoundError{Entity: "shipment", ID: id}
	}
	s.Status = status
	s.UpdatedAt = at
	m.shipments[id] = s
	return nil
}

func (m *mockRepo) CreateInspection(ctx context.Context, insp domain.Inspection, since time.Time, admit port.AdmitFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, existing := range m.inspections {
		if existing.AccountID == insp.AccountID && !existing.CreatedAt.Before(since) {
			count++
		}
	}
	if err := admit(count); err != nil {
		return err
	}
	m.inspections[insp.ID] = copyInspection(insp)
	s := m.shipments[insp.ShipmentID]
	s.Status = domain.ShipmentInInspection
	m.shipments[insp.ShipmentID] = s
	return nil
}

func (m *mockRepo) GetInspection(ctx context.Context, id string) (*domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	insp, ok := m.inspections[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "inspection", ID: id}
	}
	out := copyInspection(insp)
	return &out, nil
}

func (m *mockRepo) SaveInspectionProgress(ctx context.Context, insp domain.Inspection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkInspection(insp); err != nil {
		return err
	}
	insp.Version++
	m.inspections[insp.ID] = copyInspection(insp)
	return nil
}

func (m *mockRepo) FinalizeInspection(ctx context.Context, insp domain.Inspection, status domain.ShipmentStatus, batch *domain.QuarantineBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkInspection(insp); err != nil {
		return err
	}
	insp.Version++
	m.inspections[insp.ID] = copyInspection(insp)
	s := m.shipments[insp.ShipmentID]
	s.Status = status
	m.shipments[insp.ShipmentID] = s
	if batch != nil {
		m.batches[batch.ID] = *batch
	}
	return nil
}

func (m *mockRepo) checkInspection(insp domain.Inspection) error {
	stored := m.inspections[insp.ID]
	if stored.CompletedAt != nil || stored.Version != insp.Version {
		return port.ErrConflict
	}
	return nil
}

func (m *mockRepo) CreateQuarantineBatch(ctx context.Context, b domain.QuarantineBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
	return nil
}

func (m *mockRepo) GetQuarantineBatch(ctx context.Context, id string) (*domain.QuarantineBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "quarantine batch", ID: id}
	}
	return &b, nil
}

func (m *mockRepo) UpdateQuarantineBatch(ctx context.Context, b domain.QuarantineBatch, audit domain.QuarantineAuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.batches[b.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "quarantine batch", ID: b.ID}
	}
	if stored.Version != b.Version {
		return port.ErrConflict
	}
	b.Version++
	m.batches[b.ID] = b
	m.audit[b.ID] = append(m.audit[b.ID], audit)
	return nil
}

func (m *mockRepo) ListQuarantineAudit(ctx context.Context, batchID string) ([]domain.QuarantineAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.QuarantineAuditEntry(nil), m.audit[batchID]...), nil
}

func (m *mockRepo) CreateGage(ctx context.Context, g domain.Gage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gages[g.ID] = g
	return nil
}

func (m *mockRepo) GetGage(ctx context.Context, id string) (*domain.Gage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gages[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "gage", ID: id}
	}
	return &g, nil
}

func (m *mockRepo) UpdateGage(ctx context.Context, g domain.Gage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gages[g.ID]; !ok {
		return &domain.NotFoundError{Entity: "gage", ID: g.ID}
	}
	m.gages[g.ID] = g
	return nil
}

func (m *mockRepo) ListGages(ctx context.Context, accountID string) ([]domain.Gage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Gage
	for _, g := range m.gages {
		if g.AccountID == accountID {
			out = append(out, g)
		}
	}
	return out, nil
}

func copyInspection(insp domain.Inspection) domain.Inspection {
	insp.Characteristics = append([]domain.CharacteristicResult(nil), insp.Characteristics...)
	return insp
}

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}
