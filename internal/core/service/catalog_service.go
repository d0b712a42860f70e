package service

import (
	"context"
	"fmt"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

type CatalogService struct {
	base
	repo port.CatalogRepository
}

func NewCatalogService(repo port.CatalogRepository, opts ...Option) *CatalogService {
	return &CatalogService{base: newBase(opts), repo: repo}
}

// CreatePartType admits the new part type against the tier quota inside the
// repository transaction that inserts it.
func (s *CatalogService) CreatePartType(ctx context.Context, p domain.Principal, name, description string) (*domain.PartType, error) {
	pt, err := domain.NewPartType(s.newID(), p.AccountID, name, description, s.now())
	if err != nil {
		return nil, err
	}

	admit := func(count int) error {
		return domain.CheckQuota(p.Tier, domain.ResourcePartTypes, count)
	}
	if err := s.repo.CreatePartType(ctx, *pt, admit); err != nil {
		return nil, fmt.Errorf("create part type: %w", err)
	}

	s.log.Info("part type created", "part_type_id", pt.ID, "account_id", p.AccountID)
	return pt, nil
}

func (s *CatalogService) GetPartType(ctx context.Context, p domain.Principal, id string) (*domain.PartType, error) {
	pt, err := s.repo.GetPartType(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(p, pt.AccountID, "part type", id); err != nil {
		return nil, err
	}
	return pt, nil
}

func (s *CatalogService) CreateInspectionPlan(ctx context.Context, p domain.Principal, plan domain.InspectionPlan) (*domain.InspectionPlan, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetPartType(ctx, p, plan.PartTypeID); err != nil {
		return nil, err
	}

	plan.ID = s.newID()
	specs := make([]domain.CharacteristicSpec, len(plan.Characteristics))
	for i, spec := range plan.Characteristics {
		if spec.ID == "" {
			spec.ID = s.newID()
		}
		spec.PlanID = plan.ID
		specs[i] = spec
	}
	plan.Characteristics = specs

	if err := s.repo.CreateInspectionPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("create inspection plan: %w", err)
	}

	s.log.Info("inspection plan created", "plan_id", plan.ID, "characteristics", len(specs))
	return &plan, nil
}

func (s *CatalogService) GetInspectionPlan(ctx context.Context, p domain.Principal, id string) (*domain.InspectionPlan, error) {
	plan, err := s.repo.GetInspectionPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetPartType(ctx, p, plan.PartTypeID); err != nil {
		return nil, err
	}
	return plan, nil
}
