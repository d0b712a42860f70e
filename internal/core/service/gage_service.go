package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

type GageService struct {
	base
	repo port.GageRepository
}

func NewGageService(repo port.GageRepository, opts ...Option) *GageService {
	return &GageService{base: newBase(opts), repo: repo}
}

// GageCalibration is a gage with its due date resolved for a given day.
type GageCalibration struct {
	Gage         domain.Gage
	DueDate      *time.Time
	DaysUntilDue *int
	Status       domain.CalibrationStatus
}

func classifyGage(g domain.Gage, today time.Time) GageCalibration {
	c := GageCalibration{Gage: g, Status: domain.CalibrationUnknown}
	if due, ok := g.DueDate(); ok {
		days := domain.DaysBetween(today, due)
		c.DueDate = &due
		c.DaysUntilDue = &days
		c.Status = domain.Classify(due, today)
	}
	return c
}

func (s *GageService) Register(ctx context.Context, p domain.Principal, g domain.Gage) (*domain.Gage, error) {
	if err := requireFeature(p, domain.FeatureGageCalibration); err != nil {
		return nil, err
	}

	g.ID = s.newID()
	g.AccountID = p.AccountID
	g.UpdatedAt = s.now()
	if g.Status == "" {
		g.Status = domain.GageActive
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.CalibrationDate != nil {
		// a registered calibration follows the same interval rules as a recalibration
		calibrated, err := g.RecordCalibration(*g.CalibrationDate, g.CalibrationIntervalDays, g.NextCalibrationDate, g.UpdatedAt)
		if err != nil {
			return nil, err
		}
		g = *calibrated
	} else if g.NextCalibrationDate != nil {
		d := domain.CalendarDate(*g.NextCalibrationDate)
		g.NextCalibrationDate = &d
	}

	if err := s.repo.CreateGage(ctx, g); err != nil {
		return nil, fmt.Errorf("create gage: %w", err)
	}
	s.log.Info("gage registered", "gage_id", g.ID, "name", g.Name)
	return &g, nil
}

func (s *GageService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Gage, error) {
	g, err := s.repo.GetGage(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := owned(p, g.AccountID, "gage", id); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GageService) RecordCalibration(ctx context.Context, p domain.Principal, gageID string, calibratedOn time.Time, intervalDays *int, nextDue *time.Time) (*domain.Gage, error) {
	if err := requireFeature(p, domain.FeatureGageCalibration); err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, p, gageID)
	if err != nil {
		return nil, err
	}

	next, err := g.RecordCalibration(calibratedOn, intervalDays, nextDue, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGage(ctx, *next); err != nil {
		return nil, fmt.Errorf("update gage: %w", err)
	}

	s.log.Info("gage calibrated", "gage_id", gageID, "calibrated_on", next.CalibrationDate.Format(time.DateOnly), "by", p.ID)
	return next, nil
}

func (s *GageService) Status(ctx context.Context, p domain.Principal, gageID string, today time.Time) (*GageCalibration, error) {
	if err := requireFeature(p, domain.FeatureGageCalibration); err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, p, gageID)
	if err != nil {
		return nil, err
	}
	c := classifyGage(*g, today)
	return &c, nil
}

var calibrationRank = map[domain.CalibrationStatus]int{
	domain.CalibrationOverdue: 0,
	domain.CalibrationDueSoon: 1,
	domain.CalibrationCurrent: 2,
	domain.CalibrationUnknown: 3,
}

// Report classifies every gage of the account, most urgent first.
func (s *GageService) Report(ctx context.Context, p domain.Principal, today time.Time) ([]GageCalibration, error) {
	if err := requireFeature(p, domain.FeatureGageCalibration); err != nil {
		return nil, err
	}
	gages, err := s.repo.ListGages(ctx, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list gages: %w", err)
	}

	report := make([]GageCalibration, 0, len(gages))
	for _, g := range gages {
		report = append(report, classifyGage(g, today))
	}
	sort.SliceStable(report, func(i, j int) bool {
		ri, rj := calibrationRank[report[i].Status], calibrationRank[report[j].Status]
		if ri != rj {
			return ri < rj
		}
		if report[i].DaysUntilDue != nil && report[j].DaysUntilDue != nil {
			return *report[i].DaysUntilDue < *report[j].DaysUntilDue
		}
		return report[i].Gage.Name < report[j].Gage.Name
	})
	return report, nil
}
