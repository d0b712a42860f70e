package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func principal(tier domain.Tier) domain.Principal {
	return domain.Principal{ID: "user-1", AccountID: "acct-1", Role: "quality_engineer", Tier: tier}
}

func testOptions(cache *mockCacheRepo) []Option {
	var seq atomic.Int64
	opts := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	}
	if cache != nil {
		opts = append(opts, WithCache(cache))
	}
	return opts
}

type fixture struct {
	repo     *mockRepo
	plan     *domain.InspectionPlan
	shipment *domain.Shipment
}

// seed creates a part type, a two-characteristic plan, and a shipment of 50.
func seed(t *testing.T, p domain.Principal) fixture {
	t.Helper()
	ctx := context.Background()
	repo := newMockRepo()

	catalog := NewCatalogService(repo, testOptions(nil)...)
	pt, err := catalog.CreatePartType(ctx, p, "Connector J12", "")
	require.NoError(t, err)

	plan, err := catalog.CreateInspectionPlan(ctx, p, domain.InspectionPlan{
		PartTypeID: pt.ID,
		Name:       "J12 receiving",
		Characteristics: []domain.CharacteristicSpec{
			{
				ID:             "bore",
				Name:           "Bore diameter",
				Kind:           domain.KindMeasurement,
				Unit:           "mm",
				Nominal:        decimal.RequireFromString("10.5"),
				UpperTolerance: decimal.NewNullDecimal(decimal.RequireFromString("0.05")),
				LowerTolerance: decimal.NewNullDecimal(decimal.RequireFromString("0.05")),
				IsCritical:     true,
			},
			{ID: "pins", Name: "Pin straightness", Kind: domain.KindVisual},
		},
	})
	require.NoError(t, err)

	shipments := NewShipmentService(repo, repo, testOptions(nil)...)
	shipment, err := shipments.CreateShipment(ctx, p, pt.ID, 50)
	require.NoError(t, err)

	return fixture{repo: repo, plan: plan, shipment: shipment}
}
