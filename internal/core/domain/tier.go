package domain

import (
	"fmt"
	"strings"
)

type Tier string

const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Tiers in ascending order. Each tier's features include everything below it.
var Tiers = []Tier{TierFree, TierBasic, TierProfessional, TierEnterprise}

func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierBasic, TierProfessional, TierEnterprise:
		return t, nil
	}
	return "", &ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier %q", s), Err: ErrInvalidTier}
}

type Feature string

const (
	FeatureInspections     Feature = "inspections"
	FeatureQuarantine      Feature = "quarantine"
	FeatureGageCalibration Feature = "gage_calibration"
	FeatureWarrantyClaims  Feature = "warranty_claims"
	FeatureReports         Feature = "reports"
	FeatureCFQ             Feature = "cfq"
	FeatureAPIAccess       Feature = "api_access"
	FeatureAuditExport     Feature = "audit_export"
	FeatureSSO             Feature = "sso"
)

type ResourceKind string

const (
	ResourcePartTypes           ResourceKind = "part_types"
	ResourceInspectionsPerMonth ResourceKind = "inspections_per_month"
	ResourceUsers               ResourceKind = "users"
)

func ParseResourceKind(s string) (ResourceKind, error) {
	switch r := ResourceKind(strings.TrimSpace(s)); r {
	case ResourcePartTypes, ResourceInspectionsPerMonth, ResourceUsers:
		return r, nil
	}
	return "", invalid("resource", "unknown resource kind %q", s)
}

// Unlimited marks a quota with no ceiling.
const Unlimited = -1

type TierLimits struct {
	MaxPartTypes           int
	MaxInspectionsPerMonth int
	MaxUsers               int
	Features               map[Feature]bool
}

func (l TierLimits) quota(kind ResourceKind) (int, error) {
	switch kind {
	case ResourcePartTypes:
		return l.MaxPartTypes, nil
	case ResourceInspectionsPerMonth:
		return l.MaxInspectionsPerMonth, nil
	case ResourceUsers:
		return l.MaxUsers, nil
	}
	return 0, invalid("resource", "unknown resource kind %q", kind)
}

func features(fs ...Feature) map[Feature]bool {
	m := make(map[Feature]bool, len(fs))
	for _, f := range fs {
		m[f] = true
	}
	return m
}

var (
	freeFeatures         = []Feature{FeatureInspections}
	basicFeatures        = append(append([]Feature{}, freeFeatures...), FeatureQuarantine, FeatureGageCalibration)
	professionalFeatures = append(append([]Feature{}, basicFeatures...), FeatureWarrantyClaims, FeatureReports, FeatureCFQ)
	enterpriseFeatures   = append(append([]Feature{}, professionalFeatures...), FeatureAPIAccess, FeatureAuditExport, FeatureSSO)
)

var tierLimits = map[Tier]TierLimits{
	TierFree:         {MaxPartTypes: 5, MaxInspectionsPerMonth: 25, MaxUsers: 1, Features: features(freeFeatures...)},
	TierBasic:        {MaxPartTypes: 50, MaxInspectionsPerMonth: 250, MaxUsers: 5, Features: features(basicFeatures...)},
	TierProfessional: {MaxPartTypes: 500, MaxInspectionsPerMonth: 2500, MaxUsers: 25, Features: features(professionalFeatures...)},
	TierEnterprise:   {MaxPartTypes: Unlimited, MaxInspectionsPerMonth: Unlimited, MaxUsers: Unlimited, Features: features(enterpriseFeatures...)},
}

// LimitsFor returns a copy of the tier's limits.
func LimitsFor(tier Tier) (TierLimits, error) {
	l, ok := tierLimits[tier]
	if !ok {
		_, err := ParseTier(string(tier))
		return TierLimits{}, err
	}
	out := l
	out.Features = make(map[Feature]bool, len(l.Features))
	for f := range l.Features {
		out.Features[f] = true
	}
	return out, nil
}

func Permits(tier Tier, feature Feature) (bool, error) {
	l, ok := tierLimits[tier]
	if !ok {
		_, err := ParseTier(string(tier))
		return false, err
	}
	return l.Features[feature], nil
}

// WithinQuota reports whether one more resource may be created given the
// count at the start of the check.
func WithinQuota(tier Tier, kind ResourceKind, currentCount int) (bool, error) {
	l, ok := tierLimits[tier]
	if !ok {
		_, err := ParseTier(string(tier))
		return false, err
	}
	if currentCount < 0 {
		return false, invalid("count", "count cannot be negative, got %d", currentCount)
	}
	limit, err := l.quota(kind)
	if err != nil {
		return false, err
	}
	return limit == Unlimited || currentCount < limit, nil
}

// CheckQuota is WithinQuota returning a QuotaExceededError instead of false.
func CheckQuota(tier Tier, kind ResourceKind, currentCount int) error {
	ok, err := WithinQuota(tier, kind, currentCount)
	if err != nil {
		return err
	}
	if !ok {
		l := tierLimits[tier]
		limit, _ := l.quota(kind)
		return &QuotaExceededError{Tier: tier, Resource: kind, Limit: limit, Count: currentCount}
	}
	return nil
}
