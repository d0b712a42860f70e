package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type CharacteristicKind string

const (
	KindMeasurement CharacteristicKind = "measurement"
	KindVisual      CharacteristicKind = "visual"
	KindFunctional  CharacteristicKind = "functional"
	KindAttribute   CharacteristicKind = "attribute"
)

func ParseCharacteristicKind(s string) (CharacteristicKind, error) {
	switch k := CharacteristicKind(strings.TrimSpace(s)); k {
	case KindMeasurement, KindVisual, KindFunctional, KindAttribute:
		return k, nil
	}
	return "", invalid("kind", "unknown characteristic kind %q", s)
}

// Result is the judgement for a single characteristic or a whole inspection.
type Result string

const (
	ResultPending Result = "pending"
	ResultPass    Result = "pass"
	ResultFail    Result = "fail"
)

func ParseResult(s string) (Result, error) {
	switch r := Result(strings.TrimSpace(s)); r {
	case ResultPending, ResultPass, ResultFail:
		return r, nil
	case "":
		return ResultPending, nil
	}
	return "", invalid("result", "unknown result %q", s)
}

func (r Result) Resolved() bool {
	return r == ResultPass || r == ResultFail
}

// CharacteristicSpec is one line of an inspection plan.
type CharacteristicSpec struct {
	ID             string
	PlanID         string
	Name           string
	Kind           CharacteristicKind
	Unit           string
	Nominal        decimal.Decimal
	UpperTolerance decimal.NullDecimal
	LowerTolerance decimal.NullDecimal
	IsCritical     bool
}

func (s CharacteristicSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name", "characteristic name is required")
	}
	if _, err := ParseCharacteristicKind(string(s.Kind)); err != nil {
		return err
	}
	return s.ValidateLimits()
}

// Decimal inputs are bounded so that comparing or rescaling them stays cheap.
// MaxValueLength also matches the stored width of a recorded actual value.
const (
	MaxValueLength     = 64
	MaxDecimalExponent = 32
)

func boundedDecimal(d decimal.Decimal) bool {
	e := d.Exponent()
	return e >= -MaxDecimalExponent && e <= MaxDecimalExponent && d.NumDigits() <= MaxValueLength
}

func checkDecimal(field string, d decimal.Decimal) error {
	if !boundedDecimal(d) {
		return invalid(field, "%s is out of range", field)
	}
	return nil
}

// ValidateLimits rejects nominal and tolerance values too large to evaluate.
func (s CharacteristicSpec) ValidateLimits() error {
	if err := checkDecimal("nominal", s.Nominal); err != nil {
		return err
	}
	if s.UpperTolerance.Valid {
		if err := checkDecimal("upper_tolerance", s.UpperTolerance.Decimal); err != nil {
			return err
		}
	}
	if s.LowerTolerance.Valid {
		if err := checkDecimal("lower_tolerance", s.LowerTolerance.Decimal); err != nil {
			return err
		}
	}
	return nil
}

// Limits returns the inclusive acceptance band. Tolerances are magnitudes,
// so a lower tolerance entered as -0.05 or 0.05 yields the same band.
func (s CharacteristicSpec) Limits() (lower, upper decimal.Decimal) {
	upperTol := decimal.Zero
	if s.UpperTolerance.Valid {
		upperTol = s.UpperTolerance.Decimal.Abs()
	}
	lowerTol := decimal.Zero
	if s.LowerTolerance.Valid {
		lowerTol = s.LowerTolerance.Decimal.Abs()
	}
	return s.Nominal.Sub(lowerTol), s.Nominal.Add(upperTol)
}

// Evaluate judges a measured value against the tolerance band. Blank or
// unparseable input stays pending so an inspector can fill fields in any order.
// Non-measurement kinds are judged by a person and always return pending here.
func (s CharacteristicSpec) Evaluate(actual string) Result {
	if s.Kind != KindMeasurement {
		return ResultPending
	}
	value, ok := ParseMeasurement(actual)
	if !ok {
		return ResultPending
	}
	lower, upper := s.Limits()
	if value.LessThan(lower) || value.GreaterThan(upper) {
		return ResultFail
	}
	return ResultPass
}

// Resolve picks the evaluator for measurements and the inspector's manual
// judgement for everything else.
func (s CharacteristicSpec) Resolve(actual string, manual Result) Result {
	if s.Kind == KindMeasurement {
		return s.Evaluate(actual)
	}
	if manual == "" {
		return ResultPending
	}
	return manual
}

// ParseMeasurement reads a measured value. Input that is too long or carries
// an extreme exponent is treated like any other unparseable value.
func ParseMeasurement(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxValueLength {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !boundedDecimal(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// CharacteristicResult is the recorded outcome for one spec within an inspection.
type CharacteristicResult struct {
	SpecID      string
	ActualValue string
	Result      Result
}

type InspectionPlan struct {
	ID              string
	PartTypeID      string
	Name            string
	Characteristics []CharacteristicSpec
}

func (p InspectionPlan) Spec(id string) (CharacteristicSpec, bool) {
	for _, s := range p.Characteristics {
		if s.ID == id {
			return s, true
		}
	}
	return CharacteristicSpec{}, false
}

func (p InspectionPlan) Validate() error {
	if strings.TrimSpace(p.PartTypeID) == "" {
		return invalid("part_type_id", "part type is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "plan name is required")
	}
	for _, s := range p.Characteristics {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
