package domain

import (
	"strings"
	"time"
)

// DueSoonWindowDays is how far ahead a calibration counts as due soon.
const DueSoonWindowDays = 30

type CalibrationStatus string

const (
	CalibrationUnknown CalibrationStatus = "unknown"
	CalibrationOverdue CalibrationStatus = "overdue"
	CalibrationDueSoon CalibrationStatus = "due-soon"
	CalibrationCurrent CalibrationStatus = "current"
)

type GageStatus string

const (
	GageActive       GageStatus = "active"
	GageOutOfService GageStatus = "out_of_service"
	GageRetired      GageStatus = "retired"
)

func ParseGageStatus(s string) (GageStatus, error) {
	switch st := GageStatus(strings.TrimSpace(s)); st {
	case GageActive, GageOutOfService, GageRetired:
		return st, nil
	case "":
		return GageActive, nil
	}
	return "", invalid("status", "unknown gage status %q", s)
}

type Gage struct {
	ID                      string
	AccountID               string
	Name                    string
	SerialNumber            string
	CalibrationDate         *time.Time
	NextCalibrationDate     *time.Time
	CalibrationIntervalDays *int
	Status                  GageStatus
	UpdatedAt               time.Time
}

func (g *Gage) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return invalid("name", "gage name is required")
	}
	if g.CalibrationIntervalDays != nil && *g.CalibrationIntervalDays < 0 {
		return invalid("calibration_interval_days", "interval cannot be negative, got %d", *g.CalibrationIntervalDays)
	}
	if _, err := ParseGageStatus(string(g.Status)); err != nil {
		return err
	}
	return nil
}

// DueDate prefers an explicit next calibration date over the derived one.
func (g *Gage) DueDate() (time.Time, bool) {
	if g.NextCalibrationDate != nil {
		return CalendarDate(*g.NextCalibrationDate), true
	}
	return DueDate(g.CalibrationDate, g.CalibrationIntervalDays)
}

func (g *Gage) Classify(today time.Time) CalibrationStatus {
	due, ok := g.DueDate()
	if !ok {
		return CalibrationUnknown
	}
	return Classify(due, today)
}

// RecordCalibration returns the gage recalibrated on calibratedOn. An explicit
// next due date wins; without an interval the interval is derived from it and
// clamped at zero. Without either, the previous interval carries forward.
func (g *Gage) RecordCalibration(calibratedOn time.Time, intervalDays *int, nextDue *time.Time, now time.Time) (*Gage, error) {
	if calibratedOn.IsZero() {
		return nil, invalid("calibration_date", "calibration date is required")
	}
	if intervalDays != nil && *intervalDays < 0 {
		return nil, invalid("calibration_interval_days", "interval cannot be negative, got %d", *intervalDays)
	}

	next := *g
	on := CalendarDate(calibratedOn)
	next.CalibrationDate = &on
	next.UpdatedAt = now

	interval := g.CalibrationIntervalDays
	if intervalDays != nil {
		v := *intervalDays
		interval = &v
	}

	switch {
	case nextDue != nil:
		due := CalendarDate(*nextDue)
		next.NextCalibrationDate = &due
		if intervalDays == nil {
			v := IntervalDays(on, due)
			interval = &v
		}
	case interval != nil:
		due, _ := DueDate(&on, interval)
		next.NextCalibrationDate = &due
	default:
		next.NextCalibrationDate = nil
	}
	next.CalibrationIntervalDays = interval
	return &next, nil
}

// DueDate derives calibrationDate + intervalDays. Either input missing means unknown.
func DueDate(calibrationDate *time.Time, intervalDays *int) (time.Time, bool) {
	if calibrationDate == nil || intervalDays == nil {
		return time.Time{}, false
	}
	return CalendarDate(*calibrationDate).AddDate(0, 0, *intervalDays), true
}

// Classify compares calendar dates only; time of day never matters.
func Classify(due, today time.Time) CalibrationStatus {
	days := DaysBetween(today, due)
	switch {
	case days < 0:
		return CalibrationOverdue
	case days <= DueSoonWindowDays:
		return CalibrationDueSoon
	default:
		return CalibrationCurrent
	}
}

// IntervalDays is the whole-day span from one date to another, never negative.
func IntervalDays(from, due time.Time) int {
	return max(0, DaysBetween(from, due))
}

// CalendarDate drops the time of day, keeping the date as seen in t's own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b, negative when b is earlier.
func DaysBetween(a, b time.Time) int {
	return int(CalendarDate(b).Sub(CalendarDate(a)).Hours() / 24)
}
