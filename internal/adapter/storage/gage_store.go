package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func (s *SQLAdapter) CreateGage(ctx context.Context, g domain.Gage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gages
			(id, account_id, name, serial_number, calibration_date, next_calibration_date,
			 calibration_interval_days, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.AccountID, g.Name, nullString(g.SerialNumber), nullDate(g.CalibrationDate),
		nullDate(g.NextCalibrationDate), nullInt(g.CalibrationIntervalDays), string(g.Status),
		formatTimestamp(g.UpdatedAt),
	)
	if err != nil {
		return insertErr(err, "gage", g.ID)
	}
	return nil
}

const gageColumns = `id, account_id, name, serial_number, calibration_date, next_calibration_date,
	calibration_interval_days, status, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGage(row rowScanner) (*domain.Gage, error) {
	var (
		g                 domain.Gage
		serial            sql.NullString
		calibrated, next  sql.NullString
		interval          sql.NullInt64
		status, updatedAt string
	)
	if err := row.Scan(&g.ID, &g.AccountID, &g.Name, &serial, &calibrated, &next, &interval, &status, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	g.SerialNumber = serial.String
	g.Status = domain.GageStatus(status)
	g.CalibrationIntervalDays = scanNullInt(interval)
	if g.CalibrationDate, err = scanNullDate(calibrated); err != nil {
		return nil, err
	}
	if g.NextCalibrationDate, err = scanNullDate(next); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SQLAdapter) GetGage(ctx context.Context, id string) (*domain.Gage, error) {
	g, err := scanGage(s.db.QueryRowContext(ctx, `SELECT `+gageColumns+` FROM gages WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "gage", id)
	}
	return g, nil
}

func (s *SQLAdapter) UpdateGage(ctx context.Context, g domain.Gage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE gages
		SET name = ?, serial_number = ?, calibration_date = ?, next_calibration_date = ?,
			calibration_interval_days = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		g.Name, nullString(g.SerialNumber), nullDate(g.CalibrationDate), nullDate(g.NextCalibrationDate),
		nullInt(g.CalibrationIntervalDays), string(g.Status), formatTimestamp(g.UpdatedAt), g.ID,
	)
	if err != nil {
		return fmt.Errorf("update gage: %w", err)
	}
	return expectOne(res, "gage", g.ID)
}

func (s *SQLAdapter) ListGages(ctx context.Context, accountID string) ([]domain.Gage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gageColumns+` FROM gages WHERE account_id = ? ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query gages: %w", err)
	}
	defer rows.Close()

	var gages []domain.Gage
	for rows.Next() {
		g, err := scanGage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gage: %w", err)
		}
		gages = append(gages, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gages: %w", err)
	}
	return gages, nil
}
