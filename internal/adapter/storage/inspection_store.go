package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

func (s *SQLAdapter) CreateInspection(ctx context.Context, insp domain.Inspection, since time.Time, admit port.AdmitFunc) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM inspections WHERE account_id = ? AND created_at >= ?`+s.lockSuffix(),
			insp.AccountID, formatTimestamp(since),
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("count inspections: %w", err)
		}
		if err := admit(count); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inspections
				(id, account_id, shipment_id, plan_id, overall_result, sample_size, inspector_id, created_at, completed_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			insp.ID, insp.AccountID, insp.ShipmentID, insp.PlanID, string(insp.OverallResult),
			insp.SampleSize, insp.InspectorID, formatTimestamp(insp.CreatedAt), nullTimestamp(insp.CompletedAt), insp.Version,
		)
		if err != nil {
			return insertErr(err, "inspection", insp.ID)
		}

		for i, r := range insp.Characteristics {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO characteristic_results (inspection_id, spec_id, ordinal, actual_value, result)
				VALUES (?, ?, ?, ?, ?)`,
				insp.ID, r.SpecID, i, r.ActualValue, string(r.Result),
			)
			if err != nil {
				return insertErr(err, "characteristic result", r.SpecID)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
			string(domain.ShipmentInInspection), formatTimestamp(insp.CreatedAt), insp.ShipmentID,
		)
		if err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		return expectOne(res, "shipment", insp.ShipmentID)
	})
}

func (s *SQLAdapter) GetInspection(ctx context.Context, id string) (*domain.Inspection, error) {
	var (
		insp        domain.Inspection
		overall     string
		createdAt   string
		completedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, shipment_id, plan_id, overall_result, sample_size, inspector_id, created_at, completed_at, version
		FROM inspections WHERE id = ?`, id,
	).Scan(&insp.ID, &insp.AccountID, &insp.ShipmentID, &insp.PlanID, &overall,
		&insp.SampleSize, &insp.InspectorID, &createdAt, &completedAt, &insp.Version)
	if err != nil {
		return nil, notFound(err, "inspection", id)
	}

	insp.OverallResult = domain.Result(overall)
	if insp.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if insp.CompletedAt, err = scanNullTimestamp(completedAt); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT spec_id, actual_value, result FROM characteristic_results
		WHERE inspection_id = ? ORDER BY ordinal`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query characteristic results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      domain.CharacteristicResult
			result string
		)
		if err := rows.Scan(&r.SpecID, &r.ActualValue, &result); err != nil {
			return nil, fmt.Errorf("scan characteristic result: %w", err)
		}
		r.Result = domain.Result(result)
		insp.Characteristics = append(insp.Characteristics, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characteristic results: %w", err)
	}
	return &insp, nil
}

func (s *SQLAdapter) SaveInspectionProgress(ctx context.Context, insp domain.Inspection) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeInspection(ctx, tx, insp)
	})
}

func (s *SQLAdapter) FinalizeInspection(ctx context.Context, insp domain.Inspection, status domain.ShipmentStatus, batch *domain.QuarantineBatch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writeInspection(ctx, tx, insp); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), nullTimestamp(insp.CompletedAt), insp.ShipmentID,
		)
		if err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		if err := expectOne(res, "shipment", insp.ShipmentID); err != nil {
			return err
		}

		if batch != nil {
			return insertBatch(ctx, tx, *batch)
		}
		return nil
	})
}

// writeInspection updates an inspection that is still open and unchanged
// since the caller read it. A row that was completed or written by someone
// else is reported as ErrOptimisticLock.
func writeInspection(ctx context.Context, tx *sql.Tx, insp domain.Inspection) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE inspections SET overall_result = ?, completed_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND completed_at IS NULL`,
		string(insp.OverallResult), nullTimestamp(insp.CompletedAt), insp.ID, insp.Version,
	)
	if err != nil {
		return fmt.Errorf("update inspection: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOptimisticLock
	}

	for _, r := range insp.Characteristics {
		_, err := tx.ExecContext(ctx, `
			UPDATE characteristic_results SET actual_value = ?, result = ?
			WHERE inspection_id = ? AND spec_id = ?`,
			r.ActualValue, string(r.Result), insp.ID, r.SpecID,
		)
		if err != nil {
			return fmt.Errorf("update characteristic result: %w", err)
		}
	}
	return nil
}
