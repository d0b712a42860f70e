package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func insertBatch(ctx context.Context, tx *sql.Tx, b domain.QuarantineBatch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO quarantine_batches
			(id, account_id, shipment_id, inspection_id, quantity, reason, status,
			 disposition, disposition_notes, disposition_by, disposition_date,
			 created_by, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.ShipmentID, nullString(b.InspectionID), b.Quantity, b.Reason, string(b.Status),
		nullString(string(b.Disposition)), nullString(b.DispositionNotes), nullString(b.DispositionBy),
		nullTimestamp(b.DispositionDate),
		b.CreatedBy, formatTimestamp(b.CreatedAt), formatTimestamp(b.UpdatedAt), b.Version,
	)
	if err != nil {
		return insertErr(err, "quarantine batch", b.ID)
	}
	return nil
}

func (s *SQLAdapter) CreateQuarantineBatch(ctx context.Context, b domain.QuarantineBatch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertBatch(ctx, tx, b)
	})
}

func (s *SQLAdapter) GetQuarantineBatch(ctx context.Context, id string) (*domain.QuarantineBatch, error) {
	var (
		b                    domain.QuarantineBatch
		inspectionID         sql.NullString
		status               string
		disposition          sql.NullString
		notes, by            sql.NullString
		dispositionDate      sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, shipment_id, inspection_id, quantity, reason, status,
			disposition, disposition_notes, disposition_by, disposition_date,
			created_by, created_at, updated_at, version
		FROM quarantine_batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.AccountID, &b.ShipmentID, &inspectionID, &b.Quantity, &b.Reason, &status,
		&disposition, &notes, &by, &dispositionDate,
		&b.CreatedBy, &createdAt, &updatedAt, &b.Version)
	if err != nil {
		return nil, notFound(err, "quarantine batch", id)
	}

	b.InspectionID = inspectionID.String
	b.Status = domain.QuarantineStatus(status)
	b.Disposition = domain.QuarantineStatus(disposition.String)
	b.DispositionNotes = notes.String
	b.DispositionBy = by.String
	if b.DispositionDate, err = scanNullTimestamp(dispositionDate); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateQuarantineBatch writes status and disposition fields in one statement,
// guarded by the version the caller read, and appends the audit row.
func (s *SQLAdapter) UpdateQuarantineBatch(ctx context.Context, b domain.QuarantineBatch, audit domain.QuarantineAuditEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE quarantine_batches
			SET status = ?, disposition = ?, disposition_notes = ?, disposition_by = ?,
				disposition_date = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			string(b.Status), nullString(string(b.Disposition)), nullString(b.DispositionNotes),
			nullString(b.DispositionBy), nullTimestamp(b.DispositionDate), formatTimestamp(b.UpdatedAt),
			b.ID, b.Version,
		)
		if err != nil {
			return fmt.Errorf("update quarantine batch: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if rows == 0 {
			return ErrOptimisticLock
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO quarantine_audit (id, batch_id, seq, from_status, to_status, actor, notes, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			audit.ID, b.ID, b.Version+1, string(audit.From), string(audit.To),
			audit.Actor, nullString(audit.Notes), formatTimestamp(audit.At),
		)
		if err != nil {
			return insertErr(err, "quarantine audit", audit.ID)
		}
		return nil
	})
}

func (s *SQLAdapter) ListQuarantineAudit(ctx context.Context, batchID string) ([]domain.QuarantineAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, from_status, to_status, actor, notes, occurred_at
		FROM quarantine_audit WHERE batch_id = ? ORDER BY seq`, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query quarantine audit: %w", err)
	}
	defer rows.Close()

	var entries []domain.QuarantineAuditEntry
	for rows.Next() {
		var (
			e        domain.QuarantineAuditEntry
			from, to string
			notes    sql.NullString
			at       string
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &from, &to, &e.Actor, &notes, &at); err != nil {
			return nil, fmt.Errorf("scan quarantine audit: %w", err)
		}
		e.From = domain.QuarantineStatus(from)
		e.To = domain.QuarantineStatus(to)
		e.Notes = notes.String
		if e.At, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quarantine audit: %w", err)
	}
	return entries, nil
}
