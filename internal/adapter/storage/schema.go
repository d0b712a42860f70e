package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS part_types (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		account_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		created_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inspection_plans (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		part_type_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS characteristic_specs (
		plan_id VARCHAR(64) NOT NULL,
		id VARCHAR(64) NOT NULL,
		ordinal INTEGER NOT NULL,
		name VARCHAR(255) NOT NULL,
		kind VARCHAR(32) NOT NULL,
		unit VARCHAR(32),
		nominal VARCHAR(64) NOT NULL,
		upper_tolerance VARCHAR(64),
		lower_tolerance VARCHAR(64),
		is_critical INTEGER NOT NULL,
		PRIMARY KEY (plan_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS shipments (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		account_id VARCHAR(64) NOT NULL,
		part_type_id VARCHAR(64) NOT NULL,
		quantity INTEGER NOT NULL,
		status VARCHAR(32) NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inspections (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		account_id VARCHAR(64) NOT NULL,
		shipment_id VARCHAR(64) NOT NULL,
		plan_id VARCHAR(64) NOT NULL,
		overall_result VARCHAR(16) NOT NULL,
		sample_size INTEGER NOT NULL,
		inspector_id VARCHAR(64) NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		completed_at VARCHAR(40),
		version INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS characteristic_results (
		inspection_id VARCHAR(64) NOT NULL,
		spec_id VARCHAR(64) NOT NULL,
		ordinal INTEGER NOT NULL,
		actual_value VARCHAR(64) NOT NULL,
		result VARCHAR(16) NOT NULL,
		PRIMARY KEY (inspection_id, spec_id)
	)`,
	`CREATE TABLE IF NOT EXISTS quarantine_batches (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		account_id VARCHAR(64) NOT NULL,
		shipment_id VARCHAR(64) NOT NULL,
		inspection_id VARCHAR(64),
		quantity VARCHAR(64) NOT NULL,
		reason TEXT NOT NULL,
		status VARCHAR(32) NOT NULL,
		disposition VARCHAR(32),
		disposition_notes TEXT,
		disposition_by VARCHAR(64),
		disposition_date VARCHAR(40),
		created_by VARCHAR(64) NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quarantine_audit (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		batch_id VARCHAR(64) NOT NULL,
		seq INTEGER NOT NULL,
		from_status VARCHAR(32) NOT NULL,
		to_status VARCHAR(32) NOT NULL,
		actor VARCHAR(64) NOT NULL,
		notes TEXT,
		occurred_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gages (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		account_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		serial_number VARCHAR(128),
		calibration_date VARCHAR(10),
		next_calibration_date VARCHAR(10),
		calibration_interval_days INTEGER,
		status VARCHAR(32) NOT NULL,
		updated_at VARCHAR(40) NOT NULL
	)`,
}

// Quota counts scan by account, and on MySQL they hold locks on every row
// they read, so each counted table is indexed by account.
var indexes = []struct {
	name    string
	table   string
	columns string
}{
	{"idx_part_types_account", "part_types", "account_id"},
	{"idx_inspections_account_created", "inspections", "account_id, created_at"},
	{"idx_shipments_account", "shipments", "account_id"},
	{"idx_quarantine_audit_batch", "quarantine_audit", "batch_id, seq"},
	{"idx_gages_account", "gages", "account_id"},
}

// Migrate creates any missing tables and indexes. Statements run one at a
// time because the MySQL driver rejects multi-statement Exec by default.
func (s *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, idx := range indexes {
		if err := s.createIndex(ctx, idx.name, idx.table, idx.columns); err != nil {
			return fmt.Errorf("migrate index %s: %w", idx.name, err)
		}
	}
	return nil
}

// createIndex is idempotent on both dialects. MySQL has no CREATE INDEX IF
// NOT EXISTS, so the catalog is checked first.
func (s *SQLAdapter) createIndex(ctx context.Context, name, table, columns string) error {
	if s.dialect != DialectMySQL {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, columns))
		return err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`,
		table, name,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, columns))
	return err
}
