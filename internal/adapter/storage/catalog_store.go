package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

func (s *SQLAdapter) CreatePartType(ctx context.Context, pt domain.PartType, admit port.AdmitFunc) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM part_types WHERE account_id = ?`+s.lockSuffix(),
			pt.AccountID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("count part types: %w", err)
		}
		if err := admit(count); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO part_types (id, account_id, name, description, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			pt.ID, pt.AccountID, pt.Name, pt.Description, formatTimestamp(pt.CreatedAt),
		)
		if err != nil {
			return insertErr(err, "part type", pt.ID)
		}
		return nil
	})
}

func (s *SQLAdapter) GetPartType(ctx context.Context, id string) (*domain.PartType, error) {
	var (
		pt          domain.PartType
		description sql.NullString
		createdAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, description, created_at
		FROM part_types WHERE id = ?`, id,
	).Scan(&pt.ID, &pt.AccountID, &pt.Name, &description, &createdAt)
	if err != nil {
		return nil, notFound(err, "part type", id)
	}

	pt.Description = description.String
	if pt.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &pt, nil
}

func (s *SQLAdapter) CreateInspectionPlan(ctx context.Context, plan domain.InspectionPlan) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inspection_plans (id, part_type_id, name) VALUES (?, ?, ?)`,
			plan.ID, plan.PartTypeID, plan.Name,
		)
		if err != nil {
			return insertErr(err, "inspection plan", plan.ID)
		}

		for i, spec := range plan.Characteristics {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO characteristic_specs
					(plan_id, id, ordinal, name, kind, unit, nominal, upper_tolerance, lower_tolerance, is_critical)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				plan.ID, spec.ID, i, spec.Name, string(spec.Kind), spec.Unit,
				spec.Nominal, spec.UpperTolerance, spec.LowerTolerance, boolToInt(spec.IsCritical),
			)
			if err != nil {
				return insertErr(err, "characteristic", spec.ID)
			}
		}
		return nil
	})
}

func (s *SQLAdapter) GetInspectionPlan(ctx context.Context, id string) (*domain.InspectionPlan, error) {
	var plan domain.InspectionPlan
	err := s.db.QueryRowContext(ctx, `
		SELECT id, part_type_id, name FROM inspection_plans WHERE id = ?`, id,
	).Scan(&plan.ID, &plan.PartTypeID, &plan.Name)
	if err != nil {
		return nil, notFound(err, "inspection plan", id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, unit, nominal, upper_tolerance, lower_tolerance, is_critical
		FROM characteristic_specs WHERE plan_id = ? ORDER BY ordinal`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query characteristics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			spec     domain.CharacteristicSpec
			kind     string
			unit     sql.NullString
			nominal  decimal.Decimal
			critical int
		)
		if err := rows.Scan(&spec.ID, &spec.Name, &kind, &unit, &nominal,
			&spec.UpperTolerance, &spec.LowerTolerance, &critical); err != nil {
			return nil, fmt.Errorf("scan characteristic: %w", err)
		}
		spec.PlanID = id
		spec.Kind = domain.CharacteristicKind(kind)
		spec.Unit = unit.String
		spec.Nominal = nominal
		spec.IsCritical = critical != 0
		plan.Characteristics = append(plan.Characteristics, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characteristics: %w", err)
	}
	return &plan, nil
}
