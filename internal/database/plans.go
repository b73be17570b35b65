package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"psicoflow/internal/models"
)

// ListPlans returns all plans owned by the practitioner, ordered by name.
func (db *DB) ListPlans(ctx context.Context, ownerID string) ([]models.Plan, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, name, value, created_at, updated_at
		FROM plans
		WHERE owner_id = ?
		ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Value, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlan returns a single plan scoped to its owner.
func (db *DB) GetPlan(ctx context.Context, ownerID, id string) (*models.Plan, error) {
	var p models.Plan
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, value, created_at, updated_at
		FROM plans
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Value, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPlan creates a plan, assigning a fresh id when empty.
func (db *DB) InsertPlan(ctx context.Context, p *models.Plan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO plans (id, owner_id, name, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Value, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// UpdatePlan updates name and value of an owned plan.
func (db *DB) UpdatePlan(ctx context.Context, p *models.Plan) error {
	res, err := db.ExecContext(ctx, `
		UPDATE plans
		SET name = ?, value = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		p.Name, p.Value, time.Now(), p.ID, p.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlan removes a plan unless patients still reference it.
func (db *DB) DeletePlan(ctx context.Context, ownerID, id string) error {
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM patients WHERE plan_id = ?", id,
	).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrPlanInUse
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM plans WHERE id = ? AND owner_id = ?", id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
