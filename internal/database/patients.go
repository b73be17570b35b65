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

// ListPatients returns all patients owned by the practitioner, ordered by name.
func (db *DB) ListPatients(ctx context.Context, ownerID string) ([]models.Patient, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, name, email, payment_type, custom_price, plan_id,
		       status, created_at, updated_at
		FROM patients
		WHERE owner_id = ?
		ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

// GetPatient returns a single patient scoped to its owner.
func (db *DB) GetPatient(ctx context.Context, ownerID, id string) (*models.Patient, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, email, payment_type, custom_price, plan_id,
		       status, created_at, updated_at
		FROM patients
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InsertPatient creates a patient, assigning a fresh id when empty.
func (db *DB) InsertPatient(ctx context.Context, p *models.Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentType == "" {
		p.PaymentType = models.PaymentPrivate
	}
	if p.Status == "" {
		p.Status = "active"
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO patients (id, owner_id, name, email, payment_type, custom_price,
		                      plan_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, nullIfEmpty(p.Email), p.PaymentType,
		nullIfEmpty(p.CustomPrice), p.PlanID, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// UpdatePatient updates the mutable fields of an owned patient.
func (db *DB) UpdatePatient(ctx context.Context, p *models.Patient) error {
	res, err := db.ExecContext(ctx, `
		UPDATE patients
		SET name = ?, email = ?, payment_type = ?, custom_price = ?,
		    plan_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		p.Name, nullIfEmpty(p.Email), p.PaymentType, nullIfEmpty(p.CustomPrice),
		p.PlanID, p.Status, time.Now(), p.ID, p.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePatient removes a patient and its recurring slots. Appointments are
// kept for the financial history.
func (db *DB) DeletePatient(ctx context.Context, ownerID, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM recurring_slots WHERE patient_id = ? AND owner_id = ?", id, ownerID,
	); err != nil {
		return fmt.Errorf("delete patient slots: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM patients WHERE id = ? AND owner_id = ?", id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func scanPatient(row interface{ Scan(...any) error }) (*models.Patient, error) {
	var p models.Patient
	var email, customPrice, planID sql.NullString
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &email, &p.PaymentType, &customPrice,
		&planID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Email = email.String
	p.CustomPrice = customPrice.String
	if planID.Valid {
		p.PlanID = &planID.String
	}
	return &p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
