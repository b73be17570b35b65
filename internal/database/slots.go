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

// ListRecurringSlots returns every weekly slot for the owner, joined with the
// patient billing configuration and its plan. Slots are unbounded: weekly
// recurrence has no start or end date in this model.
func (db *DB) ListRecurringSlots(ctx context.Context, ownerID string) ([]models.SlotDetail, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.owner_id, s.patient_id, s.day_of_week, s.start_time, s.created_at,
		       p.name, p.payment_type, p.custom_price,
		       pl.id, pl.owner_id, pl.name, pl.value
		FROM recurring_slots s
		LEFT JOIN patients p ON p.id = s.patient_id
		LEFT JOIN plans pl ON pl.id = p.plan_id
		WHERE s.owner_id = ?
		ORDER BY s.day_of_week, s.start_time`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurring slots: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]int)
	var slots []models.SlotDetail
	for rows.Next() {
		var d models.SlotDetail
		var patientName, paymentType, customPrice sql.NullString
		var planID, planOwner, planName, planValue sql.NullString
		if err := rows.Scan(
			&d.ID, &d.OwnerID, &d.PatientID, &d.DayOfWeek, &d.StartTime, &d.CreatedAt,
			&patientName, &paymentType, &customPrice,
			&planID, &planOwner, &planName, &planValue,
		); err != nil {
			return nil, err
		}

		// A dirty plan join can fan out; fold extra rows into the existing
		// slot's raw plan list instead of duplicating the slot.
		if idx, seen := byID[d.ID]; seen {
			if planID.Valid {
				slots[idx].Billing.Plans = append(slots[idx].Billing.Plans, models.Plan{
					ID: planID.String, OwnerID: planOwner.String,
					Name: planName.String, Value: planValue.String,
				})
			}
			continue
		}

		d.Billing = models.BillingConfig{
			PatientID:   d.PatientID,
			PatientName: patientName.String,
			PaymentType: paymentType.String,
			CustomPrice: customPrice.String,
		}
		if planID.Valid {
			d.Billing.Plans = append(d.Billing.Plans, models.Plan{
				ID: planID.String, OwnerID: planOwner.String,
				Name: planName.String, Value: planValue.String,
			})
		}
		byID[d.ID] = len(slots)
		slots = append(slots, d)
	}
	return slots, rows.Err()
}

// GetRecurringSlot returns a single slot with billing, scoped to its owner.
func (db *DB) GetRecurringSlot(ctx context.Context, ownerID, id string) (*models.SlotDetail, error) {
	var d models.SlotDetail
	var patientName, paymentType, customPrice sql.NullString
	var planID, planOwner, planName, planValue sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT s.id, s.owner_id, s.patient_id, s.day_of_week, s.start_time, s.created_at,
		       p.name, p.payment_type, p.custom_price,
		       pl.id, pl.owner_id, pl.name, pl.value
		FROM recurring_slots s
		LEFT JOIN patients p ON p.id = s.patient_id
		LEFT JOIN plans pl ON pl.id = p.plan_id
		WHERE s.id = ? AND s.owner_id = ?
		LIMIT 1`,
		id, ownerID,
	).Scan(
		&d.ID, &d.OwnerID, &d.PatientID, &d.DayOfWeek, &d.StartTime, &d.CreatedAt,
		&patientName, &paymentType, &customPrice,
		&planID, &planOwner, &planName, &planValue,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.Billing = models.BillingConfig{
		PatientID:   d.PatientID,
		PatientName: patientName.String,
		PaymentType: paymentType.String,
		CustomPrice: customPrice.String,
	}
	if planID.Valid {
		d.Billing.Plans = append(d.Billing.Plans, models.Plan{
			ID: planID.String, OwnerID: planOwner.String,
			Name: planName.String, Value: planValue.String,
		})
	}
	return &d, nil
}

// InsertRecurringSlot creates a weekly slot, assigning a fresh id when empty.
func (db *DB) InsertRecurringSlot(ctx context.Context, s *models.RecurringSlot) error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week out of range: %d", s.DayOfWeek)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now()

	_, err := db.ExecContext(ctx, `
		INSERT INTO recurring_slots (id, owner_id, patient_id, day_of_week, start_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.PatientID, s.DayOfWeek, s.StartTime, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recurring slot: %w", err)
	}
	return nil
}

// DeleteRecurringSlot removes a slot. Already-materialized appointments are
// untouched; only future projections stop.
func (db *DB) DeleteRecurringSlot(ctx context.Context, ownerID, id string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM recurring_slots WHERE id = ? AND owner_id = ?", id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete recurring slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
