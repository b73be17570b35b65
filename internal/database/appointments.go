package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"psicoflow/internal/models"
)

// ListAppointments returns the owner's appointments with date in [start, end]
// joined with patient billing. Cancelled rows are excluded when
// excludeCancelled is set; revenue and occupancy views always exclude them.
func (db *DB) ListAppointments(ctx context.Context, ownerID string, start, end time.Time, excludeCancelled bool) ([]models.AppointmentDetail, error) {
	query := `
		SELECT a.id, a.owner_id, a.patient_id, a.date, a.modality, a.status,
		       a.created_at, a.updated_at,
		       p.name, p.payment_type, p.custom_price,
		       pl.id, pl.owner_id, pl.name, pl.value
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN plans pl ON pl.id = p.plan_id
		WHERE a.owner_id = ? AND a.date >= ? AND a.date <= ?`
	args := []any{ownerID, start, end}
	if excludeCancelled {
		query += " AND a.status != ?"
		args = append(args, models.StatusCancelled)
	}
	query += " ORDER BY a.date"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]int)
	var appts []models.AppointmentDetail
	for rows.Next() {
		var d models.AppointmentDetail
		var patientName, paymentType, customPrice sql.NullString
		var planID, planOwner, planName, planValue sql.NullString
		if err := rows.Scan(
			&d.ID, &d.OwnerID, &d.PatientID, &d.Date, &d.Modality, &d.Status,
			&d.CreatedAt, &d.UpdatedAt,
			&patientName, &paymentType, &customPrice,
			&planID, &planOwner, &planName, &planValue,
		); err != nil {
			return nil, err
		}

		if idx, seen := byID[d.ID]; seen {
			if planID.Valid {
				appts[idx].Billing.Plans = append(appts[idx].Billing.Plans, models.Plan{
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
		byID[d.ID] = len(appts)
		appts = append(appts, d)
	}
	return appts, rows.Err()
}

// GetAppointment returns a single appointment scoped to its owner.
func (db *DB) GetAppointment(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, patient_id, date, modality, status, created_at, updated_at
		FROM appointments
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&a.ID, &a.OwnerID, &a.PatientID, &a.Date, &a.Modality, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAppointment creates a concrete appointment, assigning a fresh id when
// empty. Defaults: modality in_person, status scheduled.
func (db *DB) InsertAppointment(ctx context.Context, a *models.Appointment) error {
	if a.Modality == "" {
		a.Modality = models.ModalityInPerson
	}
	if a.Status == "" {
		a.Status = models.StatusScheduled
	}
	if !validStatus(a.Status) {
		return ErrInvalidStatus
	}
	if a.Modality != models.ModalityInPerson && a.Modality != models.ModalityRemote {
		return ErrInvalidModality
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO appointments (id, owner_id, patient_id, date, modality, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.PatientID, a.Date, a.Modality, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// UpdateAppointmentsStatus sets the status of all given appointments in a
// single batched statement. Re-applying an already-set status is a no-op, so
// concurrent duplicate execution is safe.
func (db *DB) UpdateAppointmentsStatus(ctx context.Context, ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	if !validStatus(status) {
		return ErrInvalidStatus
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+2)
	args = append(args, status, time.Now())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := db.ExecContext(ctx,
		fmt.Sprintf("UPDATE appointments SET status = ?, updated_at = ? WHERE id IN (%s)", placeholders),
		args...,
	)
	if err != nil {
		return fmt.Errorf("batch update status: %w", err)
	}
	return nil
}

// UpdateAppointmentStatus sets the status of one owned appointment.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, ownerID, id, status string) error {
	if !validStatus(status) {
		return ErrInvalidStatus
	}
	res, err := db.ExecContext(ctx,
		"UPDATE appointments SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		status, time.Now(), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAppointmentDate moves an appointment to a new instant (drag-move).
func (db *DB) UpdateAppointmentDate(ctx context.Context, ownerID, id string, date time.Time) error {
	res, err := db.ExecContext(ctx,
		"UPDATE appointments SET date = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		date, time.Now(), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("update date: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAppointment removes one owned appointment.
func (db *DB) DeleteAppointment(ctx context.Context, ownerID, id string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM appointments WHERE id = ? AND owner_id = ?", id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func validStatus(s string) bool {
	switch s {
	case models.StatusScheduled, models.StatusCompleted, models.StatusCancelled:
		return true
	}
	return false
}
