package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psicoflow/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedPatient(t *testing.T, db *DB, ownerID, name string, planID *string, paymentType, customPrice string) *models.Patient {
	t.Helper()
	p := &models.Patient{
		OwnerID:     ownerID,
		Name:        name,
		PaymentType: paymentType,
		CustomPrice: customPrice,
		PlanID:      planID,
	}
	require.NoError(t, db.InsertPatient(context.Background(), p))
	return p
}

func TestPlanCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	plan := &models.Plan{OwnerID: "owner", Name: "Unimed", Value: "80.00"}
	require.NoError(t, db.InsertPlan(ctx, plan))
	require.NotEmpty(t, plan.ID)

	got, err := db.GetPlan(ctx, "owner", plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unimed", got.Name)
	assert.Equal(t, "80.00", got.Value)

	plan.Value = "95.00"
	require.NoError(t, db.UpdatePlan(ctx, plan))
	got, err = db.GetPlan(ctx, "owner", plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "95.00", got.Value)

	plans, err := db.ListPlans(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	// Other owners never see it.
	_, err = db.GetPlan(ctx, "other", plan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.DeletePlan(ctx, "owner", plan.ID))
	_, err = db.GetPlan(ctx, "owner", plan.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePlanInUse(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	plan := &models.Plan{OwnerID: "owner", Name: "Unimed", Value: "80"}
	require.NoError(t, db.InsertPlan(ctx, plan))
	seedPatient(t, db, "owner", "Ana", &plan.ID, models.PaymentInsurancePlan, "")

	assert.ErrorIs(t, db.DeletePlan(ctx, "owner", plan.ID), ErrPlanInUse)
}

func TestPatientCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := seedPatient(t, db, "owner", "Ana", nil, "", "150.00")
	assert.Equal(t, models.PaymentPrivate, p.PaymentType)
	assert.Equal(t, "active", p.Status)

	got, err := db.GetPatient(ctx, "owner", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, "150.00", got.CustomPrice)
	assert.Nil(t, got.PlanID)

	got.Name = "Ana Souza"
	got.Email = "ana@example.com"
	require.NoError(t, db.UpdatePatient(ctx, got))
	got, err = db.GetPatient(ctx, "owner", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", got.Name)
	assert.Equal(t, "ana@example.com", got.Email)

	patients, err := db.ListPatients(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestDeletePatientCascadesSlots(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := seedPatient(t, db, "owner", "Ana", nil, models.PaymentPrivate, "150")
	slot := &models.RecurringSlot{OwnerID: "owner", PatientID: p.ID, DayOfWeek: 1, StartTime: "10:00"}
	require.NoError(t, db.InsertRecurringSlot(ctx, slot))

	appt := &models.Appointment{OwnerID: "owner", PatientID: p.ID, Date: time.Now()}
	require.NoError(t, db.InsertAppointment(ctx, appt))

	require.NoError(t, db.DeletePatient(ctx, "owner", p.ID))

	slots, err := db.ListRecurringSlots(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, slots)

	// Appointments survive for the financial history.
	_, err = db.GetAppointment(ctx, "owner", appt.ID)
	assert.NoError(t, err)
}

func TestListRecurringSlotsJoinsBilling(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	plan := &models.Plan{OwnerID: "owner", Name: "Unimed", Value: "80"}
	require.NoError(t, db.InsertPlan(ctx, plan))

	insured := seedPatient(t, db, "owner", "Bruno", &plan.ID, models.PaymentInsurancePlan, "")
	private := seedPatient(t, db, "owner", "Ana", nil, models.PaymentPrivate, "150,50")

	require.NoError(t, db.InsertRecurringSlot(ctx, &models.RecurringSlot{
		OwnerID: "owner", PatientID: insured.ID, DayOfWeek: 2, StartTime: "14:00",
	}))
	require.NoError(t, db.InsertRecurringSlot(ctx, &models.RecurringSlot{
		OwnerID: "owner", PatientID: private.ID, DayOfWeek: 1, StartTime: "10:00",
	}))

	slots, err := db.ListRecurringSlots(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, slots, 2)

	// Ordered by day_of_week.
	assert.Equal(t, "Ana", slots[0].Billing.PatientName)
	assert.Equal(t, "150,50", slots[0].Billing.CustomPrice)
	assert.Empty(t, slots[0].Billing.Plans)

	assert.Equal(t, "Bruno", slots[1].Billing.PatientName)
	require.Len(t, slots[1].Billing.Plans, 1)
	assert.Equal(t, "Unimed", slots[1].Billing.Plans[0].Name)
	assert.Equal(t, "80", slots[1].Billing.Plans[0].Value)
}

func TestInsertRecurringSlotRejectsBadDay(t *testing.T) {
	db := testDB(t)
	err := db.InsertRecurringSlot(context.Background(), &models.RecurringSlot{
		OwnerID: "owner", PatientID: "p1", DayOfWeek: 7, StartTime: "10:00",
	})
	assert.Error(t, err)
}

func TestAppointmentLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := seedPatient(t, db, "owner", "Ana", nil, models.PaymentPrivate, "150")
	date := time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local)

	appt := &models.Appointment{OwnerID: "owner", PatientID: p.ID, Date: date}
	require.NoError(t, db.InsertAppointment(ctx, appt))
	assert.Equal(t, models.ModalityInPerson, appt.Modality)
	assert.Equal(t, models.StatusScheduled, appt.Status)

	require.NoError(t, db.UpdateAppointmentStatus(ctx, "owner", appt.ID, models.StatusCompleted))
	got, err := db.GetAppointment(ctx, "owner", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	moved := date.AddDate(0, 0, 1)
	require.NoError(t, db.UpdateAppointmentDate(ctx, "owner", appt.ID, moved))
	got, err = db.GetAppointment(ctx, "owner", appt.ID)
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(moved))

	require.NoError(t, db.DeleteAppointment(ctx, "owner", appt.ID))
	_, err = db.GetAppointment(ctx, "owner", appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertAppointmentValidation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	err := db.InsertAppointment(ctx, &models.Appointment{
		OwnerID: "owner", PatientID: "p1", Date: time.Now(), Status: "done",
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = db.InsertAppointment(ctx, &models.Appointment{
		OwnerID: "owner", PatientID: "p1", Date: time.Now(), Modality: "phone",
	})
	assert.ErrorIs(t, err, ErrInvalidModality)
}

func TestListAppointmentsWindowAndCancelledFilter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := seedPatient(t, db, "owner", "Ana", nil, models.PaymentPrivate, "150")
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.Local)

	inWindow := &models.Appointment{OwnerID: "owner", PatientID: p.ID,
		Date: time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local)}
	require.NoError(t, db.InsertAppointment(ctx, inWindow))

	cancelled := &models.Appointment{OwnerID: "owner", PatientID: p.ID,
		Date:   time.Date(2025, 6, 16, 10, 0, 0, 0, time.Local),
		Status: models.StatusCancelled}
	require.NoError(t, db.InsertAppointment(ctx, cancelled))

	outside := &models.Appointment{OwnerID: "owner", PatientID: p.ID,
		Date: time.Date(2025, 7, 1, 10, 0, 0, 0, time.Local)}
	require.NoError(t, db.InsertAppointment(ctx, outside))

	all, err := db.ListAppointments(ctx, "owner", start, end, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := db.ListAppointments(ctx, "owner", start, end, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, inWindow.ID, active[0].ID)
	assert.Equal(t, "Ana", active[0].Billing.PatientName)
}

func TestUpdateAppointmentsStatusBatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := seedPatient(t, db, "owner", "Ana", nil, models.PaymentPrivate, "150")
	var ids []string
	for i := 0; i < 3; i++ {
		a := &models.Appointment{OwnerID: "owner", PatientID: p.ID,
			Date: time.Date(2025, 6, 2+i, 10, 0, 0, 0, time.Local)}
		require.NoError(t, db.InsertAppointment(ctx, a))
		ids = append(ids, a.ID)
	}

	require.NoError(t, db.UpdateAppointmentsStatus(ctx, ids[:2], models.StatusCompleted))

	for i, id := range ids {
		got, err := db.GetAppointment(ctx, "owner", id)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, models.StatusCompleted, got.Status)
		} else {
			assert.Equal(t, models.StatusScheduled, got.Status)
		}
	}

	// Empty batch is a no-op, invalid status is rejected.
	assert.NoError(t, db.UpdateAppointmentsStatus(ctx, nil, models.StatusCompleted))
	assert.ErrorIs(t, db.UpdateAppointmentsStatus(ctx, ids, "done"), ErrInvalidStatus)
}
