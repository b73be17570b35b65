package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psicoflow/internal/database"
	"psicoflow/internal/events"
	"psicoflow/internal/models"
)

func testService(t *testing.T) (*ScheduleService, *database.DB, *events.Bus) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus()
	svc := NewScheduleService(db, nil, bus, &logger, Options{})
	return svc, db, bus
}

func seedPrivatePatient(t *testing.T, db *database.DB, name, price string) *models.Patient {
	t.Helper()
	p := &models.Patient{OwnerID: "owner", Name: name, PaymentType: models.PaymentPrivate, CustomPrice: price}
	require.NoError(t, db.InsertPatient(context.Background(), p))
	return p
}

func pinClock(svc *ScheduleService, now time.Time) {
	svc.Loader().WithClock(func() time.Time { return now })
}

func TestComputeMonthlyLedgerEndToEnd(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()

	// Pin "now" before the month so nothing auto-completes.
	pinClock(svc, time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local))

	patient := seedPrivatePatient(t, db, "Ana", "150")
	require.NoError(t, svc.CreateRecurringSlot(ctx, &models.RecurringSlot{
		OwnerID: "owner", PatientID: patient.ID, DayOfWeek: 1, StartTime: "10:00",
	}))

	// One Monday materialized as completed.
	appt := &models.Appointment{
		OwnerID:   "owner",
		PatientID: patient.ID,
		Date:      time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local),
		Status:    models.StatusCompleted,
	}
	require.NoError(t, svc.BookAppointment(ctx, appt))

	l, err := svc.ComputeMonthlyLedger(ctx, "owner", time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)

	// June 2025 has 5 Mondays: 4 projections + 1 real row.
	require.Len(t, l.Transactions, 5)
	assert.True(t, l.Estimated.Equal(decimal.RequireFromString("750")))
	assert.True(t, l.Received.Equal(decimal.RequireFromString("150")))
	assert.True(t, l.Pending.Equal(decimal.RequireFromString("600")))
}

func TestComputeMonthlyLedgerAutoCompletes(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()

	patient := seedPrivatePatient(t, db, "Ana", "100")
	appt := &models.Appointment{
		OwnerID:   "owner",
		PatientID: patient.ID,
		Date:      time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local),
	}
	require.NoError(t, svc.BookAppointment(ctx, appt))

	// "Now" is past the appointment: the read must promote it.
	pinClock(svc, time.Date(2025, 6, 20, 0, 0, 0, 0, time.Local))

	l, err := svc.ComputeMonthlyLedger(ctx, "owner", time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, l.Transactions, 1)
	assert.Equal(t, models.StatusCompleted, l.Transactions[0].Status)
	assert.True(t, l.Received.Equal(decimal.RequireFromString("100")))

	// And the promotion is persisted.
	got, err := db.GetAppointment(ctx, "owner", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestCancelledAppointmentDoesNotSuppressProjection(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()

	pinClock(svc, time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local))

	patient := seedPrivatePatient(t, db, "Ana", "150")
	require.NoError(t, svc.CreateRecurringSlot(ctx, &models.RecurringSlot{
		OwnerID: "owner", PatientID: patient.ID, DayOfWeek: 1, StartTime: "10:00",
	}))

	// A cancelled session exactly at the slot's day and time: the occurrence
	// stays expected revenue and re-projects.
	appt := &models.Appointment{
		OwnerID:   "owner",
		PatientID: patient.ID,
		Date:      time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local),
		Status:    models.StatusCancelled,
	}
	require.NoError(t, svc.BookAppointment(ctx, appt))

	l, err := svc.ComputeMonthlyLedger(ctx, "owner", time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)

	// All 5 Mondays of June 2025 project; the cancelled row never appears.
	require.Len(t, l.Transactions, 5)
	for _, tr := range l.Transactions {
		assert.True(t, tr.IsProjection)
		assert.NotEqual(t, appt.ID, tr.ID)
	}
	assert.True(t, l.Estimated.Equal(decimal.RequireFromString("750")))
	assert.True(t, l.Received.IsZero())
}

func TestFinalizeSlotOccurrence(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()

	pinClock(svc, time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local))

	patient := seedPrivatePatient(t, db, "Ana", "150")
	slot := &models.RecurringSlot{OwnerID: "owner", PatientID: patient.ID, DayOfWeek: 1, StartTime: "10:00"}
	require.NoError(t, svc.CreateRecurringSlot(ctx, slot))

	occurrence := time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local)
	appt, err := svc.FinalizeSlotOccurrence(ctx, "owner", slot.ID, occurrence, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, appt.PatientID)
	assert.Equal(t, models.StatusCompleted, appt.Status)

	// The new row now covers that Monday: still 5 transactions, one real.
	l, err := svc.ComputeMonthlyLedger(ctx, "owner", occurrence)
	require.NoError(t, err)
	require.Len(t, l.Transactions, 5)
	assert.True(t, l.Received.Equal(decimal.RequireFromString("150")))
}

func TestFinalizeSlotOccurrenceRejectsNonTerminalStatus(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.FinalizeSlotOccurrence(context.Background(), "owner", "s1", time.Now(), models.StatusScheduled)
	assert.ErrorIs(t, err, ErrInvalidFinalizeStatus)
}

func TestFinalizeSlotOccurrenceUnknownSlot(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.FinalizeSlotOccurrence(context.Background(), "owner", "missing", time.Now(), models.StatusCancelled)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCreateRecurringSlotValidation(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		slot models.RecurringSlot
		want error
	}{
		{"missing patient", models.RecurringSlot{OwnerID: "o", DayOfWeek: 1, StartTime: "10:00"}, ErrMissingPatient},
		{"day too high", models.RecurringSlot{OwnerID: "o", PatientID: "p", DayOfWeek: 7, StartTime: "10:00"}, ErrInvalidDayOfWeek},
		{"day negative", models.RecurringSlot{OwnerID: "o", PatientID: "p", DayOfWeek: -1, StartTime: "10:00"}, ErrInvalidDayOfWeek},
		{"bad time", models.RecurringSlot{OwnerID: "o", PatientID: "p", DayOfWeek: 1, StartTime: "25:00"}, ErrInvalidStartTime},
		{"empty time", models.RecurringSlot{OwnerID: "o", PatientID: "p", DayOfWeek: 1, StartTime: ""}, ErrInvalidStartTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := tt.slot
			assert.ErrorIs(t, svc.CreateRecurringSlot(ctx, &slot), tt.want)
		})
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	svc, db, bus := testService(t)
	ctx := context.Background()

	var seen []string
	bus.SubscribeAll(func(e events.Event) { seen = append(seen, e.Type) })

	patient := seedPrivatePatient(t, db, "Ana", "150")
	slot := &models.RecurringSlot{OwnerID: "owner", PatientID: patient.ID, DayOfWeek: 1, StartTime: "10:00"}
	require.NoError(t, svc.CreateRecurringSlot(ctx, slot))

	appt := &models.Appointment{OwnerID: "owner", PatientID: patient.ID, Date: time.Now().AddDate(0, 0, 7)}
	require.NoError(t, svc.BookAppointment(ctx, appt))
	require.NoError(t, svc.SetAppointmentStatus(ctx, "owner", appt.ID, models.StatusCancelled))
	require.NoError(t, svc.RemoveAppointment(ctx, "owner", appt.ID))
	require.NoError(t, svc.RemoveRecurringSlot(ctx, "owner", slot.ID))

	assert.Equal(t, []string{
		events.SlotCreated,
		events.AppointmentCreated,
		events.AppointmentStatus,
		events.AppointmentDeleted,
		events.SlotDeleted,
	}, seen)
}

func TestComputeCalendarOccupancy(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()

	pinClock(svc, time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local))

	patient := seedPrivatePatient(t, db, "Ana", "150")
	slot := &models.RecurringSlot{OwnerID: "owner", PatientID: patient.ID, DayOfWeek: 1, StartTime: "10:00"}
	require.NoError(t, svc.CreateRecurringSlot(ctx, slot))

	// Real appointment on Monday June 9 at 10:00 overrides the slot cell.
	appt := &models.Appointment{
		OwnerID:   "owner",
		PatientID: patient.ID,
		Date:      time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local),
		Status:    models.StatusCompleted,
	}
	require.NoError(t, svc.BookAppointment(ctx, appt))

	start := time.Date(2025, 6, 9, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, 6, 16, 23, 59, 59, 0, time.Local)
	days, err := svc.ComputeCalendarOccupancy(ctx, "owner", start, end)
	require.NoError(t, err)
	require.Len(t, days, 8)

	cellAt := func(day DayOccupancy, hour int) Cell {
		for _, c := range day.Cells {
			if c.Hour == hour {
				return c
			}
		}
		t.Fatalf("no cell for hour %d", hour)
		return Cell{}
	}

	// June 9: the real appointment wins the 10:00 cell.
	first := cellAt(days[0], 10)
	require.NotNil(t, first.Appointment)
	assert.Nil(t, first.Slot)
	assert.Equal(t, appt.ID, first.Appointment.ID)

	// June 16: uncovered Monday shows the slot.
	second := cellAt(days[7], 10)
	assert.Nil(t, second.Appointment)
	require.NotNil(t, second.Slot)
	assert.Equal(t, slot.ID, second.Slot.ID)

	// Timeline for June 9 carries the real transaction, not a projection.
	require.Len(t, days[0].Timeline, 1)
	assert.False(t, days[0].Timeline[0].IsProjection)
}
