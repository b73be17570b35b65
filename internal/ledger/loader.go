package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"psicoflow/internal/metrics"
	"psicoflow/internal/models"
)

// Store is the narrow persistence surface the loader needs.
type Store interface {
	ListRecurringSlots(ctx context.Context, ownerID string) ([]models.SlotDetail, error)
	ListAppointments(ctx context.Context, ownerID string, start, end time.Time, excludeCancelled bool) ([]models.AppointmentDetail, error)
	UpdateAppointmentsStatus(ctx context.Context, ids []string, status string) error
}

// Loader fetches the two input sets for a reconciliation window. It is the
// only stage with I/O; the engine downstream is pure.
type Loader struct {
	store  Store
	logger *zerolog.Logger
	now    func() time.Time
}

func NewLoader(store Store, logger *zerolog.Logger) *Loader {
	return &Loader{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the loader's clock. Tests use this to pin "now".
func (l *Loader) WithClock(now func() time.Time) *Loader {
	l.now = now
	return l
}

// Window is one loaded reconciliation input set.
type Window struct {
	Start        time.Time
	End          time.Time
	Slots        []models.SlotDetail
	Appointments []models.AppointmentDetail
}

// LoadWindow fetches all recurring slots for the owner and all non-cancelled
// appointments with date in [start, end], both joined with billing. The two
// fetches run concurrently; failure of either aborts the load with no partial
// result.
//
// Side effect: appointments still scheduled but already in the past are
// promoted to completed with one batched update, and the returned set
// reflects the promotion. The update is best-effort; a storage failure there
// is logged, the in-memory promotion stands, and the next read retries.
func (l *Loader) LoadWindow(ctx context.Context, ownerID string, start, end time.Time) (*Window, error) {
	var (
		wg       sync.WaitGroup
		slots    []models.SlotDetail
		appts    []models.AppointmentDetail
		slotsErr error
		apptsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		slots, slotsErr = l.store.ListRecurringSlots(ctx, ownerID)
	}()
	go func() {
		defer wg.Done()
		appts, apptsErr = l.store.ListAppointments(ctx, ownerID, start, end, true)
	}()
	wg.Wait()

	if slotsErr != nil {
		return nil, fmt.Errorf("load recurring slots: %w", slotsErr)
	}
	if apptsErr != nil {
		return nil, fmt.Errorf("load appointments: %w", apptsErr)
	}

	// Join-shape normalization happens once, here; everything downstream
	// only ever sees Plan as a single record or nil.
	for i := range slots {
		slots[i].Billing.Normalize()
	}
	for i := range appts {
		appts[i].Billing.Normalize()
	}

	l.autoComplete(ctx, appts)

	return &Window{Start: start, End: end, Slots: slots, Appointments: appts}, nil
}

// autoComplete promotes past appointments still marked scheduled. Re-marking
// a completed appointment as completed is a no-op, so duplicate concurrent
// execution is safe.
func (l *Loader) autoComplete(ctx context.Context, appts []models.AppointmentDetail) {
	now := l.now()
	var ids []string
	for i := range appts {
		if appts[i].Status == models.StatusScheduled && appts[i].Date.Before(now) {
			ids = append(ids, appts[i].ID)
			appts[i].Status = models.StatusCompleted
		}
	}
	if len(ids) == 0 {
		return
	}

	metrics.AddAutoCompleted(len(ids))
	if err := l.store.UpdateAppointmentsStatus(ctx, ids, models.StatusCompleted); err != nil {
		l.logger.Error().Err(err).Int("count", len(ids)).
			Msg("auto-complete batch update failed, will retry on next load")
		return
	}
	l.logger.Debug().Int("count", len(ids)).Msg("auto-completed past appointments")
}
