package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"psicoflow/internal/events"
	"psicoflow/internal/ledger"
	"psicoflow/internal/metrics"
	"psicoflow/internal/models"
)

var (
	ErrInvalidFinalizeStatus = errors.New("finalize status must be completed or cancelled")
	ErrInvalidDayOfWeek      = errors.New("day_of_week must be between 0 (Sunday) and 6")
	ErrInvalidStartTime      = errors.New("start_time must be HH:MM")
	ErrMissingPatient        = errors.New("patient_id is required")
)

var startTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// Repository contains all DB interactions the schedule service needs.
type Repository interface {
	ledger.Store

	GetRecurringSlot(ctx context.Context, ownerID, id string) (*models.SlotDetail, error)
	InsertRecurringSlot(ctx context.Context, s *models.RecurringSlot) error
	DeleteRecurringSlot(ctx context.Context, ownerID, id string) error

	GetAppointment(ctx context.Context, ownerID, id string) (*models.Appointment, error)
	InsertAppointment(ctx context.Context, a *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, ownerID, id, status string) error
	UpdateAppointmentDate(ctx context.Context, ownerID, id string, date time.Time) error
	DeleteAppointment(ctx context.Context, ownerID, id string) error

	ListPatients(ctx context.Context, ownerID string) ([]models.Patient, error)
	InsertPatient(ctx context.Context, p *models.Patient) error
	UpdatePatient(ctx context.Context, p *models.Patient) error
	DeletePatient(ctx context.Context, ownerID, id string) error

	ListPlans(ctx context.Context, ownerID string) ([]models.Plan, error)
	InsertPlan(ctx context.Context, p *models.Plan) error
	UpdatePlan(ctx context.Context, p *models.Plan) error
	DeletePlan(ctx context.Context, ownerID, id string) error
}

// Options tunes reconciliation and the calendar grid.
type Options struct {
	LegacyOffset time.Duration // defaults to ledger.DefaultLegacyOffset
	DayStartHour int           // first calendar row, default 8
	DayEndHour   int           // last calendar row inclusive, default 20
}

// ScheduleService exposes the ledger and occupancy views plus every mutation
// that can change them. All methods take an explicit ownerID; there is no
// ambient session state.
type ScheduleService struct {
	repo   Repository
	loader *ledger.Loader
	cache  *ledger.Cache
	bus    *events.Bus
	logger *zerolog.Logger
	opts   Options
}

func NewScheduleService(repo Repository, cache *ledger.Cache, bus *events.Bus, logger *zerolog.Logger, opts Options) *ScheduleService {
	if opts.DayStartHour == 0 {
		opts.DayStartHour = 8
	}
	if opts.DayEndHour == 0 {
		opts.DayEndHour = 20
	}
	return &ScheduleService{
		repo:   repo,
		loader: ledger.NewLoader(repo, logger),
		cache:  cache,
		bus:    bus,
		logger: logger,
		opts:   opts,
	}
}

// Loader exposes the underlying loader, mainly so tests can pin its clock.
func (s *ScheduleService) Loader() *ledger.Loader {
	return s.loader
}

// ComputeMonthlyLedger reconciles the calendar month containing ref and
// returns the merged transaction timeline with totals.
func (s *ScheduleService) ComputeMonthlyLedger(ctx context.Context, ownerID string, ref time.Time) (*models.Ledger, error) {
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Second)

	// A cache hit skips the loader, including its auto-completion side
	// effect; a past appointment stays scheduled in storage until the entry
	// expires or a mutation invalidates it.
	if cached := s.cache.Get(ctx, ownerID, start); cached != nil {
		metrics.IncLedgerCache("hit")
		return cached, nil
	}
	metrics.IncLedgerCache("miss")

	w, err := s.loader.LoadWindow(ctx, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("compute monthly ledger: %w", err)
	}

	result := ledger.Reconcile(ledger.Input{
		Start:        w.Start,
		End:          w.End,
		Slots:        w.Slots,
		Appointments: w.Appointments,
		LegacyOffset: s.opts.LegacyOffset,
	})

	metrics.IncLedgerComputed()
	projections := 0
	for _, t := range result.Transactions {
		if t.IsProjection {
			projections++
		}
	}
	metrics.AddProjections(projections)

	s.cache.Put(ctx, ownerID, start, result)
	return result, nil
}

// Cell is one hour of one calendar day: a real appointment, a recurring slot
// projection, or nothing.
type Cell struct {
	Hour        int                       `json:"hour"`
	Appointment *models.AppointmentDetail `json:"appointment,omitempty"`
	Slot        *models.SlotDetail        `json:"slot,omitempty"`
}

// DayOccupancy is a day column of the agenda grid plus the merged, sorted
// timeline of the day's real and projected items.
type DayOccupancy struct {
	Date     time.Time            `json:"date"`
	Cells    []Cell               `json:"cells"`
	Timeline []models.Transaction `json:"timeline"`
}

// ComputeCalendarOccupancy builds the agenda grid for [start, end]. A real
// appointment at a cell's hour wins over a slot projection for that cell;
// both appear when their times differ.
func (s *ScheduleService) ComputeCalendarOccupancy(ctx context.Context, ownerID string, start, end time.Time) ([]DayOccupancy, error) {
	w, err := s.loader.LoadWindow(ctx, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("compute occupancy: %w", err)
	}

	offset := s.opts.LegacyOffset
	if offset == 0 {
		offset = ledger.DefaultLegacyOffset
	}

	merged := ledger.Reconcile(ledger.Input{
		Start:        w.Start,
		End:          w.End,
		Slots:        w.Slots,
		Appointments: w.Appointments,
		LegacyOffset: offset,
	})

	timelineByDay := make(map[string][]models.Transaction)
	for _, t := range merged.Transactions {
		key := t.Date.Format("2006-01-02")
		timelineByDay[key] = append(timelineByDay[key], t)
	}

	var days []DayOccupancy
	for d := truncateDay(start); !d.After(truncateDay(end)); d = d.AddDate(0, 0, 1) {
		day := DayOccupancy{Date: d, Timeline: timelineByDay[d.Format("2006-01-02")]}
		weekday := int(d.Weekday())

		for hour := s.opts.DayStartHour; hour <= s.opts.DayEndHour; hour++ {
			cell := Cell{Hour: hour}
			timeKey := fmt.Sprintf("%02d:00", hour)

			for i := range w.Appointments {
				a := &w.Appointments[i]
				if !models.SameDay(a.Date, d) {
					continue
				}
				if models.HourMinute(a.Date) == timeKey || models.HourMinute(a.Date.Add(offset)) == timeKey {
					cell.Appointment = a
					break
				}
			}
			if cell.Appointment == nil {
				for i := range w.Slots {
					sl := &w.Slots[i]
					if sl.DayOfWeek == weekday && sl.TimeKey() == timeKey {
						cell.Slot = sl
						break
					}
				}
			}
			day.Cells = append(day.Cells, cell)
		}
		days = append(days, day)
	}
	return days, nil
}

// FinalizeSlotOccurrence materializes one projected occurrence of a recurring
// slot into a real appointment with a terminal status. From then on the new
// row overrides the slot for that day and time.
func (s *ScheduleService) FinalizeSlotOccurrence(ctx context.Context, ownerID, slotID string, date time.Time, status string) (*models.Appointment, error) {
	if status != models.StatusCompleted && status != models.StatusCancelled {
		return nil, ErrInvalidFinalizeStatus
	}

	slot, err := s.repo.GetRecurringSlot(ctx, ownerID, slotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}

	appt := &models.Appointment{
		OwnerID:   ownerID,
		PatientID: slot.PatientID,
		Date:      date,
		Modality:  models.ModalityInPerson,
		Status:    status,
	}
	if err := s.repo.InsertAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("finalize slot occurrence: %w", err)
	}

	s.mutated(ctx, events.SlotOccurrenceFinal, ownerID, appt.ID)
	return appt, nil
}

// BookAppointment creates a concrete appointment.
func (s *ScheduleService) BookAppointment(ctx context.Context, a *models.Appointment) error {
	if a.PatientID == "" {
		return ErrMissingPatient
	}
	if err := s.repo.InsertAppointment(ctx, a); err != nil {
		return err
	}
	s.mutated(ctx, events.AppointmentCreated, a.OwnerID, a.ID)
	return nil
}

// MoveAppointment changes an appointment's instant (drag-move on the agenda).
func (s *ScheduleService) MoveAppointment(ctx context.Context, ownerID, id string, date time.Time) error {
	if err := s.repo.UpdateAppointmentDate(ctx, ownerID, id, date); err != nil {
		return err
	}
	s.mutated(ctx, events.AppointmentMoved, ownerID, id)
	return nil
}

// SetAppointmentStatus changes an appointment's status.
func (s *ScheduleService) SetAppointmentStatus(ctx context.Context, ownerID, id, status string) error {
	if err := s.repo.UpdateAppointmentStatus(ctx, ownerID, id, status); err != nil {
		return err
	}
	s.mutated(ctx, events.AppointmentStatus, ownerID, id)
	return nil
}

// RemoveAppointment deletes a single appointment.
func (s *ScheduleService) RemoveAppointment(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteAppointment(ctx, ownerID, id); err != nil {
		return err
	}
	s.mutated(ctx, events.AppointmentDeleted, ownerID, id)
	return nil
}

// CreateRecurringSlot registers a standing weekly commitment.
func (s *ScheduleService) CreateRecurringSlot(ctx context.Context, slot *models.RecurringSlot) error {
	if slot.PatientID == "" {
		return ErrMissingPatient
	}
	if slot.DayOfWeek < 0 || slot.DayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	if !startTimeRe.MatchString(slot.StartTime) {
		return ErrInvalidStartTime
	}
	if err := s.repo.InsertRecurringSlot(ctx, slot); err != nil {
		return err
	}
	s.mutated(ctx, events.SlotCreated, slot.OwnerID, slot.ID)
	return nil
}

// RemoveRecurringSlot deletes a slot. Not retroactive: materialized
// appointments stay, only future projections stop.
func (s *ScheduleService) RemoveRecurringSlot(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteRecurringSlot(ctx, ownerID, id); err != nil {
		return err
	}
	s.mutated(ctx, events.SlotDeleted, ownerID, id)
	return nil
}

// Patients lists the owner's patients.
func (s *ScheduleService) Patients(ctx context.Context, ownerID string) ([]models.Patient, error) {
	return s.repo.ListPatients(ctx, ownerID)
}

// CreatePatient registers a patient.
func (s *ScheduleService) CreatePatient(ctx context.Context, p *models.Patient) error {
	if err := s.repo.InsertPatient(ctx, p); err != nil {
		return err
	}
	s.mutated(ctx, events.BillingChanged, p.OwnerID, p.ID)
	return nil
}

// UpdatePatient changes a patient. Billing fields feed the value resolver, so
// cached ledgers for the owner are dropped.
func (s *ScheduleService) UpdatePatient(ctx context.Context, p *models.Patient) error {
	if err := s.repo.UpdatePatient(ctx, p); err != nil {
		return err
	}
	s.mutated(ctx, events.BillingChanged, p.OwnerID, p.ID)
	return nil
}

// RemovePatient deletes a patient and its recurring slots. Appointments stay
// for the financial history.
func (s *ScheduleService) RemovePatient(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeletePatient(ctx, ownerID, id); err != nil {
		return err
	}
	s.mutated(ctx, events.BillingChanged, ownerID, id)
	return nil
}

// Plans lists the owner's insurance plans.
func (s *ScheduleService) Plans(ctx context.Context, ownerID string) ([]models.Plan, error) {
	return s.repo.ListPlans(ctx, ownerID)
}

// CreatePlan registers an insurance plan.
func (s *ScheduleService) CreatePlan(ctx context.Context, p *models.Plan) error {
	if err := s.repo.InsertPlan(ctx, p); err != nil {
		return err
	}
	s.mutated(ctx, events.BillingChanged, p.OwnerID, p.ID)
	return nil
}

// UpdatePlan changes a plan's name or value.
func (s *ScheduleService) UpdatePlan(ctx context.Context, p *models.Plan) error {
	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return err
	}
	s.mutated(ctx, events.BillingChanged, p.OwnerID, p.ID)
	return nil
}

// RemovePlan deletes a plan unless patients still reference it.
func (s *ScheduleService) RemovePlan(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeletePlan(ctx, ownerID, id); err != nil {
		return err
	}
	s.mutated(ctx, events.BillingChanged, ownerID, id)
	return nil
}

// RecurringSlots lists the owner's weekly slots with billing.
func (s *ScheduleService) RecurringSlots(ctx context.Context, ownerID string) ([]models.SlotDetail, error) {
	return s.repo.ListRecurringSlots(ctx, ownerID)
}

func (s *ScheduleService) mutated(ctx context.Context, eventType, ownerID, entityID string) {
	s.cache.Invalidate(ctx, ownerID)
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: eventType, OwnerID: ownerID, EntityID: entityID})
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
