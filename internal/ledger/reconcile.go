package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"psicoflow/internal/models"
)

// DefaultLegacyOffset compensates a historical data-entry defect: some
// appointment times were stored 3 hours ahead of the intended local time.
// Matching must check both the plain and the shifted clock time, otherwise
// legacy months double-count every affected slot.
const DefaultLegacyOffset = 3 * time.Hour

// Input is everything the reconciliation needs, already loaded in memory.
// The engine itself performs no I/O.
type Input struct {
	Start        time.Time
	End          time.Time
	Slots        []models.SlotDetail
	Appointments []models.AppointmentDetail
	LegacyOffset time.Duration // zero means DefaultLegacyOffset
}

// Reconcile merges recurring-slot projections with real appointments over
// [Start, End] and computes aggregate totals.
//
// For every day in the interval and every slot recurring on that weekday, a
// real appointment at the same day and HH:MM (or HH:MM shifted by the legacy
// offset) is authoritative and suppresses the projection, regardless of its
// status. Uncovered occurrences become virtual transactions with status
// scheduled. Cancelled appointments are expected to be filtered out by the
// loader before this runs, so a cancelled row does not suppress a projection.
func Reconcile(in Input) *models.Ledger {
	offset := in.LegacyOffset
	if offset == 0 {
		offset = DefaultLegacyOffset
	}

	// Index real appointments by calendar day for the cover checks.
	byDay := make(map[string][]models.AppointmentDetail)
	for _, a := range in.Appointments {
		key := a.Date.Format("2006-01-02")
		byDay[key] = append(byDay[key], a)
	}

	transactions := make([]models.Transaction, 0, len(in.Appointments))
	for _, a := range in.Appointments {
		value, label := ResolveValue(a.Billing)
		transactions = append(transactions, models.Transaction{
			ID:          a.ID,
			Date:        a.Date,
			PatientID:   a.PatientID,
			PatientName: a.Billing.PatientName,
			Value:       value,
			PlanLabel:   label,
			Status:      a.Status,
			Modality:    a.Modality,
		})
	}

	start := truncateDay(in.Start)
	end := truncateDay(in.End)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dayKey := d.Format("2006-01-02")
		weekday := int(d.Weekday())

		for _, s := range in.Slots {
			if s.DayOfWeek != weekday {
				continue
			}
			timeKey := s.TimeKey()
			if covered(byDay[dayKey], timeKey, offset) {
				continue
			}

			occurrence := atClock(d, timeKey)
			value, label := ResolveValue(s.Billing)
			transactions = append(transactions, models.Transaction{
				ID:           projectionID(s.ID, occurrence),
				Date:         occurrence,
				PatientID:    s.PatientID,
				PatientName:  s.Billing.PatientName,
				Value:        value,
				PlanLabel:    label,
				Status:       models.StatusScheduled,
				IsProjection: true,
				SlotID:       s.ID,
			})
		}
	}

	// Chronological order; equal timestamps fall back to ID so the result is
	// deterministic across runs.
	sort.Slice(transactions, func(i, j int) bool {
		if !transactions[i].Date.Equal(transactions[j].Date) {
			return transactions[i].Date.Before(transactions[j].Date)
		}
		return transactions[i].ID < transactions[j].ID
	})

	ledger := &models.Ledger{
		Transactions: transactions,
		Estimated:    decimal.Zero,
		Received:     decimal.Zero,
		Pending:      decimal.Zero,
		Average:      decimal.Zero,
	}
	for _, t := range transactions {
		ledger.Estimated = ledger.Estimated.Add(t.Value)
		if t.Status == models.StatusCompleted {
			ledger.Received = ledger.Received.Add(t.Value)
		}
	}
	ledger.Pending = ledger.Estimated.Sub(ledger.Received)
	if n := len(transactions); n > 0 {
		ledger.Average = ledger.Estimated.DivRound(decimal.NewFromInt(int64(n)), 2)
	}
	return ledger
}

// covered reports whether any real appointment in the day matches the slot's
// HH:MM, either directly or after the legacy offset correction.
func covered(dayAppointments []models.AppointmentDetail, timeKey string, offset time.Duration) bool {
	for _, a := range dayAppointments {
		if models.HourMinute(a.Date) == timeKey {
			return true
		}
		if models.HourMinute(a.Date.Add(offset)) == timeKey {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// atClock places an HH:MM clock time onto a calendar day.
func atClock(day time.Time, timeKey string) time.Time {
	hour, minute := 0, 0
	parts := strings.SplitN(timeKey, ":", 2)
	if len(parts) == 2 {
		hour, _ = strconv.Atoi(parts[0])
		minute, _ = strconv.Atoi(parts[1])
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// projectionID is deterministic so recomputing an unchanged month yields
// byte-identical results.
func projectionID(slotID string, occurrence time.Time) string {
	return fmt.Sprintf("%s@%s", slotID, occurrence.Format("2006-01-02T15:04"))
}
