package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment modalities.
const (
	ModalityInPerson = "in_person"
	ModalityRemote   = "remote"
)

// Patient payment types.
const (
	PaymentPrivate       = "private"
	PaymentInsurancePlan = "insurance_plan"
)

// Plan is an insurance plan owned by the practitioner. Value is kept as the
// raw stored text; some historical rows hold non-numeric garbage, so parsing
// is deferred to the value resolver.
type Plan struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patient is a clinic patient record.
type Patient struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	PaymentType string    `json:"payment_type"`
	CustomPrice string    `json:"custom_price,omitempty"`
	PlanID      *string   `json:"plan_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BillingConfig carries the billing-relevant slice of a patient joined with
// its plan rows. Plans holds the raw join result (zero or more rows); Plan is
// filled by the loader's normalization pass and is what the resolver reads.
type BillingConfig struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	PaymentType string `json:"payment_type"`
	CustomPrice string `json:"custom_price,omitempty"`
	Plans       []Plan `json:"-"`
	Plan        *Plan  `json:"plan,omitempty"`
}

// Normalize collapses the raw plan join shape to a single *Plan (first row
// wins, nil when absent). Idempotent.
func (b *BillingConfig) Normalize() {
	if b.Plan != nil {
		return
	}
	if len(b.Plans) > 0 {
		p := b.Plans[0]
		b.Plan = &p
	}
}

// RecurringSlot is a standing weekly commitment with no end date. StartTime
// is stored as "HH:MM" or "HH:MM:SS" local clock time.
type RecurringSlot struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	PatientID string    `json:"patient_id"`
	DayOfWeek int       `json:"day_of_week"` // 0 = Sunday, matches time.Weekday
	StartTime string    `json:"start_time"`
	CreatedAt time.Time `json:"created_at"`
}

// TimeKey returns the slot start truncated to HH:MM.
func (s *RecurringSlot) TimeKey() string {
	if len(s.StartTime) >= 5 {
		return s.StartTime[:5]
	}
	return s.StartTime
}

// Appointment is a concrete dated occurrence.
type Appointment struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	PatientID string    `json:"patient_id"`
	Date      time.Time `json:"date"`
	Modality  string    `json:"modality"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotDetail is a recurring slot joined with its patient billing config.
type SlotDetail struct {
	RecurringSlot
	Billing BillingConfig `json:"billing"`
}

// AppointmentDetail is an appointment joined with its patient billing config.
type AppointmentDetail struct {
	Appointment
	Billing BillingConfig `json:"billing"`
}

// Transaction is a derived ledger entry, never persisted. IsProjection marks
// a virtual occurrence synthesized from a recurring slot with no matching
// real appointment; SlotID is set only for projections.
type Transaction struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	PatientID    string          `json:"patient_id"`
	PatientName  string          `json:"patient_name"`
	Value        decimal.Decimal `json:"value"`
	PlanLabel    string          `json:"plan_label"`
	Status       string          `json:"status"`
	Modality     string          `json:"modality,omitempty"`
	IsProjection bool            `json:"is_projection"`
	SlotID       string          `json:"slot_id,omitempty"`
}

// Ledger is the reconciled month view: merged real + projected transactions
// in chronological order plus aggregate totals.
type Ledger struct {
	Transactions []Transaction   `json:"transactions"`
	Estimated    decimal.Decimal `json:"estimated"`
	Received     decimal.Decimal `json:"received"`
	Pending      decimal.Decimal `json:"pending"`
	Average      decimal.Decimal `json:"average"`
}

// HourMinute formats a timestamp as its HH:MM clock component.
func HourMinute(t time.Time) string {
	return t.Format("15:04")
}

// SameDay reports whether two timestamps fall on the same calendar day in
// the first argument's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
