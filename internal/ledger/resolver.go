package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"psicoflow/internal/models"
)

// Labels shown on ledger entries. The product is Brazilian Portuguese.
const (
	LabelPrivate   = "Particular"
	LabelInsurance = "Convênio"
)

// ResolveValue computes the monetary value and label for one occurrence from
// a patient's billing configuration. It never fails: a broken plan reference
// or non-numeric value degrades to zero rather than blocking the whole month.
func ResolveValue(b models.BillingConfig) (decimal.Decimal, string) {
	b.Normalize()

	if b.PaymentType == models.PaymentInsurancePlan {
		if b.Plan == nil {
			return decimal.Zero, LabelInsurance
		}
		return parseAmount(b.Plan.Value), b.Plan.Name
	}

	// Private pay, or an unset/unknown payment type.
	return parseAmount(b.CustomPrice), LabelPrivate
}

// parseAmount parses a stored money value leniently, coercing failures to
// zero. Historical rows hold values like "100.50", "100,50" or plain garbage.
func parseAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	// Accept the Brazilian decimal comma seen in legacy rows.
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
