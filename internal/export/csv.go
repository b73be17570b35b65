package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"psicoflow/internal/models"
)

// WriteLedgerCSV renders a reconciled ledger as CSV, matching the columns of
// the Excel export.
func WriteLedgerCSV(w io.Writer, l *models.Ledger) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ledgerColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, t := range l.Transactions {
		origin := "Consulta"
		if t.IsProjection {
			origin = "Horário fixo"
		}
		record := []string{
			t.Date.Format("02/01/2006 15:04"),
			t.PatientName,
			t.PlanLabel,
			t.Value.StringFixed(2),
			t.Status,
			origin,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
