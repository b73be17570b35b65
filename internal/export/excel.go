package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"psicoflow/internal/models"
)

var ledgerColumns = []string{"Data", "Paciente", "Convênio", "Valor", "Status", "Origem"}

// WriteLedgerXLSX renders a reconciled ledger as an Excel workbook: one sheet
// of transactions followed by a totals block.
func WriteLedgerXLSX(w io.Writer, l *models.Ledger, sheetName string) error {
	if sheetName == "" {
		sheetName = "Fluxo de Caixa"
	}
	if len(sheetName) > 31 {
		sheetName = sheetName[:31] // Excel sheet name limit
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheetName)

	row := 1
	if err := writeRow(f, sheetName, row, toAny(ledgerColumns)); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, row)
		endCell, _ := excelize.CoordinatesToCellName(len(ledgerColumns), row)
		_ = f.SetCellStyle(sheetName, startCell, endCell, style)
	}
	row++

	for _, t := range l.Transactions {
		origin := "Consulta"
		if t.IsProjection {
			origin = "Horário fixo"
		}
		value, _ := t.Value.Float64()
		cells := []any{
			t.Date.Format("02/01/2006 15:04"),
			t.PatientName,
			t.PlanLabel,
			value,
			t.Status,
			origin,
		}
		if err := writeRow(f, sheetName, row, cells); err != nil {
			return err
		}
		row++
	}

	row++ // blank separator
	totals := [][]any{
		{"Estimado", toFloat(l.Estimated)},
		{"Recebido", toFloat(l.Received)},
		{"Pendente", toFloat(l.Pending)},
		{"Ticket médio", toFloat(l.Average)},
	}
	for _, line := range totals {
		if err := writeRow(f, sheetName, row, line); err != nil {
			return err
		}
		row++
	}

	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
