package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"psicoflow/internal/models"
)

func sampleLedger() *models.Ledger {
	return &models.Ledger{
		Transactions: []models.Transaction{
			{
				ID:          "a1",
				Date:        time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local),
				PatientName: "Ana",
				Value:       decimal.RequireFromString("150.00"),
				PlanLabel:   "Particular",
				Status:      models.StatusCompleted,
			},
			{
				ID:           "s1@2025-06-09T10:00",
				Date:         time.Date(2025, 6, 9, 10, 0, 0, 0, time.Local),
				PatientName:  "Ana",
				Value:        decimal.RequireFromString("150.00"),
				PlanLabel:    "Particular",
				Status:       models.StatusScheduled,
				IsProjection: true,
			},
		},
		Estimated: decimal.RequireFromString("300.00"),
		Received:  decimal.RequireFromString("150.00"),
		Pending:   decimal.RequireFromString("150.00"),
		Average:   decimal.RequireFromString("150.00"),
	}
}

func TestWriteLedgerXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerXLSX(&buf, sampleLedger(), "Junho 2025"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Junho 2025")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)

	assert.Equal(t, ledgerColumns, rows[0])

	assert.Equal(t, "02/06/2025 10:00", rows[1][0])
	assert.Equal(t, "Ana", rows[1][1])
	assert.Equal(t, "Consulta", rows[1][5])

	assert.Equal(t, "Horário fixo", rows[2][5])

	// Totals block after the blank separator row.
	assert.Equal(t, "Estimado", rows[4][0])
	assert.Equal(t, "Recebido", rows[5][0])
	assert.Equal(t, "Pendente", rows[6][0])
}

func TestWriteLedgerXLSXTruncatesSheetName(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", 40)
	require.NoError(t, WriteLedgerXLSX(&buf, sampleLedger(), long))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.GetRows(long[:31])
	assert.NoError(t, err)
}

func TestWriteLedgerCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, sampleLedger()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, ledgerColumns, records[0])
	assert.Equal(t, []string{"02/06/2025 10:00", "Ana", "Particular", "150.00", "completed", "Consulta"}, records[1])
	assert.Equal(t, "Horário fixo", records[2][5])
}

func TestWriteLedgerCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, &models.Ledger{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
