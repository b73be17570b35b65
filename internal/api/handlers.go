package api

import (
	"fmt"
	"net/http"
	"time"

	"psicoflow/internal/export"
)

// handleLedger returns the reconciled monthly ledger. Query: month=YYYY-MM
// (defaults to the current month).
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	ref := time.Now()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := parseMonth(m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		ref = parsed
	}

	l, err := s.svc.ComputeMonthlyLedger(r.Context(), owner, ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleLedgerExport streams the monthly ledger as a file download.
// Query: month=YYYY-MM, format=xlsx|csv (default xlsx).
func (s *Server) handleLedgerExport(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	ref := time.Now()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := parseMonth(m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		ref = parsed
	}

	l, err := s.svc.ComputeMonthlyLedger(r.Context(), owner, ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	month := ref.Format("2006-01")
	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%s.csv"`, month))
		if err := export.WriteLedgerCSV(w, l); err != nil {
			s.logger.Error().Err(err).Msg("csv export failed")
		}
	default:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%s.xlsx"`, month))
		if err := export.WriteLedgerXLSX(w, l, "Fluxo "+month); err != nil {
			s.logger.Error().Err(err).Msg("xlsx export failed")
		}
	}
}

// handleOccupancy returns the agenda grid for a date range.
// Query: start=YYYY-MM-DD, end=YYYY-MM-DD.
func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	start, err := parseDay(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDay(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not precede start")
		return
	}
	// Include the whole end day in the window.
	windowEnd := end.AddDate(0, 0, 1).Add(-time.Second)

	days, err := s.svc.ComputeCalendarOccupancy(r.Context(), owner, start, windowEnd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
