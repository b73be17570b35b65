package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"psicoflow/internal/database"
	"psicoflow/internal/service"
)

// Server wires the schedule service into the HTTP surface.
type Server struct {
	svc    *service.ScheduleService
	db     *database.DB
	rdb    *redis.Client
	logger *zerolog.Logger
}

// RouterConfig carries everything NewRouter needs.
type RouterConfig struct {
	Service        *service.ScheduleService
	DB             *database.DB
	Redis          *redis.Client
	Logger         *zerolog.Logger
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(cfg RouterConfig) http.Handler {
	s := &Server{svc: cfg.Service, db: cfg.DB, rdb: cfg.Redis, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ledger", s.handleLedger)
		r.Get("/ledger/export", s.handleLedgerExport)
		r.Get("/agenda/occupancy", s.handleOccupancy)

		r.Post("/appointments", s.handleCreateAppointment)
		r.Patch("/appointments/{id}/status", s.handleAppointmentStatus)
		r.Patch("/appointments/{id}/date", s.handleAppointmentMove)
		r.Delete("/appointments/{id}", s.handleDeleteAppointment)

		r.Get("/slots", s.handleListSlots)
		r.Post("/slots", s.handleCreateSlot)
		r.Post("/slots/{id}/finalize", s.handleFinalizeSlot)
		r.Delete("/slots/{id}", s.handleDeleteSlot)

		r.Get("/patients", s.handleListPatients)
		r.Post("/patients", s.handleCreatePatient)
		r.Put("/patients/{id}", s.handleUpdatePatient)
		r.Delete("/patients/{id}", s.handleDeletePatient)

		r.Get("/plans", s.handleListPlans)
		r.Post("/plans", s.handleCreatePlan)
		r.Put("/plans/{id}", s.handleUpdatePlan)
		r.Delete("/plans/{id}", s.handleDeletePlan)
	})

	return r
}

// ownerID extracts the explicit practitioner id. Every operation is scoped to
// it; there is no ambient session.
func ownerID(r *http.Request) string {
	if v := r.Header.Get("X-Owner-ID"); v != "" {
		return v
	}
	return r.URL.Query().Get("owner_id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain sentinels to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInvalidStatus),
		errors.Is(err, database.ErrInvalidModality),
		errors.Is(err, service.ErrInvalidFinalizeStatus),
		errors.Is(err, service.ErrInvalidDayOfWeek),
		errors.Is(err, service.ErrInvalidStartTime),
		errors.Is(err, service.ErrMissingPatient):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrPlanInUse):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseMonth accepts YYYY-MM and returns the first instant of that month.
func parseMonth(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01", s, time.Local)
}

// parseDay accepts YYYY-MM-DD in local time.
func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
