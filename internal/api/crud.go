package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"psicoflow/internal/models"
)

type appointmentRequest struct {
	PatientID string    `json:"patient_id"`
	Date      time.Time `json:"date"`
	Modality  string    `json:"modality"`
	Status    string    `json:"status"`
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	appt := &models.Appointment{
		OwnerID:   owner,
		PatientID: req.PatientID,
		Date:      req.Date,
		Modality:  req.Modality,
		Status:    req.Status,
	}
	if err := s.svc.BookAppointment(r.Context(), appt); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.svc.SetAppointmentStatus(r.Context(), owner, id, req.Status); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

func (s *Server) handleAppointmentMove(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	id := chi.URLParam(r, "id")

	var req struct {
		Date time.Time `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if err := s.svc.MoveAppointment(r.Context(), owner, id, req.Date); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "date": req.Date})
}

func (s *Server) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	if err := s.svc.RemoveAppointment(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	slots, err := s.svc.RecurringSlots(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type slotRequest struct {
	PatientID string `json:"patient_id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	slot := &models.RecurringSlot{
		OwnerID:   owner,
		PatientID: req.PatientID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
	}
	if err := s.svc.CreateRecurringSlot(r.Context(), slot); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleFinalizeSlot(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	slotID := chi.URLParam(r, "id")

	var req struct {
		Date   time.Time `json:"date"`
		Status string    `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date and status are required")
		return
	}

	appt, err := s.svc.FinalizeSlotOccurrence(r.Context(), owner, slotID, req.Date, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	if err := s.svc.RemoveRecurringSlot(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	patients, err := s.svc.Patients(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	plans, err := s.svc.Plans(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

type patientRequest struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PaymentType string  `json:"payment_type"`
	CustomPrice string  `json:"custom_price"`
	PlanID      *string `json:"plan_id"`
	Status      string  `json:"status"`
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &models.Patient{
		OwnerID:     owner,
		Name:        req.Name,
		Email:       req.Email,
		PaymentType: req.PaymentType,
		CustomPrice: req.CustomPrice,
		PlanID:      req.PlanID,
		Status:      req.Status,
	}
	if err := s.svc.CreatePatient(r.Context(), p); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &models.Patient{
		ID:          chi.URLParam(r, "id"),
		OwnerID:     owner,
		Name:        req.Name,
		Email:       req.Email,
		PaymentType: req.PaymentType,
		CustomPrice: req.CustomPrice,
		PlanID:      req.PlanID,
		Status:      req.Status,
	}
	if err := s.svc.UpdatePatient(r.Context(), p); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	if err := s.svc.RemovePatient(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type planRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &models.Plan{OwnerID: owner, Name: req.Name, Value: req.Value}
	if err := s.svc.CreatePlan(r.Context(), p); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &models.Plan{ID: chi.URLParam(r, "id"), OwnerID: owner, Name: req.Name, Value: req.Value}
	if err := s.svc.UpdatePlan(r.Context(), p); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner id is required")
		return
	}
	if err := s.svc.RemovePlan(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
