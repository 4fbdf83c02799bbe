package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/middleware"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
)

type BookingHandler struct {
	repo     *repository.BookingRepository
	userRepo *repository.UserRepository
}

func NewBookingHandler(repo *repository.BookingRepository, userRepo *repository.UserRepository) *BookingHandler {
	return &BookingHandler{repo: repo, userRepo: userRepo}
}

type createBookingRequest struct {
	ProfessionalID string    `json:"professional_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Note           string    `json:"note"`
}

// Create books a treatment slot with a professional. Users only.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if role != model.RoleUser {
		writeError(w, http.StatusForbidden, "Hanya pengguna yang dapat membuat janji")
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfessionalID == "" {
		writeError(w, http.StatusBadRequest, "professional_id required")
		return
	}
	if req.ScheduledAt.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "Jadwal harus di masa depan")
		return
	}
	prof, err := h.userRepo.GetByID(r.Context(), req.ProfessionalID)
	if err != nil || prof.Role != model.RoleProfessional {
		writeError(w, http.StatusNotFound, "Profesional tidak ditemukan")
		return
	}
	b := &model.Booking{
		ID:             uuid.New().String(),
		UserID:         userID,
		ProfessionalID: req.ProfessionalID,
		ScheduledAt:    req.ScheduledAt.UTC(),
		Status:         model.BookingStatusPending,
		Note:           strings.TrimSpace(req.Note),
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), b); err != nil {
		logger.Errorf("create booking user=%s professional=%s: %v", userID, req.ProfessionalID, err)
		writeError(w, http.StatusInternalServerError, "Gagal membuat janji")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// List returns the viewer's bookings, upcoming first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	if userID == "" || !role.Valid() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.repo.ListForViewer(r.Context(), userID, role)
	if err != nil {
		logger.Errorf("list bookings user=%s role=%s: %v", userID, role, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat janji")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

type updateBookingRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a booking along the pending -> confirmed -> completed
// state machine; either side may cancel before completion. Confirm and
// complete are the professional's transitions.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	if userID == "" || !role.Valid() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "bookingID")
	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next := model.BookingStatus(req.Status)

	b, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Janji tidak ditemukan")
			return
		}
		logger.Errorf("get booking id=%s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat janji")
		return
	}
	switch role {
	case model.RoleUser:
		if b.UserID != userID {
			writeError(w, http.StatusNotFound, "Janji tidak ditemukan")
			return
		}
		if next != model.BookingStatusCancelled {
			writeError(w, http.StatusForbidden, "Pengguna hanya dapat membatalkan janji")
			return
		}
	case model.RoleProfessional:
		if b.ProfessionalID != userID {
			writeError(w, http.StatusNotFound, "Janji tidak ditemukan")
			return
		}
	}
	if !b.CanTransition(next) {
		writeError(w, http.StatusConflict, "Perubahan status tidak valid")
		return
	}
	ok, err := h.repo.UpdateStatus(r.Context(), id, b.Status, next)
	if err != nil {
		logger.Errorf("update booking id=%s %s->%s: %v", id, b.Status, next, err)
		writeError(w, http.StatusInternalServerError, "Gagal memperbarui janji")
		return
	}
	if !ok {
		// A concurrent transition won the race.
		writeError(w, http.StatusConflict, "Perubahan status tidak valid")
		return
	}
	b.Status = next
	writeJSON(w, http.StatusOK, b)
}
