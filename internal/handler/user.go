package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/middleware"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
)

type UserHandler struct {
	userRepo    *repository.UserRepository
	contactRepo *repository.ContactRepository
}

func NewUserHandler(userRepo *repository.UserRepository, contactRepo *repository.ContactRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo, contactRepo: contactRepo}
}

// GetMe returns the authenticated user's profile, including the professional
// attributes when the account has them.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.userRepo.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pengguna tidak ditemukan")
			return
		}
		logger.Errorf("get profile user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat profil")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetContacts returns the viewer's counterpart directory: professionals for
// users, clients for professionals. The loader is picked once by role.
func (h *UserHandler) GetContacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	if userID == "" || !role.Valid() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	load := h.contactRepo.LoaderFor(role)
	contacts, err := load(r.Context())
	if err != nil {
		logger.Errorf("get contacts user=%s role=%s: %v", userID, role, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat kontak")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

type updateProfessionalRequest struct {
	Specialty string  `json:"specialty"`
	Rating    float64 `json:"rating"`
	Available bool    `json:"available"`
}

// UpdateProfessionalProfile upserts the professional attributes row for the
// authenticated professional.
func (h *UserHandler) UpdateProfessionalProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if role != model.RoleProfessional {
		writeError(w, http.StatusForbidden, "Hanya untuk profesional")
		return
	}
	var req updateProfessionalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Specialty = strings.TrimSpace(req.Specialty)
	if req.Specialty == "" {
		writeError(w, http.StatusBadRequest, "Spesialisasi wajib diisi")
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "Rating harus 0-5")
		return
	}
	p := &model.ProfessionalProfile{
		UserID:    userID,
		Specialty: req.Specialty,
		Rating:    req.Rating,
		Available: req.Available,
	}
	if err := h.userRepo.UpsertProfessional(r.Context(), p); err != nil {
		logger.Errorf("upsert professional user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal menyimpan profil")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
