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

const maxJournalContentLen = 10000

type JournalHandler struct {
	repo *repository.JournalRepository
}

func NewJournalHandler(repo *repository.JournalRepository) *JournalHandler {
	return &JournalHandler{repo: repo}
}

type createJournalRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Mood    string `json:"mood"`
}

func (h *JournalHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Judul dan isi wajib diisi")
		return
	}
	if len([]rune(req.Content)) > maxJournalContentLen {
		writeError(w, http.StatusBadRequest, "Isi jurnal terlalu panjang")
		return
	}
	j := &model.Journal{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		Mood:      strings.TrimSpace(req.Mood),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), j); err != nil {
		logger.Errorf("create journal user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal menyimpan jurnal")
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Errorf("list journals user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat jurnal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journals": list})
}

// Get returns one entry. Entries of other users read as not found.
func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "journalID")
	j, err := h.repo.GetForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Jurnal tidak ditemukan")
			return
		}
		logger.Errorf("get journal id=%s user=%s: %v", id, userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat jurnal")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "journalID")
	ok, err := h.repo.DeleteForUser(r.Context(), id, userID)
	if err != nil {
		logger.Errorf("delete journal id=%s user=%s: %v", id, userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal menghapus jurnal")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Jurnal tidak ditemukan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
