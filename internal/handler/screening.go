package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/middleware"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
	"github.com/mindcare/internal/service"
)

type ScreeningHandler struct {
	repo *repository.ScreeningRepository
}

func NewScreeningHandler(repo *repository.ScreeningRepository) *ScreeningHandler {
	return &ScreeningHandler{repo: repo}
}

// GetInstruments lists the supported questionnaires. No auth required.
func (h *ScreeningHandler) GetInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"instruments": service.Instruments()})
}

type submitScreeningRequest struct {
	Instrument string `json:"instrument"`
	Answers    []int  `json:"answers"`
}

// Submit scores the answer vector and stores the result for the viewer.
func (h *ScreeningHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req submitScreeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	instrument := model.Instrument(req.Instrument)
	score, severity, err := service.ScoreScreening(instrument, req.Answers)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAnswers) {
			writeError(w, http.StatusBadRequest, "Jawaban tidak valid")
			return
		}
		writeError(w, http.StatusInternalServerError, "Gagal memproses jawaban")
		return
	}
	s := &model.Screening{
		ID:         uuid.New().String(),
		UserID:     userID,
		Instrument: instrument,
		Answers:    req.Answers,
		Score:      score,
		Severity:   severity,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), s); err != nil {
		logger.Errorf("create screening user=%s instrument=%s: %v", userID, instrument, err)
		writeError(w, http.StatusInternalServerError, "Gagal menyimpan hasil")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// History returns the viewer's screening results, newest first.
func (h *ScreeningHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Errorf("list screenings user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat riwayat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"screenings": list})
}
