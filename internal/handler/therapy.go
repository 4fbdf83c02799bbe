package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mindcare/internal/aichat"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/middleware"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
)

const maxTherapyMessageLen = 2000

// TherapyHandler serves the guided assistant chat: step content lookups and
// the message exchange with the workflow backend.
type TherapyHandler struct {
	repo  *repository.TherapyRepository
	aiSvc *aichat.Service
}

func NewTherapyHandler(repo *repository.TherapyRepository, aiSvc *aichat.Service) *TherapyHandler {
	return &TherapyHandler{repo: repo, aiSvc: aiSvc}
}

func flowFromRequest(w http.ResponseWriter, r *http.Request) (model.TherapyFlow, bool) {
	flow := model.TherapyFlow(chi.URLParam(r, "flow"))
	if !flow.Valid() {
		writeError(w, http.StatusNotFound, "Alur tidak ditemukan")
		return "", false
	}
	return flow, true
}

// GetStep returns guided step content for the flow. The step number comes
// from the path when present, otherwise from the ?step= query (default 1).
func (h *TherapyHandler) GetStep(w http.ResponseWriter, r *http.Request) {
	flow, ok := flowFromRequest(w, r)
	if !ok {
		return
	}
	step := queryInt(r, "step", 1)
	if p := chi.URLParam(r, "step"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, http.StatusNotFound, "Langkah tidak ditemukan")
			return
		}
		step = n
	}
	s, err := h.repo.GetStep(r.Context(), flow, step)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Langkah tidak ditemukan")
			return
		}
		logger.Errorf("get step flow=%s step=%d: %v", flow, step, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat langkah")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type therapyMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage forwards the user's message to the workflow backend and waits
// for the assistant reply. The request context bounds the polling loop, so a
// dropped connection aborts it.
func (h *TherapyHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flow, ok := flowFromRequest(w, r)
	if !ok {
		return
	}
	if h.aiSvc == nil {
		writeError(w, http.StatusNotImplemented, "Asisten tidak tersedia")
		return
	}
	var req therapyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Pesan tidak boleh kosong")
		return
	}
	if len([]rune(text)) > maxTherapyMessageLen {
		writeError(w, http.StatusBadRequest, "Pesan terlalu panjang")
		return
	}
	res, err := h.aiSvc.Respond(r.Context(), userID, flow, text)
	if err != nil {
		// Only context cancellation reaches here; the client is gone.
		logger.Infof("therapy message aborted user=%s: %v", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
