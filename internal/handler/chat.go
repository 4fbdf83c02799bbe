package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/middleware"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
	"github.com/mindcare/internal/ws"
)

// ChatHandler serves the REST side of conversations. Mutations go through
// the same store as the realtime path and are echoed to subscribers through
// the hub, so both transports observe identical rows.
type ChatHandler struct {
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
	hub      *ws.Hub
}

func NewChatHandler(msgRepo *repository.MessageRepository, userRepo *repository.UserRepository, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{msgRepo: msgRepo, userRepo: userRepo, hub: hub}
}

// pairFromRequest derives the conversation pair from the authenticated
// viewer and the contact_id path parameter, verifying the contact's role.
func (h *ChatHandler) pairFromRequest(w http.ResponseWriter, r *http.Request) (model.ConversationKey, bool) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	if userID == "" || !role.Valid() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return model.ConversationKey{}, false
	}
	contactID := chi.URLParam(r, "contactID")
	if contactID == "" {
		writeError(w, http.StatusBadRequest, "contact_id required")
		return model.ConversationKey{}, false
	}
	contact, err := h.userRepo.GetByID(r.Context(), contactID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Kontak tidak ditemukan")
		return model.ConversationKey{}, false
	}
	if contact.Role != role.Counterpart() {
		writeError(w, http.StatusForbidden, "Kontak bukan lawan bicara yang valid")
		return model.ConversationKey{}, false
	}
	return model.PairFor(userID, role, contactID), true
}

// GetMessages returns the full conversation history, oldest first.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}
	messages, err := h.msgRepo.ListConversation(r.Context(), key)
	if err != nil {
		logger.Errorf("list conversation user=%s professional=%s: %v", key.UserID, key.ProfessionalID, err)
		writeError(w, http.StatusInternalServerError, "Gagal memuat pesan")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage stores one message. The response carries the stored row; the
// realtime echo to subscribers is the same row.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}
	role := middleware.GetUserRole(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Pesan tidak boleh kosong")
		return
	}
	if len([]rune(text)) > model.MaxMessageLen {
		writeError(w, http.StatusBadRequest, "Pesan terlalu panjang")
		return
	}

	m := &model.ChatMessage{
		ID:             uuid.New().String(),
		UserID:         key.UserID,
		ProfessionalID: key.ProfessionalID,
		Message:        text,
		Sender:         role,
		MessageType:    model.MessageTypeText,
	}
	if err := h.msgRepo.Insert(r.Context(), m); err != nil {
		logger.Errorf("send message user=%s professional=%s: %v", key.UserID, key.ProfessionalID, err)
		writeError(w, http.StatusInternalServerError, "Gagal mengirim pesan")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastToConversation(key, ws.OutgoingMessage{Type: ws.EventMessageInsert, Payload: m})
	}
	writeJSON(w, http.StatusCreated, m)
}

// MarkRead stamps read_at on the counterpart's unread messages of the pair
// and broadcasts one update per affected row.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	key, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}
	role := middleware.GetUserRole(r.Context())

	ids, readAt, err := h.msgRepo.MarkRead(r.Context(), key, role)
	if err != nil {
		logger.Errorf("mark read user=%s professional=%s: %v", key.UserID, key.ProfessionalID, err)
		writeError(w, http.StatusInternalServerError, "Gagal menandai pesan")
		return
	}
	if h.hub != nil {
		for _, id := range ids {
			h.hub.BroadcastToConversation(key, ws.OutgoingMessage{Type: ws.EventMessageUpdate, Payload: ws.MessageUpdatePayload{
				MessageID: id,
				ReadAt:    readAt,
			}})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": len(ids)})
}
