package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
)

const pushPreviewLen = 50

// MessageStore is the slice of the message repository the hub needs.
type MessageStore interface {
	Insert(ctx context.Context, m *model.ChatMessage) error
	MarkRead(ctx context.Context, key model.ConversationKey, viewerRole model.Role) ([]string, time.Time, error)
}

// UserDirectory resolves users for subscription checks and push titles.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// PushNotifier sends push notifications. nil disables pushes.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Hub routes realtime events between connections. Each connection holds at
// most one live conversation subscription; presence is kept in memory only
// and rebuilt from scratch on restart.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{}
	subs      map[model.ConversationKey]map[*Client]struct{}
	clientSub map[*Client]model.ConversationKey
	presence  map[string]model.Heartbeat
	total     int
	maxConns  int

	msgRepo    MessageStore
	userRepo   UserDirectory
	pushClient PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(msgRepo MessageStore, userRepo UserDirectory, maxConns int, pushClient PushNotifier) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		subs:       make(map[model.ConversationKey]map[*Client]struct{}),
		clientSub:  make(map[*Client]model.ConversationKey),
		presence:   make(map[string]model.Heartbeat),
		maxConns:   maxConns,
		msgRepo:    msgRepo,
		userRepo:   userRepo,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.subs = make(map[model.ConversationKey]map[*Client]struct{})
	h.clientSub = make(map[*Client]model.ConversationKey)
	h.presence = make(map[string]model.Heartbeat)
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	firstConn := len(h.clients[c.userID]) == 1
	var hb model.Heartbeat
	if firstConn {
		hb = model.Heartbeat{UserID: c.userID, Role: c.role, OnlineAt: time.Now().UTC()}
		h.presence[c.userID] = hb
	}
	h.mu.Unlock()

	h.sendToClient(c, OutgoingMessage{Type: EventPresenceSync, Payload: PresenceSyncPayload{Online: h.PresenceSnapshot()}})
	if firstConn {
		h.broadcastPresence(EventPresenceJoin, hb, c.userID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	h.dropSubscriptionLocked(c)
	lastClient := len(clients) == 0
	var hb model.Heartbeat
	if lastClient {
		delete(h.clients, c.userID)
		hb = h.presence[c.userID]
		delete(h.presence, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	if lastClient {
		hb.OnlineAt = time.Now().UTC()
		h.broadcastPresence(EventPresenceLeave, hb, c.userID)
	}
}

// dropSubscriptionLocked removes c's subscription. Caller holds h.mu.
func (h *Hub) dropSubscriptionLocked(c *Client) {
	key, ok := h.clientSub[c]
	if !ok {
		return
	}
	delete(h.clientSub, c)
	if set, ok := h.subs[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// HandleMessage dispatches incoming WebSocket events.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventSubscribe:
		h.handleSubscribe(ctx, c, msg)
	case EventUnsubscribe:
		h.handleUnsubscribe(c)
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventMarkRead:
		h.handleMarkRead(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

// handleSubscribe replaces the connection's active subscription with the
// conversation pair derived from contact_id. At most one per connection.
func (h *Hub) handleSubscribe(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSubscribe", time.Now())()
	if msg.ContactID == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "contact_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	contact, err := h.userRepo.GetByID(ctx, msg.ContactID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "contact not found"})
		return
	}
	if contact.Role != c.role.Counterpart() {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "contact role mismatch"})
		return
	}

	key := model.PairFor(c.userID, c.role, msg.ContactID)

	h.mu.Lock()
	h.dropSubscriptionLocked(c)
	if _, ok := h.subs[key]; !ok {
		h.subs[key] = make(map[*Client]struct{})
	}
	h.subs[key][c] = struct{}{}
	h.clientSub[c] = key
	h.mu.Unlock()

	h.sendToClient(c, OutgoingMessage{Type: EventSubscribed, Payload: SubscribedPayload{
		UserID:         key.UserID,
		ProfessionalID: key.ProfessionalID,
	}})
}

func (h *Hub) handleUnsubscribe(c *Client) {
	h.mu.Lock()
	h.dropSubscriptionLocked(c)
	h.mu.Unlock()
}

// handleNewMessage stores the message and echoes the stored row to every
// subscriber of the pair, sender included. The echo is the only confirmation
// the sender gets.
func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	text := strings.TrimSpace(msg.Message)
	if msg.ContactID == "" || text == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "contact_id and message required"})
		return
	}
	if len([]rune(text)) > model.MaxMessageLen {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message too long"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Same pair check as the REST send path: the contact must exist and hold
	// the counterpart role, otherwise a sender could forge rows for an
	// arbitrary pair.
	contact, err := h.userRepo.GetByID(ctx, msg.ContactID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "contact not found"})
		return
	}
	if contact.Role != c.role.Counterpart() {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "contact role mismatch"})
		return
	}

	key := model.PairFor(c.userID, c.role, msg.ContactID)
	m := &model.ChatMessage{
		ID:             uuid.New().String(),
		UserID:         key.UserID,
		ProfessionalID: key.ProfessionalID,
		Message:        text,
		Sender:         c.role,
		MessageType:    model.MessageTypeText,
	}
	if err := h.msgRepo.Insert(ctx, m); err != nil {
		logger.Errorf("ws save message user=%s professional=%s: %v", key.UserID, key.ProfessionalID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to save message"})
		return
	}

	h.BroadcastToConversation(key, OutgoingMessage{Type: EventMessageInsert, Payload: m})

	// Push the counterpart when they have no open connection.
	if h.pushClient != nil && !h.IsOnline(msg.ContactID) {
		title := "Pesan baru"
		if sender, err := h.userRepo.GetByID(ctx, c.userID); err == nil && sender.FullName != "" {
			title = sender.FullName
		}
		body := text
		if r := []rune(body); len(r) > pushPreviewLen {
			body = string(r[:pushPreviewLen]) + "…"
		}
		data := map[string]string{"contact_id": c.userID, "message_id": m.ID}
		go h.pushClient.Notify(context.Background(), msg.ContactID, title, body, data)
	}
}

// handleMarkRead stamps read_at on the counterpart's unread messages in the
// pair and broadcasts one update per affected row.
func (h *Hub) handleMarkRead(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleMarkRead", time.Now())()
	if msg.ContactID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := model.PairFor(c.userID, c.role, msg.ContactID)
	ids, readAt, err := h.msgRepo.MarkRead(ctx, key, c.role)
	if err != nil {
		logger.Errorf("ws mark read user=%s professional=%s: %v", key.UserID, key.ProfessionalID, err)
		return
	}
	for _, id := range ids {
		h.BroadcastToConversation(key, OutgoingMessage{Type: EventMessageUpdate, Payload: MessageUpdatePayload{
			MessageID: id,
			ReadAt:    readAt,
		}})
	}
}

// BroadcastToConversation sends an event to every connection subscribed to
// the pair.
func (h *Hub) BroadcastToConversation(key model.ConversationKey, msg OutgoingMessage) {
	h.mu.RLock()
	set, ok := h.subs[key]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

// broadcastPresence notifies every other connected client about a presence
// change.
func (h *Hub) broadcastPresence(evType EventType, hb model.Heartbeat, exceptUserID string) {
	out := OutgoingMessage{Type: evType, Payload: PresencePayload{
		UserID:   hb.UserID,
		Role:     hb.Role,
		OnlineAt: hb.OnlineAt,
	}}

	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for uid, clients := range h.clients {
		if uid == exceptUserID {
			continue
		}
		for c := range clients {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, out)
	}
}

// PresenceSnapshot returns the current in-memory presence set, one entry per
// online user regardless of connection count.
func (h *Hub) PresenceSnapshot() []PresencePayload {
	h.mu.RLock()
	defer h.mu.RUnlock()
	online := make([]PresencePayload, 0, len(h.presence))
	for _, hb := range h.presence {
		online = append(online, PresencePayload{UserID: hb.UserID, Role: hb.Role, OnlineAt: hb.OnlineAt})
	}
	return online
}

// IsOnline reports whether the user has at least one open connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.presence[userID]
	return ok
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
