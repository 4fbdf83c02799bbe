package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
)

type fakeStore struct {
	inserted []*model.ChatMessage
	insertEr error
	readIDs  []string
	readAt   time.Time
}

func (f *fakeStore) Insert(ctx context.Context, m *model.ChatMessage) error {
	if f.insertEr != nil {
		return f.insertEr
	}
	m.CreatedAt = time.Now().UTC()
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeStore) MarkRead(ctx context.Context, key model.ConversationKey, viewerRole model.Role) ([]string, time.Time, error) {
	return f.readIDs, f.readAt, nil
}

type fakeDirectory struct {
	users map[string]*model.User
}

func (f *fakeDirectory) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type fakeNotifier struct {
	calls chan string
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	f.calls <- userID
}

// dialer spins a loopback WebSocket server so test clients carry a real
// connection. The hub never reads from these in tests; they just make Close
// safe.
type dialer struct {
	srv *httptest.Server
}

func newDialer(t *testing.T) *dialer {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return &dialer{srv: srv}
}

func (d *dialer) client(t *testing.T, hub *Hub, userID string, role model.Role) *Client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(d.srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	c := NewClient(hub, conn, userID, role)
	t.Cleanup(c.Close)
	return c
}

func recv(t *testing.T, c *Client) OutgoingMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return OutgoingMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %s", msg.Type)
	default:
	}
}

func directoryWith(users ...*model.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]*model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func TestHubPresenceJoinAndLeave(t *testing.T) {
	d := newDialer(t)
	hub := NewHub(&fakeStore{}, directoryWith(), 0, nil)

	c1 := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c1)
	sync := recv(t, c1)
	assert.Equal(t, EventPresenceSync, sync.Type)
	assert.True(t, hub.IsOnline("u1"))

	c2 := d.client(t, hub, "p1", model.RoleProfessional)
	hub.addClient(c2)
	// The newcomer gets the snapshot, the existing client gets the join.
	assert.Equal(t, EventPresenceSync, recv(t, c2).Type)
	join := recv(t, c1)
	require.Equal(t, EventPresenceJoin, join.Type)
	assert.Equal(t, "p1", join.Payload.(PresencePayload).UserID)

	// Second connection of the same user: no duplicate presence entry, no
	// second join broadcast.
	c1b := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c1b)
	assert.Equal(t, EventPresenceSync, recv(t, c1b).Type)
	assertNoMessage(t, c2)
	assert.Len(t, hub.PresenceSnapshot(), 2)

	// Dropping one of two connections keeps the user online.
	hub.removeClient(c1)
	assert.True(t, hub.IsOnline("u1"))
	assertNoMessage(t, c2)

	// Dropping the last one broadcasts the leave.
	hub.removeClient(c1b)
	assert.False(t, hub.IsOnline("u1"))
	leave := recv(t, c2)
	require.Equal(t, EventPresenceLeave, leave.Type)
	assert.Equal(t, "u1", leave.Payload.(PresencePayload).UserID)
}

func TestHubConnectionLimit(t *testing.T) {
	d := newDialer(t)
	hub := NewHub(&fakeStore{}, directoryWith(), 1, nil)

	c1 := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c1)
	recv(t, c1)

	c2 := d.client(t, hub, "u2", model.RoleUser)
	hub.addClient(c2)
	assert.False(t, hub.IsOnline("u2"))
}

func TestHubSubscribeReplacesPrevious(t *testing.T) {
	d := newDialer(t)
	dir := directoryWith(
		&model.User{ID: "p1", Role: model.RoleProfessional},
		&model.User{ID: "p2", Role: model.RoleProfessional},
	)
	hub := NewHub(&fakeStore{}, dir, 0, nil)
	ctx := context.Background()

	c := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c)
	recv(t, c)

	hub.handleSubscribe(ctx, c, IncomingMessage{Type: EventSubscribe, ContactID: "p1"})
	first := recv(t, c)
	require.Equal(t, EventSubscribed, first.Type)
	assert.Equal(t, "p1", first.Payload.(SubscribedPayload).ProfessionalID)

	hub.handleSubscribe(ctx, c, IncomingMessage{Type: EventSubscribe, ContactID: "p2"})
	second := recv(t, c)
	require.Equal(t, EventSubscribed, second.Type)
	assert.Equal(t, "p2", second.Payload.(SubscribedPayload).ProfessionalID)

	// The first pair no longer reaches the connection.
	hub.BroadcastToConversation(model.ConversationKey{UserID: "u1", ProfessionalID: "p1"}, OutgoingMessage{Type: EventMessageInsert})
	assertNoMessage(t, c)
	hub.BroadcastToConversation(model.ConversationKey{UserID: "u1", ProfessionalID: "p2"}, OutgoingMessage{Type: EventMessageInsert})
	assert.Equal(t, EventMessageInsert, recv(t, c).Type)
}

func TestHubSubscribeRejectsBadContact(t *testing.T) {
	d := newDialer(t)
	dir := directoryWith(&model.User{ID: "u2", Role: model.RoleUser})
	hub := NewHub(&fakeStore{}, dir, 0, nil)
	ctx := context.Background()

	c := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c)
	recv(t, c)

	// Unknown contact.
	hub.handleSubscribe(ctx, c, IncomingMessage{Type: EventSubscribe, ContactID: "ghost"})
	assert.Equal(t, EventError, recv(t, c).Type)

	// Same-role contact: users only talk to professionals.
	hub.handleSubscribe(ctx, c, IncomingMessage{Type: EventSubscribe, ContactID: "u2"})
	assert.Equal(t, EventError, recv(t, c).Type)
}

func TestHubNewMessageStoresAndBroadcasts(t *testing.T) {
	d := newDialer(t)
	store := &fakeStore{}
	dir := directoryWith(
		&model.User{ID: "u1", FullName: "Budi", Role: model.RoleUser},
		&model.User{ID: "p1", Role: model.RoleProfessional},
	)
	hub := NewHub(store, dir, 0, nil)
	ctx := context.Background()

	user := d.client(t, hub, "u1", model.RoleUser)
	pro := d.client(t, hub, "p1", model.RoleProfessional)
	hub.addClient(user)
	recv(t, user)
	hub.addClient(pro)
	recv(t, pro)
	recv(t, user) // presence_join for p1

	hub.handleSubscribe(ctx, user, IncomingMessage{Type: EventSubscribe, ContactID: "p1"})
	recv(t, user)
	hub.handleSubscribe(ctx, pro, IncomingMessage{Type: EventSubscribe, ContactID: "u1"})
	recv(t, pro)

	hub.handleNewMessage(ctx, user, IncomingMessage{Type: EventNewMessage, ContactID: "p1", Message: "  halo dok  "})

	require.Len(t, store.inserted, 1)
	m := store.inserted[0]
	assert.Equal(t, "halo dok", m.Message)
	assert.Equal(t, "u1", m.UserID)
	assert.Equal(t, "p1", m.ProfessionalID)
	assert.Equal(t, model.RoleUser, m.Sender)
	assert.NotEmpty(t, m.ID)

	// Both sides of the pair receive the echo.
	for _, c := range []*Client{user, pro} {
		got := recv(t, c)
		require.Equal(t, EventMessageInsert, got.Type)
		assert.Equal(t, m, got.Payload)
	}
}

func TestHubNewMessageValidation(t *testing.T) {
	d := newDialer(t)
	store := &fakeStore{}
	hub := NewHub(store, directoryWith(), 0, nil)
	ctx := context.Background()

	c := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c)
	recv(t, c)

	hub.handleNewMessage(ctx, c, IncomingMessage{Type: EventNewMessage, ContactID: "p1", Message: "   "})
	assert.Equal(t, EventError, recv(t, c).Type)

	long := strings.Repeat("a", model.MaxMessageLen+1)
	hub.handleNewMessage(ctx, c, IncomingMessage{Type: EventNewMessage, ContactID: "p1", Message: long})
	assert.Equal(t, EventError, recv(t, c).Type)

	assert.Empty(t, store.inserted)
}

func TestHubNewMessageRejectsBadContact(t *testing.T) {
	d := newDialer(t)
	store := &fakeStore{}
	dir := directoryWith(&model.User{ID: "p2", Role: model.RoleProfessional})
	hub := NewHub(store, dir, 0, nil)
	ctx := context.Background()

	c := d.client(t, hub, "p1", model.RoleProfessional)
	hub.addClient(c)
	recv(t, c)

	// Unknown contact.
	hub.handleNewMessage(ctx, c, IncomingMessage{Type: EventNewMessage, ContactID: "ghost", Message: "halo"})
	assert.Equal(t, EventError, recv(t, c).Type)

	// Professional to professional: not a valid pair.
	hub.handleNewMessage(ctx, c, IncomingMessage{Type: EventNewMessage, ContactID: "p2", Message: "halo"})
	assert.Equal(t, EventError, recv(t, c).Type)

	assert.Empty(t, store.inserted)
}

func TestHubNewMessageStoreFailure(t *testing.T) {
	d := newDialer(t)
	store := &fakeStore{insertEr: errors.New("db down")}
	hub := NewHub(store, directoryWith(&model.User{ID: "p1", Role: model.RoleProfessional}), 0, nil)

	c := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c)
	recv(t, c)

	hub.handleNewMessage(context.Background(), c, IncomingMessage{Type: EventNewMessage, ContactID: "p1", Message: "halo"})
	assert.Equal(t, EventError, recv(t, c).Type)
}

func TestHubNewMessagePushesOfflineCounterpart(t *testing.T) {
	d := newDialer(t)
	store := &fakeStore{}
	dir := directoryWith(
		&model.User{ID: "u1", FullName: "Budi", Role: model.RoleUser},
		&model.User{ID: "p1", Role: model.RoleProfessional},
	)
	notifier := &fakeNotifier{calls: make(chan string, 1)}
	hub := NewHub(store, dir, 0, notifier)
	ctx := context.Background()

	user := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(user)
	recv(t, user)

	// p1 has no connection: push fires.
	hub.handleNewMessage(ctx, user, IncomingMessage{Type: EventNewMessage, ContactID: "p1", Message: "halo"})
	select {
	case target := <-notifier.calls:
		assert.Equal(t, "p1", target)
	case <-time.After(time.Second):
		t.Fatal("expected push notification")
	}

	// p1 connects: no push for the next message.
	pro := d.client(t, hub, "p1", model.RoleProfessional)
	hub.addClient(pro)
	recv(t, pro)
	recv(t, user)

	hub.handleNewMessage(ctx, user, IncomingMessage{Type: EventNewMessage, ContactID: "p1", Message: "masih di sana?"})
	select {
	case <-notifier.calls:
		t.Fatal("unexpected push for online counterpart")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubMarkReadBroadcastsPerMessage(t *testing.T) {
	d := newDialer(t)
	readAt := time.Now().UTC()
	store := &fakeStore{readIDs: []string{"m1", "m2"}, readAt: readAt}
	dir := directoryWith(&model.User{ID: "u1", Role: model.RoleUser})
	hub := NewHub(store, dir, 0, nil)
	ctx := context.Background()

	pro := d.client(t, hub, "p1", model.RoleProfessional)
	hub.addClient(pro)
	recv(t, pro)
	hub.handleSubscribe(ctx, pro, IncomingMessage{Type: EventSubscribe, ContactID: "u1"})
	recv(t, pro)

	hub.handleMarkRead(ctx, pro, IncomingMessage{Type: EventMarkRead, ContactID: "u1"})

	for _, want := range []string{"m1", "m2"} {
		got := recv(t, pro)
		require.Equal(t, EventMessageUpdate, got.Type)
		payload := got.Payload.(MessageUpdatePayload)
		assert.Equal(t, want, payload.MessageID)
		assert.Equal(t, readAt, payload.ReadAt)
	}
}

func TestHubHandleMessageUnknownType(t *testing.T) {
	d := newDialer(t)
	hub := NewHub(&fakeStore{}, directoryWith(), 0, nil)

	c := d.client(t, hub, "u1", model.RoleUser)
	hub.addClient(c)
	recv(t, c)

	hub.HandleMessage(context.Background(), c, IncomingMessage{Type: "dance"})
	assert.Equal(t, EventError, recv(t, c).Type)
}
