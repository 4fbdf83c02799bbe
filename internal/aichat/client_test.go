package aichat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReplySyncFieldPriority(t *testing.T) {
	// bot_response wins over every other field.
	r := decodeReply([]byte(`{"response":"second","bot_response":"first"}`))
	assert.Equal(t, ReplySync, r.Kind)
	assert.Equal(t, "first", r.Text)

	// Later fields are used when the earlier ones are absent or empty.
	r = decodeReply([]byte(`{"bot_response":"","text":"fallback"}`))
	assert.Equal(t, ReplySync, r.Kind)
	assert.Equal(t, "fallback", r.Text)

	r = decodeReply([]byte(`{"message":"last resort"}`))
	assert.Equal(t, ReplySync, r.Kind)
	assert.Equal(t, "last resort", r.Text)
}

func TestDecodeReplyAsyncSentinel(t *testing.T) {
	// Plain-text acknowledgement, not JSON.
	r := decodeReply([]byte("Workflow was started"))
	assert.Equal(t, ReplyAsync, r.Kind)

	// Sentinel wrapped in whitespace.
	r = decodeReply([]byte("  Workflow was started\n"))
	assert.Equal(t, ReplyAsync, r.Kind)

	// Sentinel as the message field value.
	r = decodeReply([]byte(`{"message":"Workflow was started"}`))
	assert.Equal(t, ReplyAsync, r.Kind)
}

func TestDecodeReplySentinelMatchIsExact(t *testing.T) {
	// A real reply that merely mentions the acknowledgement phrase must not be
	// routed into the polling path.
	r := decodeReply([]byte(`{"bot_response":"Workflow was started for you, here is step one."}`))
	assert.Equal(t, ReplySync, r.Kind)
	assert.Contains(t, r.Text, "step one")

	// Plain text with extra words around the phrase is not the acknowledgement.
	r = decodeReply([]byte("note: Workflow was started earlier"))
	assert.Equal(t, ReplyUnrecognized, r.Kind)
}

func TestDecodeReplyNextStep(t *testing.T) {
	r := decodeReply([]byte(`{"bot_response":"ok","next_step":3}`))
	require.Equal(t, ReplySync, r.Kind)
	assert.True(t, r.HasStep)
	assert.Equal(t, 3, r.NextStep)

	// "step" is accepted when "next_step" is absent.
	r = decodeReply([]byte(`{"reply":"ok","step":2}`))
	require.Equal(t, ReplySync, r.Kind)
	assert.True(t, r.HasStep)
	assert.Equal(t, 2, r.NextStep)

	// No step field at all.
	r = decodeReply([]byte(`{"reply":"ok"}`))
	require.Equal(t, ReplySync, r.Kind)
	assert.False(t, r.HasStep)
}

func TestDecodeReplyUnrecognized(t *testing.T) {
	// JSON with no known reply field carries the key list for diagnostics.
	r := decodeReply([]byte(`{"status":"done","code":7}`))
	assert.Equal(t, ReplyUnrecognized, r.Kind)
	assert.Contains(t, r.Diagnostic, "keys:")

	// Non-JSON garbage carries a snippet.
	r = decodeReply([]byte("<html>oops</html>"))
	assert.Equal(t, ReplyUnrecognized, r.Kind)
	assert.Contains(t, r.Diagnostic, "oops")

	// Long bodies are truncated to a bounded snippet.
	r = decodeReply([]byte(strings.Repeat("x", 500)))
	assert.Equal(t, ReplyUnrecognized, r.Kind)
	assert.Len(t, []rune(r.Diagnostic), 120)
}

func TestClientSend(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`{"bot_response":"halo"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	reply, err := c.Send(context.Background(), "u1", "apa kabar")
	require.NoError(t, err)
	assert.Equal(t, ReplySync, reply.Kind)
	assert.Equal(t, "halo", reply.Text)
	assert.Contains(t, gotBody, `"user_id":"u1"`)
	assert.Contains(t, gotBody, `"message":"apa kabar"`)
}

func TestClientSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Send(context.Background(), "u1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClientSendTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := c.Send(context.Background(), "u1", "hi")
	assert.Error(t, err)
}
