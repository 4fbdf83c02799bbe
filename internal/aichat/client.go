package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mindcare/internal/logger"
)

// workflowStartedSentinel is the exact acknowledgement body the workflow
// backend returns when it accepted the message but will deliver the reply
// asynchronously through the results table.
const workflowStartedSentinel = "Workflow was started"

// replyFields are the response keys checked in order for a synchronous reply.
// The workflow backend has shipped several shapes over time; first non-empty
// field wins.
var replyFields = []string{"bot_response", "response", "reply", "text", "output", "answer", "result", "message"}

// ReplyKind tags the decoded webhook response.
type ReplyKind int

const (
	// ReplySync carries the bot text directly in the HTTP response.
	ReplySync ReplyKind = iota
	// ReplyAsync means the backend acknowledged the message; the reply
	// arrives later via the results table and has to be polled.
	ReplyAsync
	// ReplyUnrecognized means the response decoded but matched no known
	// shape. Diagnostic carries what was seen.
	ReplyUnrecognized
)

// Reply is the tagged decoding of one webhook response.
type Reply struct {
	Kind       ReplyKind
	Text       string
	NextStep   int
	HasStep    bool
	Diagnostic string
}

// Client posts user messages to the external workflow webhook.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts {user_id, message} to the webhook and decodes the response.
// Transport failures and non-2xx statuses come back as errors; everything
// else is classified into a Reply.
func (c *Client) Send(ctx context.Context, userID, message string) (*Reply, error) {
	defer logger.DeferLogDuration("aichat.Send", time.Now())()

	payload, err := json.Marshal(map[string]string{
		"user_id": userID,
		"message": message,
	})
	if err != nil {
		return nil, fmt.Errorf("aichat.Send marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("aichat.Send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aichat.Send do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("aichat.Send read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("aichat.Send status %d", resp.StatusCode)
	}

	return decodeReply(body), nil
}

// decodeReply classifies a webhook response body. The async acknowledgement
// is matched on the raw body first because the backend sends it as plain
// text, not JSON. Sentinel matching is exact equality after trimming; a
// synchronous reply that merely mentions the sentinel text stays synchronous.
func decodeReply(body []byte) *Reply {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == workflowStartedSentinel {
		return &Reply{Kind: ReplyAsync}
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		// Non-JSON body that is not the sentinel.
		return &Reply{Kind: ReplyUnrecognized, Diagnostic: snippet(trimmed)}
	}

	// The acknowledgement also ships as {"message": "Workflow was started"}.
	if raw, ok := m["message"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) == workflowStartedSentinel {
			return &Reply{Kind: ReplyAsync}
		}
	}

	r := &Reply{Kind: ReplyUnrecognized}
	for _, field := range replyFields {
		raw, ok := m[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			continue
		}
		r.Kind = ReplySync
		r.Text = s
		break
	}
	if r.Kind != ReplySync {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return &Reply{Kind: ReplyUnrecognized, Diagnostic: "keys: " + strings.Join(keys, ",")}
	}

	for _, field := range []string{"next_step", "step"} {
		raw, ok := m[field]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			r.NextStep = n
			r.HasStep = true
			break
		}
	}
	return r
}

func snippet(s string) string {
	if r := []rune(s); len(r) > 120 {
		return string(r[:120])
	}
	return s
}
