package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/deskrelay/internal/channel"
)

type fakeReplyHandler struct {
	mu      sync.Mutex
	err     error
	replies []channel.AgentReply
}

func (f *fakeReplyHandler) Handle(ctx context.Context, reply channel.AgentReply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	return f.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postWebhook(t *testing.T, h *WebhookHandler, target, body string, header http.Header) (*httptest.ResponseRecorder, StatusResponse) {
	t.Helper()
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestWebhookRelaysOutgoingPublicMessage(t *testing.T) {
	t.Parallel()

	replies := &fakeReplyHandler{}
	h := NewWebhookHandler(newTestLogger(), replies, "")

	rec, resp := postWebhook(t, h, "/webhook", `{
		"event": "message_created",
		"message_type": "outgoing",
		"private": false,
		"content": "Hi back",
		"conversation": {"id": 42},
		"attachments": [{"file_url": "https://cw/f.png", "filename": "f.png"}, {"filename": "lost.pdf"}]
	}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp.Status)
	require.Len(t, replies.replies, 1)
	got := replies.replies[0]
	assert.Equal(t, int64(42), got.ConversationID)
	assert.Equal(t, "Hi back", got.Text)
	assert.Equal(t, []channel.ReplyAttachment{
		{FileURL: "https://cw/f.png", Filename: "f.png"},
		{Filename: "lost.pdf"},
	}, got.Attachments)
}

func TestWebhookSkipsOtherEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "private note", body: `{"event":"message_created","message_type":"outgoing","private":true,"content":"note","conversation":{"id":42}}`},
		{name: "incoming message", body: `{"event":"message_created","message_type":"incoming","private":false,"content":"hi","conversation":{"id":42}}`},
		{name: "status change", body: `{"event":"conversation_status_changed","status":"resolved","conversation":{"id":42}}`},
		{name: "unknown event", body: `{"event":"contact_updated"}`},
		{name: "empty object", body: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			replies := &fakeReplyHandler{}
			rec, resp := postWebhook(t, NewWebhookHandler(newTestLogger(), replies, ""), "/webhook", tt.body, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "success", resp.Status)
			assert.Empty(t, replies.replies)
		})
	}
}

func TestWebhookErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		relayErr error
	}{
		{name: "malformed json", body: `{"event":`},
		{name: "missing conversation", body: `{"event":"message_created","message_type":"outgoing","private":false,"content":"hi"}`},
		{name: "zero conversation id", body: `{"event":"message_created","message_type":"outgoing","private":false,"content":"hi","conversation":{"id":0}}`},
		{name: "relay failure", body: `{"event":"message_created","message_type":"outgoing","content":"hi","conversation":{"id":42}}`, relayErr: errors.New("store unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			replies := &fakeReplyHandler{err: tt.relayErr}
			rec, resp := postWebhook(t, NewWebhookHandler(newTestLogger(), replies, ""), "/webhook", tt.body, nil)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWebhookSecret(t *testing.T) {
	t.Parallel()

	body := `{"event":"message_created","message_type":"outgoing","content":"hi","conversation":{"id":42}}`
	tests := []struct {
		name     string
		target   string
		header   http.Header
		wantCode int
	}{
		{name: "missing token", target: "/webhook", wantCode: http.StatusUnauthorized},
		{name: "wrong token", target: "/webhook?token=nope", wantCode: http.StatusUnauthorized},
		{name: "query token", target: "/webhook?token=s3cret", wantCode: http.StatusOK},
		{name: "header token", target: "/webhook", header: http.Header{"X-Webhook-Token": {"s3cret"}}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			replies := &fakeReplyHandler{}
			rec, _ := postWebhook(t, NewWebhookHandler(newTestLogger(), replies, "s3cret"), tt.target, body, tt.header)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Len(t, replies.replies, 1)
			} else {
				assert.Empty(t, replies.replies)
			}
		})
	}
}
