package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/relay"
)

const (
	eventMessageCreated            = "message_created"
	eventConversationStatusChanged = "conversation_status_changed"
	messageTypeOutgoing            = "outgoing"
	webhookTokenHeader             = "X-Webhook-Token"
)

// StatusResponse is the body of every webhook reply.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WebhookPayload is the subset of a Chatwoot webhook event the relay reads.
type WebhookPayload struct {
	Event        string                    `json:"event"`
	MessageType  string                    `json:"message_type"`
	Private      bool                      `json:"private"`
	Content      string                    `json:"content"`
	Status       string                    `json:"status"`
	Conversation *WebhookConversation      `json:"conversation" validate:"required"`
	Attachments  []channel.ReplyAttachment `json:"attachments"`
}

// WebhookConversation identifies the conversation an event belongs to.
type WebhookConversation struct {
	ID int64 `json:"id" validate:"required"`
}

// relayable reports whether the event is a public agent message.
func (p WebhookPayload) relayable() bool {
	return p.Event == eventMessageCreated && p.MessageType == messageTypeOutgoing && !p.Private
}

// WebhookHandler receives Chatwoot webhook events and relays public agent
// replies to the user.
type WebhookHandler struct {
	replies  relay.ReplyHandler
	secret   string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. An empty secret disables the
// shared-secret check.
func NewWebhookHandler(log *slog.Logger, replies relay.ReplyHandler, secret string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		replies:  replies,
		secret:   strings.TrimSpace(secret),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Handle)
}

// Handle processes one webhook event.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if !h.authorized(c) {
		h.logger.Warn("webhook rejected, token mismatch", slog.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, StatusResponse{Status: "error", Message: "unauthorized"})
	}

	var payload WebhookPayload
	if err := c.Bind(&payload); err != nil {
		h.logger.Error("decode webhook failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, StatusResponse{Status: "error", Message: bindMessage(err)})
	}

	switch {
	case payload.relayable():
		if err := h.validate.Struct(payload); err != nil {
			h.logger.Error("invalid agent message event", slog.Any("error", err))
			return c.JSON(http.StatusInternalServerError, StatusResponse{Status: "error", Message: "conversation id is required"})
		}
		reply := channel.AgentReply{
			ConversationID: payload.Conversation.ID,
			Text:           payload.Content,
			Attachments:    payload.Attachments,
		}
		if err := h.replies.Handle(c.Request().Context(), reply); err != nil {
			h.logger.Error("relay agent reply failed", slog.Int64("conversation_id", reply.ConversationID), slog.Any("error", err))
			return c.JSON(http.StatusInternalServerError, StatusResponse{Status: "error", Message: err.Error()})
		}
	case payload.Event == eventConversationStatusChanged:
		h.logger.Info("conversation status changed", slog.String("status", payload.Status), slog.Int64("conversation_id", conversationID(payload)))
	default:
		h.logger.Debug("webhook skipped",
			slog.String("event", payload.Event),
			slog.String("message_type", payload.MessageType),
			slog.Bool("private", payload.Private),
		)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

func (h *WebhookHandler) authorized(c echo.Context) bool {
	if h.secret == "" {
		return true
	}
	token := c.QueryParam("token")
	if token == "" {
		token = c.Request().Header.Get(webhookTokenHeader)
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func conversationID(p WebhookPayload) int64 {
	if p.Conversation == nil {
		return 0
	}
	return p.Conversation.ID
}

func bindMessage(err error) string {
	if he, ok := err.(*echo.HTTPError); ok {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
