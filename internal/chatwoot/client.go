// Package chatwoot is the helpdesk gateway: it creates contacts and
// conversations in a Chatwoot API inbox and posts customer messages and
// attachments into them.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/logger"
	"github.com/memohai/deskrelay/internal/media"
	"github.com/memohai/deskrelay/internal/relayerr"
	"github.com/memohai/deskrelay/internal/session"
)

const (
	headerAccessToken   = "api_access_token"
	maxResponseBytes    = 1 << 20
	maxErrorBodyLogSize = 512
	defaultTimeout      = 15 * time.Second
)

// Config holds the Chatwoot endpoint and credentials.
type Config struct {
	BaseURL         string
	APIAccessToken  string
	InboxIdentifier string
	// AccountID enables the account-scoped upload endpoint. Empty disables uploads.
	AccountID string
	Timeout   time.Duration
}

// AttachmentSource downloads attachment bytes from their source URL.
type AttachmentSource interface {
	Open(ctx context.Context, rawURL string) (media.Payload, error)
}

// RequestObserver receives one observation per Chatwoot API call.
type RequestObserver interface {
	ObserveHelpdeskRequest(op string, status int, elapsed time.Duration)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAttachmentSource sets the downloader used before uploads.
func WithAttachmentSource(source AttachmentSource) Option {
	return func(c *Client) { c.source = source }
}

// WithObserver registers a request observer, typically metrics.
func WithObserver(observer RequestObserver) Option {
	return func(c *Client) { c.observer = observer }
}

// Client talks to the Chatwoot public inbox API and, when an account id is
// configured, the account-scoped messages API.
type Client struct {
	cfg      Config
	http     *http.Client
	source   AttachmentSource
	observer RequestObserver
	logger   *slog.Logger
}

// NewClient creates a Client. Every request is bounded by cfg.Timeout.
func NewClient(log *slog.Logger, cfg Config, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log.With(slog.String("component", "chatwoot")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.source == nil {
		c.source = media.NewFetcher(nil, cfg.Timeout, 0)
	}
	return c
}

// CanUpload reports whether the account-scoped credential is configured.
func (c *Client) CanUpload() bool {
	return strings.TrimSpace(c.cfg.AccountID) != ""
}

// CreateContactAndConversation creates (or fetches) the inbox contact for a
// Discord user and opens a new conversation for it. The returned session is
// complete; on any failure no session is returned.
func (c *Client) CreateContactAndConversation(ctx context.Context, userID, username string) (session.Session, error) {
	contactURL := c.publicURL("contacts")
	body, err := c.doJSON(ctx, "create contact", http.MethodPost, contactURL, contactRequest{
		Name:       username,
		Identifier: userID,
		Email:      userID + "@discord.user.placeholder",
		AdditionalAttributes: contactAttributes{
			DiscordID:       userID,
			DiscordUsername: username,
			Platform:        platformDiscord,
		},
	})
	if err != nil {
		c.logger.Error("contact creation failed",
			slog.String("user_id", userID),
			slog.String("username", username),
			slog.Any("error", err),
		)
		return session.Session{}, err
	}

	var contact contactResponse
	if err := json.Unmarshal(body, &contact); err != nil {
		return session.Session{}, relayerr.Protocol("create contact", err.Error())
	}
	if strings.TrimSpace(contact.SourceID) == "" || contact.ID == nil {
		c.logger.Error("contact response missing identifiers", slog.String("user_id", userID))
		return session.Session{}, relayerr.Protocol("create contact", "source_id or id missing from contact response")
	}

	conversationURL := c.publicURL("contacts", contact.SourceID, "conversations")
	body, err = c.doJSON(ctx, "create conversation", http.MethodPost, conversationURL, nil)
	if err != nil {
		c.logger.Error("conversation creation failed",
			slog.String("user_id", userID),
			slog.String("source_id", contact.SourceID),
			slog.Any("error", err),
		)
		return session.Session{}, err
	}
	conversationID, shape, err := decodeID(body)
	if err != nil {
		c.logger.Error("conversation response missing id", slog.String("user_id", userID), slog.Any("error", err))
		return session.Session{}, relayerr.Protocol("create conversation", err.Error())
	}

	c.logger.Debug("conversation created",
		slog.String("user_id", userID),
		slog.Int64("contact_id", *contact.ID),
		slog.Int64("conversation_id", conversationID),
		slog.String("id_shape", string(shape)),
	)
	return session.Session{
		UserID:          userID,
		Username:        username,
		ContactSourceID: contact.SourceID,
		ContactID:       *contact.ID,
		ConversationID:  conversationID,
		PubsubToken:     contact.PubsubToken,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// SendText posts text into the conversation as an incoming (customer) message
// and returns the created message id, 0 when the response omits it.
func (c *Client) SendText(ctx context.Context, contactSourceID string, conversationID int64, text string) (int64, error) {
	messageURL := c.publicURL("contacts", contactSourceID, "conversations", strconv.FormatInt(conversationID, 10), "messages")
	body, err := c.doJSON(ctx, "send text", http.MethodPost, messageURL, messageRequest{
		Content:     text,
		MessageType: messageTypeIncoming,
	})
	if err != nil {
		c.logger.Error("send text failed", slog.Int64("conversation_id", conversationID), slog.Any("error", err))
		return 0, err
	}
	messageID, _, err := decodeID(body)
	if err != nil {
		c.logger.Debug("message id not found in response", slog.Int64("conversation_id", conversationID))
		return 0, nil
	}
	c.logger.Debug("text sent",
		slog.Int64("conversation_id", conversationID),
		slog.Int64("message_id", messageID),
		slog.String("text", logger.Truncate(text, 100)),
	)
	return messageID, nil
}

// UploadAttachment downloads the attachment from its URL and streams it to the
// account-scoped messages endpoint as an incoming message.
func (c *Client) UploadAttachment(ctx context.Context, sess session.Session, att channel.Attachment) (UploadResult, error) {
	const op = "upload attachment"
	if !c.CanUpload() {
		return UploadResult{}, relayerr.Configuration(op, "chatwoot account id is not configured")
	}

	payload, err := c.source.Open(ctx, att.Reference())
	if err != nil {
		return UploadResult{}, relayerr.Remote("download attachment", err)
	}

	uploadURL := c.cfg.BaseURL + "/api/v1/accounts/" + url.PathEscape(c.cfg.AccountID) +
		"/conversations/" + strconv.FormatInt(sess.ConversationID, 10) + "/messages"

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		defer payload.Reader.Close()
		err := writeUploadForm(form, att, payload)
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return UploadResult{}, relayerr.Remote(op, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set(headerAccessToken, c.cfg.APIAccessToken)

	body, err := c.do(op, req)
	if err != nil {
		c.logger.Error("attachment upload failed",
			slog.String("name", att.Name),
			slog.Int64("conversation_id", sess.ConversationID),
			slog.Any("error", err),
		)
		return UploadResult{}, err
	}

	result := UploadResult{}
	var decoded uploadResponse
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.ID != nil {
			result.MessageID = *decoded.ID
		}
		result.Attachments = len(decoded.Attachments)
	}
	c.logger.Info("attachment uploaded",
		slog.String("name", att.Name),
		slog.Int64("conversation_id", sess.ConversationID),
		slog.Int64("message_id", result.MessageID),
	)
	return result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(form *multipart.Writer, att channel.Attachment, payload media.Payload) error {
	name := strings.TrimSpace(att.Name)
	if name == "" {
		name = payload.Name
	}
	if name == "" {
		name = "attachment"
	}
	contentType := strings.TrimSpace(att.Mime)
	if contentType == "" {
		contentType = strings.TrimSpace(payload.Mime)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments[]"; filename="%s"`, quoteEscaper.Replace(name)))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, payload.Reader); err != nil {
		return fmt.Errorf("copy attachment: %w", err)
	}
	return form.WriteField("message_type", messageTypeIncoming)
}

func (c *Client) publicURL(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.cfg.BaseURL)
	b.WriteString("/public/api/v1/inboxes/")
	b.WriteString(url.PathEscape(c.cfg.InboxIdentifier))
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

func (c *Client) doJSON(ctx context.Context, op, method, target string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, relayerr.Remote(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAccessToken, c.cfg.APIAccessToken)
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, relayerr.Remote(op, err)
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := logger.Truncate(string(data), maxErrorBodyLogSize)
		c.logger.Warn("chatwoot request rejected",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("body", body),
		)
		return nil, relayerr.RemoteStatus(op, resp.StatusCode, body)
	}
	if readErr != nil {
		return nil, relayerr.Remote(op, readErr)
	}
	return data, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveHelpdeskRequest(op, status, time.Since(start))
	}
}
