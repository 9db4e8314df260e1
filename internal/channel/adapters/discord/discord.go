package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/logger"
	"github.com/memohai/deskrelay/internal/media"
)

// Type is the channel type served by this adapter.
const Type channel.ChannelType = "discord"

const (
	inboundDedupTTL = time.Minute
	messageLimit    = 2000
	filesPerMessage = 10
)

// discordSession is the subset of *discordgo.Session the adapter uses.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

// FileSource downloads files referenced by URL in outgoing payloads.
type FileSource interface {
	Open(ctx context.Context, rawURL string) (media.Payload, error)
}

// Config configures the bot connection and presence.
type Config struct {
	BotToken      string
	StatusMessage string
	// StatusType is one of Playing, Streaming, Listening, Watching, Competing, Custom.
	StatusType string
}

// DiscordAdapter receives direct messages from Discord and delivers payloads
// to users' private channels.
type DiscordAdapter struct {
	logger  *slog.Logger
	cfg     Config
	session discordSession
	files   FileSource

	mu             sync.Mutex
	handlerRemover []func()
	seenMessages   map[string]time.Time
}

// NewDiscordAdapter creates an adapter backed by a real gateway session.
func NewDiscordAdapter(log *slog.Logger, cfg Config, files FileSource) (*DiscordAdapter, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	return newAdapter(log, cfg, session, files), nil
}

func newAdapter(log *slog.Logger, cfg Config, session discordSession, files FileSource) *DiscordAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &DiscordAdapter{
		logger:       log.With(slog.String("adapter", "discord")),
		cfg:          cfg,
		session:      session,
		files:        files,
		seenMessages: make(map[string]time.Time),
	}
}

func (a *DiscordAdapter) Type() channel.ChannelType {
	return Type
}

// Connect registers the gateway handlers and opens the websocket connection.
// handler must not block; it is invoked on the gateway event goroutine.
func (a *DiscordAdapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	a.logger.Info("start")

	removeReady := a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			a.logger.Info("connected", slog.String("bot_user", r.User.Username), slog.String("bot_id", r.User.ID))
		}
		a.applyPresence()
	})
	removeMessage := a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessageCreate(ctx, handler, m)
	})
	a.swapHandlerRemovers(removeReady, removeMessage)

	if err := a.session.Open(); err != nil {
		a.swapHandlerRemovers()
		return nil, fmt.Errorf("discord open connection: %w", err)
	}

	stop := func(stopCtx context.Context) error {
		a.logger.Info("stop")
		a.swapHandlerRemovers()
		return a.session.Close()
	}
	return channel.NewConnection(Type, stop), nil
}

func (a *DiscordAdapter) handleMessageCreate(ctx context.Context, handler channel.InboundHandler, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID != "" {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if a.isDuplicateInbound(m.ID) {
		return
	}

	text := m.Content
	attachments := a.collectAttachments(m.Message)
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		a.logger.Debug("empty message ignored", slog.String("user_id", m.Author.ID))
		return
	}

	msg := channel.DirectMessage{
		ID:        m.ID,
		Channel:   Type,
		ChannelID: m.ChannelID,
		Sender: channel.Identity{
			SubjectID:   m.Author.ID,
			DisplayName: m.Author.Username,
		},
		Text:        text,
		Attachments: attachments,
		ReceivedAt:  time.Now().UTC(),
	}

	a.logger.Info("inbound received",
		slog.String("user_id", m.Author.ID),
		slog.String("username", m.Author.Username),
		slog.String("text", logger.Truncate(text, 100)),
		slog.Int("attachments", len(attachments)),
	)

	if err := handler(ctx, msg); err != nil {
		a.logger.Error("handle inbound failed", slog.String("message_id", m.ID), slog.Any("error", err))
	}
}

// SendToUser delivers payload to the user's DM channel. Text longer than the
// Discord message limit is split across messages; files are downloaded and
// attached to the last message. A file that cannot be downloaded is delivered
// as its link instead.
func (a *DiscordAdapter) SendToUser(ctx context.Context, userID string, payload channel.Payload) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" || payload.IsEmpty() {
		return false
	}
	user, err := a.session.User(userID)
	if err != nil || user == nil {
		a.logger.Warn("could not fetch user, message not relayed", slog.String("user_id", userID), slog.Any("error", err))
		return false
	}
	dm, err := a.session.UserChannelCreate(user.ID)
	if err != nil {
		a.logSendError(userID, err)
		return false
	}

	files, unavailable := a.openFiles(ctx, payload.Files)
	defer closeFiles(files)

	text := payload.Text
	for _, link := range unavailable {
		if strings.TrimSpace(text) == "" {
			text = link
			continue
		}
		text = strings.TrimRight(text, "\n") + "\n" + link
	}
	for _, msg := range buildMessages(text, files) {
		if _, err := a.session.ChannelMessageSendComplex(dm.ID, msg); err != nil {
			a.logSendError(userID, err)
			return false
		}
	}
	a.logger.Info("reply sent", slog.String("user_id", userID), slog.String("username", user.Username), slog.Int("files", len(files)))
	return true
}

// Reply answers msg in its DM channel with text truncated to the message limit.
func (a *DiscordAdapter) Reply(ctx context.Context, msg channel.DirectMessage, text string) error {
	channelID := strings.TrimSpace(msg.ChannelID)
	if channelID == "" {
		return fmt.Errorf("discord reply target is required")
	}
	var ref *discordgo.MessageReference
	if msg.ID != "" {
		ref = &discordgo.MessageReference{ChannelID: channelID, MessageID: msg.ID}
	}
	_, err := a.session.ChannelMessageSendReply(channelID, truncateDiscordText(text), ref)
	return err
}

func (a *DiscordAdapter) applyPresence() {
	activity := presenceActivity(a.cfg.StatusType, a.cfg.StatusMessage)
	if activity == nil {
		return
	}
	err := a.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{activity},
		Status:     string(discordgo.StatusOnline),
	})
	if err != nil {
		a.logger.Warn("set presence failed", slog.Any("error", err))
		return
	}
	a.logger.Info("presence set", slog.String("type", a.cfg.StatusType), slog.String("message", a.cfg.StatusMessage))
}

func presenceActivity(statusType, message string) *discordgo.Activity {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	activity := &discordgo.Activity{Name: message, Type: discordgo.ActivityTypeGame}
	switch strings.ToLower(strings.TrimSpace(statusType)) {
	case "streaming":
		activity.Type = discordgo.ActivityTypeStreaming
	case "listening":
		activity.Type = discordgo.ActivityTypeListening
	case "watching":
		activity.Type = discordgo.ActivityTypeWatching
	case "competing":
		activity.Type = discordgo.ActivityTypeCompeting
	case "custom":
		activity.Type = discordgo.ActivityTypeCustom
		activity.Name = "Custom Status"
		activity.State = message
	}
	return activity
}

func (a *DiscordAdapter) openFiles(ctx context.Context, urls []string) ([]*discordgo.File, []string) {
	var files []*discordgo.File
	var unavailable []string
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if a.files == nil {
			unavailable = append(unavailable, raw)
			continue
		}
		payload, err := a.files.Open(ctx, raw)
		if err != nil {
			a.logger.Warn("attachment download failed, sending link", slog.String("url", raw), slog.Any("error", err))
			unavailable = append(unavailable, raw)
			continue
		}
		name := payload.Name
		if name == "" || name == "." || name == "/" {
			name = "attachment"
		}
		files = append(files, &discordgo.File{Name: name, ContentType: payload.Mime, Reader: payload.Reader})
	}
	return files, unavailable
}

func closeFiles(files []*discordgo.File) {
	for _, f := range files {
		if closer, ok := f.Reader.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}

func buildMessages(text string, files []*discordgo.File) []*discordgo.MessageSend {
	var out []*discordgo.MessageSend
	for _, chunk := range channel.ChunkText(text, messageLimit) {
		out = append(out, &discordgo.MessageSend{Content: chunk})
	}
	for start := 0; start < len(files); start += filesPerMessage {
		end := min(start+filesPerMessage, len(files))
		if start == 0 && len(out) > 0 {
			out[len(out)-1].Files = files[start:end]
			continue
		}
		out = append(out, &discordgo.MessageSend{Files: files[start:end]})
	}
	return out
}

func (a *DiscordAdapter) logSendError(userID string, err error) {
	if isDMBlocked(err) {
		a.logger.Warn("DM blocked, user may have disabled direct messages or blocked the bot", slog.String("user_id", userID))
		return
	}
	a.logger.Error("send to user failed", slog.String("user_id", userID), slog.Any("error", err))
}

func isDMBlocked(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	return restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser
}

func truncateDiscordText(text string) string {
	runes := []rune(text)
	if len(runes) > messageLimit {
		return string(runes[:messageLimit-3]) + "..."
	}
	return text
}

func (a *DiscordAdapter) collectAttachments(msg *discordgo.Message) []channel.Attachment {
	if msg == nil || len(msg.Attachments) == 0 {
		return nil
	}

	attachments := make([]channel.Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		if att == nil {
			continue
		}
		attachment := channel.Attachment{
			Type:           channel.AttachmentType(media.Classify(att.ContentType)),
			URL:            att.URL,
			PlatformKey:    att.ID,
			SourcePlatform: Type.String(),
			Name:           att.Filename,
			Size:           int64(att.Size),
			Mime:           att.ContentType,
		}
		if attachment.Type == channel.AttachmentImage {
			attachment.Width = att.Width
			attachment.Height = att.Height
		}
		attachments = append(attachments, attachment)
	}
	return attachments
}

func (a *DiscordAdapter) isDuplicateInbound(messageID string) bool {
	if strings.TrimSpace(messageID) == "" {
		return false
	}

	now := time.Now().UTC()
	expireBefore := now.Add(-inboundDedupTTL)

	a.mu.Lock()
	defer a.mu.Unlock()

	for key, seenAt := range a.seenMessages {
		if seenAt.Before(expireBefore) {
			delete(a.seenMessages, key)
		}
	}

	if _, ok := a.seenMessages[messageID]; ok {
		return true
	}
	a.seenMessages[messageID] = now
	return false
}

func (a *DiscordAdapter) swapHandlerRemovers(removers ...func()) {
	a.mu.Lock()
	old := a.handlerRemover
	a.handlerRemover = removers
	a.mu.Unlock()
	for _, remove := range old {
		if remove != nil {
			remove()
		}
	}
}
