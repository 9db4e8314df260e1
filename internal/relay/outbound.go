package relay

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/logger"
	"github.com/memohai/deskrelay/internal/session"
)

// Outbound relays agent replies back to the user who owns the conversation.
type Outbound struct {
	store    *session.Store
	sender   channel.DirectSender
	recorder Recorder
	logger   *slog.Logger
}

// NewOutbound creates an Outbound relay. recorder may be nil.
func NewOutbound(log *slog.Logger, store *session.Store, sender channel.DirectSender, recorder Recorder) *Outbound {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Outbound{
		store:    store,
		sender:   sender,
		recorder: recorder,
		logger:   log.With(slog.String("component", "outbound_relay")),
	}
}

// Handle delivers reply to the mapped user. Unmapped conversations, empty
// replies and delivery failures are logged and dropped.
func (o *Outbound) Handle(ctx context.Context, reply channel.AgentReply) error {
	log := o.logger.With(
		slog.String("trace_id", uuid.NewString()),
		slog.Int64("conversation_id", reply.ConversationID),
	)
	userID, ok := o.store.FindByConversationID(reply.ConversationID)
	if !ok {
		log.Warn("no user mapped to conversation, reply not relayed")
		o.recorder.OutboundProcessed(resultNoSession)
		return nil
	}
	log = log.With(slog.String("user_id", userID))

	payload := BuildPayload(reply)
	for _, att := range reply.Attachments {
		if att.URL() == "" {
			log.Warn("attachment missing usable url", slog.String("filename", att.Filename))
		}
	}
	if payload.IsEmpty() {
		log.Info("nothing to send")
		o.recorder.OutboundProcessed(resultEmpty)
		return nil
	}

	if !o.sender.SendToUser(ctx, userID, payload) {
		o.recorder.OutboundProcessed(resultFailed)
		return nil
	}
	log.Info("reply relayed",
		slog.String("text", logger.Truncate(payload.Text, 100)),
		slog.Int("files", len(payload.Files)),
	)
	o.recorder.OutboundProcessed(resultDelivered)
	return nil
}

// BuildPayload converts an agent reply into a delivery payload. Attachments
// without a usable URL become notes appended to the text.
func BuildPayload(reply channel.AgentReply) channel.Payload {
	payload := channel.Payload{Text: reply.Text}
	for _, att := range reply.Attachments {
		if u := att.URL(); u != "" {
			payload.Files = append(payload.Files, u)
			continue
		}
		payload.Text += inaccessibleFileNote(att.Filename)
	}
	return payload
}
