package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/logger"
	"github.com/memohai/deskrelay/internal/relayerr"
	"github.com/memohai/deskrelay/internal/session"
)

// Inbound relays direct messages into helpdesk conversations, creating the
// conversation on a user's first message.
type Inbound struct {
	store    *session.Store
	helpdesk Helpdesk
	replier  channel.Replier
	recorder Recorder
	logger   *slog.Logger

	creating singleflight.Group
}

// NewInbound creates an Inbound relay. recorder may be nil.
func NewInbound(log *slog.Logger, store *session.Store, helpdesk Helpdesk, replier channel.Replier, recorder Recorder) *Inbound {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Inbound{
		store:    store,
		helpdesk: helpdesk,
		replier:  replier,
		recorder: recorder,
		logger:   log.With(slog.String("component", "inbound_relay")),
	}
}

// Handle relays msg. Failures are reported to the user as notices and never
// returned, so one failed step does not stop the remaining ones.
func (i *Inbound) Handle(ctx context.Context, msg channel.DirectMessage) error {
	if msg.IsEmpty() {
		return nil
	}
	log := i.logger.With(
		slog.String("trace_id", uuid.NewString()),
		slog.String("user_id", msg.UserID()),
		slog.String("message_id", msg.ID),
	)

	sess, err := i.ensureSession(ctx, log, msg)
	if err != nil {
		log.Error("session unavailable",
			slog.String("error_kind", string(relayerr.KindOf(err))),
			slog.Any("error", err),
		)
		if errors.Is(err, session.ErrIncomplete) || relayerr.IsProtocol(err) {
			i.notify(ctx, log, msg, noticeSessionInvalid)
		} else {
			i.notify(ctx, log, msg, noticeSessionFailed)
		}
		i.recorder.InboundProcessed(resultSessionFailed)
		return nil
	}

	failed := 0
	if text := msg.Text; strings.TrimSpace(text) != "" {
		log.Info("forwarding text",
			slog.Int64("conversation_id", sess.ConversationID),
			slog.String("text", logger.Truncate(text, 100)),
		)
		if _, err := i.helpdesk.SendText(ctx, sess.ContactSourceID, sess.ConversationID, text); err != nil {
			log.Error("forward text failed", slog.Any("error", err))
			i.notify(ctx, log, msg, noticeTextFailed)
			failed++
		}
	}

	for _, att := range msg.Attachments {
		if !i.relayAttachment(ctx, log, msg, sess, att) {
			failed++
		}
	}

	if failed > 0 {
		i.recorder.InboundProcessed(resultPartial)
	} else {
		i.recorder.InboundProcessed(resultRelayed)
	}
	return nil
}

// ensureSession returns the user's session, creating it at most once per user
// even when several of the user's messages are processed concurrently.
func (i *Inbound) ensureSession(ctx context.Context, log *slog.Logger, msg channel.DirectMessage) (session.Session, error) {
	userID := msg.UserID()
	if sess, ok := i.store.Get(userID); ok {
		return sess, nil
	}

	v, err, shared := i.creating.Do(userID, func() (any, error) {
		if sess, ok := i.store.Get(userID); ok {
			return sess, nil
		}
		log.Info("no session, creating", slog.String("username", msg.Username()))
		sess, err := i.helpdesk.CreateContactAndConversation(ctx, userID, msg.Username())
		if err != nil {
			return session.Session{}, err
		}
		if err := i.store.Put(userID, sess); err != nil {
			if existing, ok := i.store.Get(userID); ok && errors.Is(err, session.ErrExists) {
				return existing, nil
			}
			return session.Session{}, err
		}
		i.recorder.SessionCreated()
		log.Info("session created",
			slog.Int64("conversation_id", sess.ConversationID),
			slog.Int64("contact_id", sess.ContactID),
		)
		return sess, nil
	})
	if err != nil {
		return session.Session{}, err
	}
	if shared {
		log.Debug("joined in-flight session creation")
	}
	return v.(session.Session), nil
}

func (i *Inbound) relayAttachment(ctx context.Context, log *slog.Logger, msg channel.DirectMessage, sess session.Session, att channel.Attachment) bool {
	name := att.DisplayName()
	url := att.Reference()
	log = log.With(slog.String("attachment", name), slog.Int64("conversation_id", sess.ConversationID))

	if !i.helpdesk.CanUpload() {
		if _, err := i.helpdesk.SendText(ctx, sess.ContactSourceID, sess.ConversationID, linkText(name, url)); err != nil {
			log.Error("send attachment link failed", slog.Any("error", err))
			i.recorder.AttachmentRelayed(pathLink, outcomeError)
			i.notify(ctx, log, msg, noticeLinkFailed(name))
			return false
		}
		i.recorder.AttachmentRelayed(pathLink, outcomeSuccess)
		return true
	}

	_, err := i.helpdesk.UploadAttachment(ctx, sess, att)
	if err == nil {
		i.recorder.AttachmentRelayed(pathUpload, outcomeSuccess)
		return true
	}
	log.Warn("upload failed, sending link instead",
		slog.String("error_kind", string(relayerr.KindOf(err))),
		slog.Any("error", err),
	)
	i.recorder.AttachmentRelayed(pathUpload, outcomeError)

	if _, err := i.helpdesk.SendText(ctx, sess.ContactSourceID, sess.ConversationID, uploadFallbackText(name, url)); err != nil {
		log.Error("attachment fallback failed", slog.Any("error", err))
		i.recorder.AttachmentRelayed(pathFallbackLink, outcomeError)
		i.notify(ctx, log, msg, noticeUploadFailed)
		return false
	}
	i.recorder.AttachmentRelayed(pathFallbackLink, outcomeSuccess)
	return true
}

func (i *Inbound) notify(ctx context.Context, log *slog.Logger, msg channel.DirectMessage, text string) {
	if i.replier == nil {
		return
	}
	if err := i.replier.Reply(ctx, msg, text); err != nil {
		log.Warn("notice reply failed", slog.Any("error", err))
	}
}
