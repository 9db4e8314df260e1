// Package relay moves messages between the messaging platform and the
// helpdesk. Inbound turns direct messages into helpdesk conversation messages;
// Outbound turns agent replies into direct messages.
package relay

import (
	"context"

	"github.com/memohai/deskrelay/internal/channel"
	"github.com/memohai/deskrelay/internal/chatwoot"
	"github.com/memohai/deskrelay/internal/session"
)

// InboundHandler processes one direct message received from a user.
type InboundHandler interface {
	Handle(ctx context.Context, msg channel.DirectMessage) error
}

// ReplyHandler processes one agent reply received from the helpdesk.
type ReplyHandler interface {
	Handle(ctx context.Context, reply channel.AgentReply) error
}

// Helpdesk is the helpdesk gateway used by Inbound.
type Helpdesk interface {
	CreateContactAndConversation(ctx context.Context, userID, username string) (session.Session, error)
	SendText(ctx context.Context, contactSourceID string, conversationID int64, text string) (int64, error)
	UploadAttachment(ctx context.Context, sess session.Session, att channel.Attachment) (chatwoot.UploadResult, error)
	CanUpload() bool
}

// Recorder receives relay outcomes, typically for metrics.
type Recorder interface {
	InboundProcessed(result string)
	OutboundProcessed(result string)
	AttachmentRelayed(path, result string)
	SessionCreated()
}

const (
	resultRelayed       = "relayed"
	resultPartial       = "partial"
	resultSessionFailed = "session_failed"

	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultNoSession = "no_session"
	resultEmpty     = "empty"

	pathUpload       = "upload"
	pathLink         = "link"
	pathFallbackLink = "fallback_link"

	outcomeSuccess = "success"
	outcomeError   = "error"
)

type noopRecorder struct{}

func (noopRecorder) InboundProcessed(string)          {}
func (noopRecorder) OutboundProcessed(string)         {}
func (noopRecorder) AttachmentRelayed(string, string) {}
func (noopRecorder) SessionCreated()                  {}
