// Package channel defines the messaging-platform side of the relay: direct
// message events received from a chat platform, delivery payloads sent back to
// a user, and the adapter and manager abstractions that connect the two.
package channel

import (
	"strings"
	"time"
)

// ChannelType identifies a messaging platform (e.g., "discord").
type ChannelType string

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// Identity represents a sender's identity on a channel.
type Identity struct {
	SubjectID   string
	DisplayName string
}

// AttachmentType classifies the kind of binary attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
	AttachmentVideo AttachmentType = "video"
	AttachmentFile  AttachmentType = "file"
)

// Attachment represents a binary file attached to a message.
type Attachment struct {
	Type           AttachmentType `json:"type"`
	URL            string         `json:"url,omitempty"`
	PlatformKey    string         `json:"platform_key,omitempty"`
	SourcePlatform string         `json:"source_platform,omitempty"`
	Name           string         `json:"name,omitempty"`
	Size           int64          `json:"size,omitempty"`
	Mime           string         `json:"mime,omitempty"`
	Width          int            `json:"width,omitempty"`
	Height         int            `json:"height,omitempty"`
}

// Reference returns the strongest available attachment reference.
// URL is preferred for cross-platform portability, then platform key.
func (a Attachment) Reference() string {
	if strings.TrimSpace(a.URL) != "" {
		return strings.TrimSpace(a.URL)
	}
	return strings.TrimSpace(a.PlatformKey)
}

// DisplayName returns the attachment file name, or a placeholder when unnamed.
func (a Attachment) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return "unnamed file"
}

// DirectMessage is a private 1:1 message received from a platform user.
type DirectMessage struct {
	ID          string
	Channel     ChannelType
	ChannelID   string
	Sender      Identity
	Text        string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// UserID returns the platform identity of the sender.
func (m DirectMessage) UserID() string {
	return strings.TrimSpace(m.Sender.SubjectID)
}

// Username returns the display name of the sender.
func (m DirectMessage) Username() string {
	return strings.TrimSpace(m.Sender.DisplayName)
}

// IsEmpty reports whether the message carries neither text nor attachments.
func (m DirectMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == "" && len(m.Attachments) == 0
}

// Payload is the content delivered to a platform user. Files are URLs that the
// adapter fetches and attaches.
type Payload struct {
	Text  string   `json:"text,omitempty"`
	Files []string `json:"files,omitempty"`
}

// IsEmpty reports whether the payload has nothing to deliver.
func (p Payload) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == "" && len(p.Files) == 0
}

// ReplyAttachment is a file attached to a helpdesk agent reply.
type ReplyAttachment struct {
	FileURL  string `json:"file_url,omitempty"`
	DataURL  string `json:"data_url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// URL returns the file URL, falling back to the data URL.
func (a ReplyAttachment) URL() string {
	if u := strings.TrimSpace(a.FileURL); u != "" {
		return u
	}
	return strings.TrimSpace(a.DataURL)
}

// AgentReply is a public agent message posted in a helpdesk conversation.
type AgentReply struct {
	ConversationID int64
	Text           string
	Attachments    []ReplyAttachment
}
