package chatwoot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	messageTypeIncoming = "incoming"
	platformDiscord     = "discord"
)

type contactRequest struct {
	Name                 string            `json:"name"`
	Identifier           string            `json:"identifier"`
	Email                string            `json:"email"`
	AdditionalAttributes contactAttributes `json:"additional_attributes"`
}

type contactAttributes struct {
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	Platform        string `json:"platform"`
}

type contactResponse struct {
	ID          *int64 `json:"id"`
	SourceID    string `json:"source_id"`
	PubsubToken string `json:"pubsub_token"`
}

type messageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// idShape records where an identifier was found in a response body.
type idShape string

const (
	idShapeNested idShape = "payload"
	idShapeRoot   idShape = "root"
)

type identified struct {
	ID *int64 `json:"id"`
}

// envelope covers both response layouts Chatwoot uses for created resources:
// the resource at the root, or wrapped in a "payload" object.
type envelope struct {
	Payload json.RawMessage `json:"payload"`
	identified
}

// decodeID extracts the resource id from body, accepting the nested payload
// layout first and the root layout second.
func decodeID(body []byte) (int64, idShape, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, "", fmt.Errorf("decode response: %w", err)
	}
	if payload := bytes.TrimSpace(env.Payload); len(payload) > 0 && payload[0] == '{' {
		var nested identified
		if err := json.Unmarshal(payload, &nested); err != nil {
			return 0, "", fmt.Errorf("decode payload: %w", err)
		}
		if nested.ID != nil {
			return *nested.ID, idShapeNested, nil
		}
	}
	if env.ID != nil {
		return *env.ID, idShapeRoot, nil
	}
	return 0, "", fmt.Errorf("id not found in response")
}

// UploadResult describes a message created by an attachment upload.
type UploadResult struct {
	MessageID   int64
	Attachments int
}

type uploadResponse struct {
	ID          *int64            `json:"id"`
	Attachments []json.RawMessage `json:"attachments"`
}
