package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// WebhookEventType enumerates the provider webhook events we handle.
type WebhookEventType string

const (
	EventMessageReceived      WebhookEventType = "MESSAGE_RECEIVED"
	EventMessageSent          WebhookEventType = "MESSAGE_SENT"
	EventMessageStatusUpdated WebhookEventType = "MESSAGE_STATUS_UPDATED"
	EventChatUpdated          WebhookEventType = "CHAT_UPDATED"
	EventAccountDisconnected  WebhookEventType = "ACCOUNT_DISCONNECTED"
)

// WebhookEvent is the envelope of a provider webhook delivery. Data is
// decoded into the variant matching Type; exactly one of the typed fields
// is non-nil after Decode.
type WebhookEvent struct {
	Type      WebhookEventType `json:"type"`
	AccountID string           `json:"account_id"`
	Timestamp int64            `json:"timestamp"`
	Data      json.RawMessage  `json:"data"`

	Message *MessageEventData `json:"-"`
	Chat    *ChatEventData    `json:"-"`
}

// MessageEventData is the payload for message lifecycle events.
type MessageEventData struct {
	ID         string        `json:"id"`
	ChatID     string        `json:"chat_id"`
	Content    string        `json:"content"`
	Type       string        `json:"type"`
	Status     string        `json:"status,omitempty"`
	Timestamp  int64         `json:"timestamp"`
	Sender     Participant   `json:"sender"`
	Recipients []Participant `json:"recipients,omitempty"`
}

// ChatEventData is the payload for chat update events.
type ChatEventData struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	IsArchived   bool          `json:"is_archived"`
}

// Participant identifies one party in a provider chat.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Decode populates the typed variant for the event's Type. Unknown event
// types decode the envelope only and are left for the caller to skip.
func (e *WebhookEvent) Decode() error {
	switch e.Type {
	case EventMessageReceived, EventMessageSent, EventMessageStatusUpdated:
		var d MessageEventData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return eris.Wrapf(err, "event: decode %s data", e.Type)
		}
		e.Message = &d
	case EventChatUpdated:
		var d ChatEventData
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return eris.Wrap(err, "event: decode chat data")
		}
		e.Chat = &d
	case EventAccountDisconnected:
		// Envelope carries everything needed (account_id).
	}
	return nil
}
