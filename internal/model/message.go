package model

import "time"

// MessageDirection distinguishes inbound from outbound messages.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

// MessageStatus tracks delivery state as reported by the provider.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "PENDING"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
	MessageStatusFailed    MessageStatus = "FAILED"
)

// Message is one message in a conversation, inbound or outbound.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	ChannelID      string           `json:"channel_id"`
	ExternalID     string           `json:"external_id,omitempty"`
	Direction      MessageDirection `json:"direction"`
	Content        string           `json:"content"`
	Status         MessageStatus    `json:"status"`
	AIGenerated    bool             `json:"ai_generated"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Conversation groups messages exchanged with one prospect on one channel.
type Conversation struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	ExternalID string    `json:"external_id"` // provider chat id
	Name       string    `json:"name,omitempty"`
	// LastAIReplyAt gates the auto-reply cooldown; nil means no AI reply yet.
	LastAIReplyAt *time.Time `json:"last_ai_reply_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Channel is one connected messaging-provider account.
type Channel struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Type              string    `json:"type"` // e.g. LINKEDIN, EMAIL
	ProviderAccountID string    `json:"provider_account_id"`
	IsActive          bool      `json:"is_active"`
	AutoReplyEnabled  bool      `json:"auto_reply_enabled"`
	CreatedAt         time.Time `json:"created_at"`
}

// DeliveryReceipt is what the messaging provider returns for a send.
type DeliveryReceipt struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	SentAt    time.Time `json:"sent_at"`
}
