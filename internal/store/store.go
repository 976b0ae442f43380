package store

import (
	"context"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Prospects
	CreateProspect(ctx context.Context, p *model.Prospect) error
	GetProspect(ctx context.Context, id string) (*model.Prospect, error)
	UpdateProspect(ctx context.Context, id string, upd model.ProspectUpdate) error
	FindPendingProspects(ctx context.Context, campaignID string, limit int) ([]model.Prospect, error)
	FindProspectsByStatus(ctx context.Context, campaignID string, status model.ProspectStatus, limit int) ([]model.Prospect, error)
	CountProspects(ctx context.Context, campaignID string) (int, error)

	// Campaigns
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	IncrementCampaignSent(ctx context.Context, id string, delta int) error

	// Messages
	CreateMessage(ctx context.Context, m *model.Message) error
	UpdateMessageStatus(ctx context.Context, externalID string, status model.MessageStatus) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	// Conversations
	FindConversation(ctx context.Context, channelID, externalID string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	// TouchConversation stamps last_message_at; incrementUnread is set for
	// inbound messages only.
	TouchConversation(ctx context.Context, id string, lastMessageAt time.Time, incrementUnread bool) error
	RenameConversation(ctx context.Context, id, name string) error
	MarkAIReply(ctx context.Context, id string, at time.Time) error

	// Channels
	FindChannelByAccount(ctx context.Context, providerAccountID string) (*model.Channel, error)
	CreateChannel(ctx context.Context, ch *model.Channel) error
	SetChannelActive(ctx context.Context, id string, active bool) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
