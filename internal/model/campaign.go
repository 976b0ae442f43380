package model

import "time"

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

// TargetAudience defines a campaign's targeting filter. Empty slices mean
// "no constraint" for that dimension.
type TargetAudience struct {
	Industries []string `json:"industries,omitempty" yaml:"industries"`
	Locations  []string `json:"locations,omitempty" yaml:"locations"`
	Positions  []string `json:"positions,omitempty" yaml:"positions"`
}

// AIConfig holds per-campaign generation parameters. Nil fields fall back
// to the personalizer's defaults.
type AIConfig struct {
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   *int64   `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

// Campaign defines targeting and message strategy for a set of prospects.
// The pipeline reads it; only prospect-count bookkeeping is written back.
type Campaign struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      CampaignStatus `json:"status"`

	TargetAudience  TargetAudience `json:"target_audience"`
	MessageTemplate string         `json:"message_template"`
	AIConfig        AIConfig       `json:"ai_config"`

	DailyLimit           int           `json:"daily_limit"`
	DelayBetweenMessages time.Duration `json:"delay_between_messages"`

	TotalProspects int `json:"total_prospects"`
	SentCount      int `json:"sent_count"`
	RepliedCount   int `json:"replied_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SenderProfile describes the account sending outreach, fed into message
// generation so the model can write in the sender's voice.
type SenderProfile struct {
	Name               string `json:"name" yaml:"name"`
	Title              string `json:"title,omitempty" yaml:"title"`
	Company            string `json:"company,omitempty" yaml:"company"`
	BusinessInfo       string `json:"business_info,omitempty" yaml:"business_info"`
	CommunicationStyle string `json:"communication_style,omitempty" yaml:"communication_style"`
}
