package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/unipile"
)

const (
	defaultDailyLimit   = 50
	defaultMessageDelay = 5 * time.Second
)

// SendJob is the payload for a send_message job.
type SendJob struct {
	ProspectID string `json:"prospect_id"`
	CampaignID string `json:"campaign_id"`
}

// Dispatcher pushes qualified, personalized prospects through the provider,
// pacing sends by the campaign's delay and daily limit.
type Dispatcher struct {
	store     store.Store
	provider  unipile.Client
	sched     *Scheduler
	accountID string

	sendAttempts int
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// AccountID is the provider account messages are sent from.
	AccountID string
	// SendAttempts is the per-message attempt budget. Default: 3.
	SendAttempts int
}

// NewDispatcher creates a Dispatcher and registers its send handler on the
// scheduler. Call before Scheduler.Start.
func NewDispatcher(st store.Store, provider unipile.Client, sched *Scheduler, opts DispatcherOptions) *Dispatcher {
	if opts.SendAttempts < 1 {
		opts.SendAttempts = 3
	}
	d := &Dispatcher{
		store:        st,
		provider:     provider,
		sched:        sched,
		accountID:    opts.AccountID,
		sendAttempts: opts.SendAttempts,
	}
	sched.Register(JobSendMessage, opts.SendAttempts, d.handleSend)
	return d
}

// DispatchCampaign enqueues send jobs for the campaign's qualified prospects
// that have a personalized message ready. Jobs are spaced by the campaign's
// message delay, and at most the daily limit are enqueued. Returns the number
// of jobs enqueued.
func (d *Dispatcher) DispatchCampaign(ctx context.Context, campaignID string) (int, error) {
	campaign, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, eris.Wrapf(err, "queue: load campaign %s", campaignID)
	}

	limit := campaign.DailyLimit
	if limit <= 0 {
		limit = defaultDailyLimit
	}
	delay := campaign.DelayBetweenMessages
	if delay <= 0 {
		delay = defaultMessageDelay
	}

	prospects, err := d.store.FindProspectsByStatus(ctx, campaignID, model.ProspectStatusQualified, limit)
	if err != nil {
		return 0, eris.Wrapf(err, "queue: find qualified prospects for %s", campaignID)
	}

	enqueued := 0
	for _, p := range prospects {
		if p.PersonalizedMessage == nil || *p.PersonalizedMessage == "" {
			zap.L().Warn("skipping prospect without personalized message",
				zap.String("prospect_id", p.ID))
			continue
		}
		if p.LinkedInID == "" {
			zap.L().Warn("skipping prospect without provider id",
				zap.String("prospect_id", p.ID))
			continue
		}

		_, err := d.sched.Enqueue(JobSendMessage,
			SendJob{ProspectID: p.ID, CampaignID: campaignID},
			WithDelay(time.Duration(enqueued)*delay),
			WithMaxAttempts(d.sendAttempts),
		)
		if err != nil {
			return enqueued, eris.Wrapf(err, "queue: enqueue send for %s", p.ID)
		}
		enqueued++
	}

	zap.L().Info("campaign dispatch enqueued",
		zap.String("campaign_id", campaignID),
		zap.Int("enqueued", enqueued),
		zap.Int("daily_limit", limit),
		zap.Duration("delay", delay),
	)
	return enqueued, nil
}

func (d *Dispatcher) handleSend(ctx context.Context, payload json.RawMessage) error {
	var job SendJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return eris.Wrap(err, "queue: decode send job")
	}

	p, err := d.store.GetProspect(ctx, job.ProspectID)
	if err != nil {
		return eris.Wrapf(err, "queue: load prospect %s", job.ProspectID)
	}
	if p.Status != model.ProspectStatusQualified {
		// Re-dispatched or already contacted; nothing to do.
		zap.L().Debug("prospect no longer qualified, skipping send",
			zap.String("prospect_id", p.ID),
			zap.String("status", string(p.Status)))
		return nil
	}
	if p.PersonalizedMessage == nil || *p.PersonalizedMessage == "" {
		return eris.Errorf("queue: prospect %s has no personalized message", p.ID)
	}

	receipt, err := d.provider.SendMessage(ctx, unipile.SendRequest{
		AccountID:  d.accountID,
		AttendeeID: p.LinkedInID,
		Text:       *p.PersonalizedMessage,
	})
	if err != nil {
		return eris.Wrapf(err, "queue: send message to %s", p.ID)
	}

	if err := d.recordSend(ctx, p, receipt); err != nil {
		// The message went out; losing the local record should not burn
		// another provider send on retry.
		zap.L().Error("message sent but not recorded",
			zap.String("prospect_id", p.ID),
			zap.String("chat_id", receipt.ChatID),
			zap.Error(err),
		)
	}

	status := model.ProspectStatusContacted
	if err := d.store.UpdateProspect(ctx, p.ID, model.ProspectUpdate{Status: &status}); err != nil {
		return eris.Wrapf(err, "queue: mark prospect %s contacted", p.ID)
	}
	if err := d.store.IncrementCampaignSent(ctx, job.CampaignID, 1); err != nil {
		zap.L().Warn("campaign sent count not updated",
			zap.String("campaign_id", job.CampaignID),
			zap.Error(err),
		)
	}

	zap.L().Info("outreach message sent",
		zap.String("prospect_id", p.ID),
		zap.String("campaign_id", job.CampaignID),
		zap.String("chat_id", receipt.ChatID),
	)
	return nil
}

// recordSend persists the conversation and outbound message rows for a
// delivered send.
func (d *Dispatcher) recordSend(ctx context.Context, p *model.Prospect, receipt *model.DeliveryReceipt) error {
	channel, err := d.channel(ctx)
	if err != nil {
		return err
	}

	conv, err := d.store.FindConversation(ctx, channel.ID, receipt.ChatID)
	if err != nil {
		return eris.Wrap(err, "queue: find conversation")
	}
	if conv == nil {
		conv = &model.Conversation{
			ID:         uuid.New().String(),
			ChannelID:  channel.ID,
			ExternalID: receipt.ChatID,
			Name:       p.FullName(),
			CreatedAt:  time.Now().UTC(),
		}
		if err := d.store.CreateConversation(ctx, conv); err != nil {
			return eris.Wrap(err, "queue: create conversation")
		}
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		ChannelID:      channel.ID,
		ExternalID:     receipt.MessageID,
		Direction:      model.DirectionOutbound,
		Content:        *p.PersonalizedMessage,
		Status:         model.MessageStatusSent,
		AIGenerated:    true,
		CreatedAt:      receipt.SentAt,
	}
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		return eris.Wrap(err, "queue: record outbound message")
	}
	if err := d.store.TouchConversation(ctx, conv.ID, receipt.SentAt, false); err != nil {
		return eris.Wrap(err, "queue: touch conversation")
	}
	return nil
}

// channel returns the local channel row for the dispatch account, creating
// it on first use.
func (d *Dispatcher) channel(ctx context.Context) (*model.Channel, error) {
	channel, err := d.store.FindChannelByAccount(ctx, d.accountID)
	if err != nil {
		return nil, eris.Wrap(err, "queue: find channel")
	}
	if channel != nil {
		return channel, nil
	}
	channel = &model.Channel{
		ID:                uuid.New().String(),
		Type:              "LINKEDIN",
		ProviderAccountID: d.accountID,
		IsActive:          true,
		CreatedAt:         time.Now().UTC(),
	}
	if err := d.store.CreateChannel(ctx, channel); err != nil {
		return nil, eris.Wrap(err, "queue: create channel")
	}
	return channel, nil
}
