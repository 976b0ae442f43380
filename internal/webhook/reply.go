package webhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/unipile"
)

// replyHistoryLimit bounds how much conversation history feeds the model.
const replyHistoryLimit = 20

// ReplyJob is the payload for an ai_reply job.
type ReplyJob struct {
	ConversationID string `json:"conversation_id"`
	ChannelID      string `json:"channel_id"`
	AccountID      string `json:"account_id"`
	ChatID         string `json:"chat_id"`
	ProspectName   string `json:"prospect_name"`
}

// handleReply generates an AI answer from the conversation history, sends it
// through the provider, and records it locally.
func (s *Server) handleReply(ctx context.Context, payload json.RawMessage) error {
	var job ReplyJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return eris.Wrap(err, "webhook: decode reply job")
	}

	history, err := s.store.ListMessages(ctx, job.ConversationID, replyHistoryLimit)
	if err != nil {
		return eris.Wrapf(err, "webhook: load history for %s", job.ConversationID)
	}
	if len(history) == 0 {
		return eris.Errorf("webhook: conversation %s has no messages", job.ConversationID)
	}

	text, err := s.personalizer.Reply(ctx, history, job.ProspectName)
	if err != nil {
		return eris.Wrap(err, "webhook: generate reply")
	}

	receipt, err := s.provider.SendMessage(ctx, unipile.SendRequest{
		AccountID: job.AccountID,
		ChatID:    job.ChatID,
		Text:      text,
	})
	if err != nil {
		return eris.Wrap(err, "webhook: send reply")
	}

	now := s.nowFunc()
	if err := s.store.CreateMessage(ctx, &model.Message{
		ID:             uuid.New().String(),
		ConversationID: job.ConversationID,
		ChannelID:      job.ChannelID,
		ExternalID:     receipt.MessageID,
		Direction:      model.DirectionOutbound,
		Content:        text,
		Status:         model.MessageStatusSent,
		AIGenerated:    true,
		CreatedAt:      now,
	}); err != nil {
		return eris.Wrap(err, "webhook: record reply")
	}
	if err := s.store.MarkAIReply(ctx, job.ConversationID, now); err != nil {
		return eris.Wrap(err, "webhook: mark ai reply")
	}
	if err := s.store.TouchConversation(ctx, job.ConversationID, now, false); err != nil {
		return eris.Wrap(err, "webhook: touch conversation")
	}

	zap.L().Info("auto-reply sent",
		zap.String("conversation_id", job.ConversationID),
		zap.String("chat_id", job.ChatID),
	)
	return nil
}
