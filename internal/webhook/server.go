// Package webhook receives provider event deliveries: inbound messages,
// delivery status updates, and account lifecycle changes. Inbound messages
// can trigger an AI auto-reply, gated per channel and rate-limited per
// conversation.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/personalize"
	"github.com/sells-group/outreach-cli/internal/queue"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/unipile"
)

const (
	// maxBodyBytes caps webhook payload size.
	maxBodyBytes = 1 << 20

	// replyCooldown is the minimum gap between AI replies in one
	// conversation, so a burst of inbound messages gets one answer.
	replyCooldown = 5 * time.Minute
)

// Server handles provider webhook deliveries.
type Server struct {
	store        store.Store
	provider     unipile.Client
	personalizer *personalize.Personalizer
	sched        *queue.Scheduler
	secret       string
	aiAttempts   int

	nowFunc func() time.Time
}

// Options configures a webhook Server.
type Options struct {
	// Secret verifies delivery signatures. Empty disables verification.
	Secret string
	// AIAttempts is the attempt budget for auto-reply jobs. Default: 2.
	AIAttempts int
}

// NewServer creates a Server and registers the auto-reply handler on the
// scheduler. Call before Scheduler.Start.
func NewServer(st store.Store, provider unipile.Client, p *personalize.Personalizer, sched *queue.Scheduler, opts Options) *Server {
	if opts.AIAttempts < 1 {
		opts.AIAttempts = 2
	}
	s := &Server{
		store:        st,
		provider:     provider,
		personalizer: p,
		sched:        sched,
		secret:       opts.Secret,
		aiAttempts:   opts.AIAttempts,
		nowFunc:      func() time.Time { return time.Now().UTC() },
	}
	sched.Register(queue.JobAIReply, opts.AIAttempts, s.handleReply)
	return s
}

// Router returns the HTTP routes for the webhook server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Signature"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhooks/unipile", s.handleWebhook)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	if s.secret != "" && !unipile.VerifySignature(s.secret, body, r.Header.Get("X-Signature")) {
		zap.L().Warn("webhook signature mismatch", zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var event model.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := event.Decode(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event data"})
		return
	}

	if err := s.route(r, &event); err != nil {
		zap.L().Error("webhook event failed",
			zap.String("type", string(event.Type)),
			zap.String("account_id", event.AccountID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "event processing failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) route(r *http.Request, event *model.WebhookEvent) error {
	ctx := r.Context()
	switch event.Type {
	case model.EventMessageReceived:
		return s.handleInbound(ctx, event)
	case model.EventMessageSent, model.EventMessageStatusUpdated:
		return s.handleStatus(ctx, event)
	case model.EventChatUpdated:
		return s.handleChatUpdated(ctx, event)
	case model.EventAccountDisconnected:
		return s.handleDisconnect(ctx, event)
	default:
		zap.L().Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		return nil
	}
}

// handleInbound records an inbound message and enqueues an auto-reply when
// the channel allows it and the conversation is outside its cooldown.
func (s *Server) handleInbound(ctx context.Context, event *model.WebhookEvent) error {
	msg := event.Message

	channel, err := s.store.FindChannelByAccount(ctx, event.AccountID)
	if err != nil {
		return eris.Wrap(err, "webhook: find channel")
	}
	if channel == nil {
		zap.L().Warn("inbound message for unknown account",
			zap.String("account_id", event.AccountID))
		return nil
	}

	conv, err := s.store.FindConversation(ctx, channel.ID, msg.ChatID)
	if err != nil {
		return eris.Wrap(err, "webhook: find conversation")
	}
	receivedAt := eventTime(msg.Timestamp, s.nowFunc)
	if conv == nil {
		conv = &model.Conversation{
			ID:         uuid.New().String(),
			ChannelID:  channel.ID,
			ExternalID: msg.ChatID,
			Name:       msg.Sender.Name,
			CreatedAt:  receivedAt,
		}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return eris.Wrap(err, "webhook: create conversation")
		}
	}

	if err := s.store.CreateMessage(ctx, &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		ChannelID:      channel.ID,
		ExternalID:     msg.ID,
		Direction:      model.DirectionInbound,
		Content:        msg.Content,
		Status:         model.MessageStatusDelivered,
		CreatedAt:      receivedAt,
	}); err != nil {
		return eris.Wrap(err, "webhook: record inbound message")
	}
	if err := s.store.TouchConversation(ctx, conv.ID, receivedAt, true); err != nil {
		return eris.Wrap(err, "webhook: touch conversation")
	}

	if !s.shouldAutoReply(channel, conv, msg) {
		return nil
	}

	_, err = s.sched.Enqueue(queue.JobAIReply, ReplyJob{
		ConversationID: conv.ID,
		ChannelID:      channel.ID,
		AccountID:      event.AccountID,
		ChatID:         msg.ChatID,
		ProspectName:   msg.Sender.Name,
	}, queue.WithMaxAttempts(s.aiAttempts))
	if err != nil {
		return eris.Wrap(err, "webhook: enqueue auto-reply")
	}
	zap.L().Info("auto-reply queued",
		zap.String("conversation_id", conv.ID),
		zap.String("chat_id", msg.ChatID),
	)
	return nil
}

func (s *Server) shouldAutoReply(channel *model.Channel, conv *model.Conversation, msg *model.MessageEventData) bool {
	if !channel.AutoReplyEnabled {
		return false
	}
	if strings.TrimSpace(msg.Content) == "" {
		return false
	}
	if conv.LastAIReplyAt != nil && s.nowFunc().Sub(*conv.LastAIReplyAt) < replyCooldown {
		zap.L().Debug("auto-reply suppressed by cooldown",
			zap.String("conversation_id", conv.ID),
			zap.Time("last_ai_reply_at", *conv.LastAIReplyAt),
		)
		return false
	}
	return true
}

// handleStatus updates the delivery status of a previously recorded message.
func (s *Server) handleStatus(ctx context.Context, event *model.WebhookEvent) error {
	msg := event.Message
	status, ok := mapStatus(event.Type, msg.Status)
	if !ok {
		zap.L().Debug("ignoring unknown message status",
			zap.String("status", msg.Status),
			zap.String("external_id", msg.ID))
		return nil
	}
	if err := s.store.UpdateMessageStatus(ctx, msg.ID, status); err != nil {
		return eris.Wrapf(err, "webhook: update message %s status", msg.ID)
	}
	return nil
}

// handleChatUpdated syncs conversation metadata from the provider. Only the
// display name is tracked; events for chats we never created are ignored.
func (s *Server) handleChatUpdated(ctx context.Context, event *model.WebhookEvent) error {
	chat := event.Chat
	if chat.Name == "" {
		return nil
	}

	channel, err := s.store.FindChannelByAccount(ctx, event.AccountID)
	if err != nil {
		return eris.Wrap(err, "webhook: find channel")
	}
	if channel == nil {
		return nil
	}
	conv, err := s.store.FindConversation(ctx, channel.ID, chat.ID)
	if err != nil {
		return eris.Wrap(err, "webhook: find conversation")
	}
	if conv == nil || conv.Name == chat.Name {
		return nil
	}
	if err := s.store.RenameConversation(ctx, conv.ID, chat.Name); err != nil {
		return eris.Wrap(err, "webhook: rename conversation")
	}
	return nil
}

// handleDisconnect deactivates the local channel for a disconnected account.
func (s *Server) handleDisconnect(ctx context.Context, event *model.WebhookEvent) error {
	channel, err := s.store.FindChannelByAccount(ctx, event.AccountID)
	if err != nil {
		return eris.Wrap(err, "webhook: find channel")
	}
	if channel == nil {
		return nil
	}
	if err := s.store.SetChannelActive(ctx, channel.ID, false); err != nil {
		return eris.Wrap(err, "webhook: deactivate channel")
	}
	zap.L().Warn("provider account disconnected",
		zap.String("account_id", event.AccountID),
		zap.String("channel_id", channel.ID),
	)
	return nil
}

// mapStatus translates a provider status string into a local MessageStatus.
// MESSAGE_SENT events carry no status and mean SENT.
func mapStatus(t model.WebhookEventType, raw string) (model.MessageStatus, bool) {
	if t == model.EventMessageSent && raw == "" {
		return model.MessageStatusSent, true
	}
	switch strings.ToUpper(raw) {
	case "SENT":
		return model.MessageStatusSent, true
	case "DELIVERED":
		return model.MessageStatusDelivered, true
	case "READ", "SEEN":
		return model.MessageStatusRead, true
	case "FAILED", "ERROR":
		return model.MessageStatusFailed, true
	default:
		return "", false
	}
}

// eventTime converts a provider millisecond timestamp, falling back to now.
func eventTime(ms int64, now func() time.Time) time.Time {
	if ms <= 0 {
		return now()
	}
	return time.UnixMilli(ms).UTC()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}
