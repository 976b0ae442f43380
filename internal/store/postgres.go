package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prospects (
	id                 TEXT PRIMARY KEY,
	campaign_id        TEXT NOT NULL REFERENCES campaigns(id),
	data               JSONB NOT NULL,
	score              DOUBLE PRECISION NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'PENDING',
	profile_fetched_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS channels (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	type                TEXT NOT NULL,
	provider_account_id TEXT NOT NULL,
	is_active           BOOLEAN NOT NULL DEFAULT true,
	auto_reply_enabled  BOOLEAN NOT NULL DEFAULT false,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	channel_id       TEXT NOT NULL REFERENCES channels(id),
	external_id      TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	last_ai_reply_at TIMESTAMPTZ,
	last_message_at  TIMESTAMPTZ,
	unread_count     INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (channel_id, external_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	channel_id      TEXT NOT NULL REFERENCES channels(id),
	external_id     TEXT,
	direction       TEXT NOT NULL,
	content         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	ai_generated    BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prospects_campaign_pending
	ON prospects(campaign_id, created_at) WHERE profile_fetched_at IS NULL AND status = 'PENDING';
CREATE INDEX IF NOT EXISTS idx_messages_external_id ON messages(external_id);
CREATE INDEX IF NOT EXISTS idx_channels_provider_account ON channels(provider_account_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateProspect(ctx context.Context, p *model.Prospect) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = model.ProspectStatusPending
	}

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prospect")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO prospects (id, campaign_id, data, score, status, profile_fetched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.CampaignID, data, p.Score, string(p.Status), p.ProfileFetchedAt, now, now,
	)
	return eris.Wrap(err, "postgres: insert prospect")
}

func (s *PostgresStore) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM prospects WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: prospect %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prospect %s", id)
	}

	var p model.Prospect
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal prospect")
	}
	return &p, nil
}

// UpdateProspect loads the prospect, applies the partial update, and writes
// the record back in a single UPDATE keyed by id.
func (s *PostgresStore) UpdateProspect(ctx context.Context, id string, upd model.ProspectUpdate) error {
	p, err := s.GetProspect(ctx, id)
	if err != nil {
		return err
	}
	p.Apply(upd)
	p.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prospect")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET data = $1, score = $2, status = $3, profile_fetched_at = $4, updated_at = $5 WHERE id = $6`,
		data, p.Score, string(p.Status), p.ProfileFetchedAt, p.UpdatedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update prospect %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: prospect %s not found", id)
	}
	return nil
}

func (s *PostgresStore) FindPendingProspects(ctx context.Context, campaignID string, limit int) ([]model.Prospect, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM prospects
		 WHERE campaign_id = $1 AND profile_fetched_at IS NULL AND status = $2
		 ORDER BY created_at
		 LIMIT $3`,
		campaignID, string(model.ProspectStatusPending), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find pending prospects %s", campaignID)
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		var p model.Prospect
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal prospect")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate prospects")
}

func (s *PostgresStore) FindProspectsByStatus(ctx context.Context, campaignID string, status model.ProspectStatus, limit int) ([]model.Prospect, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM prospects
		 WHERE campaign_id = $1 AND status = $2
		 ORDER BY created_at
		 LIMIT $3`,
		campaignID, string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find prospects by status %s", campaignID)
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		var p model.Prospect
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal prospect")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate prospects")
}

func (s *PostgresStore) CountProspects(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM prospects WHERE campaign_id = $1`, campaignID,
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count prospects %s", campaignID)
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}

	data, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal campaign")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, data, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		c.ID, data, now, now,
	)
	return eris.Wrap(err, "postgres: insert campaign")
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM campaigns WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: campaign %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get campaign %s", id)
	}

	var c model.Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal campaign")
	}
	return &c, nil
}

func (s *PostgresStore) IncrementCampaignSent(ctx context.Context, id string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns
		 SET data = jsonb_set(data, '{sent_count}', to_jsonb(COALESCE((data->>'sent_count')::int, 0) + $1)),
		     updated_at = $2
		 WHERE id = $3`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment campaign %s sent count", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: campaign %s not found", id)
	}
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Status == "" {
		m.Status = model.MessageStatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, channel_id, external_id, direction, content, status, ai_generated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ConversationID, m.ChannelID, m.ExternalID, string(m.Direction), m.Content, string(m.Status), m.AIGenerated, m.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert message")
}

func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, externalID string, status model.MessageStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE messages SET status = $1 WHERE external_id = $2`,
		string(status), externalID,
	)
	return eris.Wrapf(err, "postgres: update message status %s", externalID)
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, channel_id, external_id, direction, content, status, ai_generated, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list messages %s", conversationID)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var externalID *string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ChannelID, &externalID, &m.Direction, &m.Content, &m.Status, &m.AIGenerated, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		if externalID != nil {
			m.ExternalID = *externalID
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate messages")
}

func (s *PostgresStore) FindConversation(ctx context.Context, channelID, externalID string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, channel_id, external_id, name, last_ai_reply_at, last_message_at, unread_count, created_at
		 FROM conversations WHERE channel_id = $1 AND external_id = $2`,
		channelID, externalID,
	).Scan(&c.ID, &c.ChannelID, &c.ExternalID, &c.Name, &c.LastAIReplyAt, &c.LastMessageAt, &c.UnreadCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find conversation")
	}
	return &c, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, channel_id, external_id, name, unread_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ChannelID, c.ExternalID, c.Name, c.UnreadCount, c.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert conversation")
}

func (s *PostgresStore) TouchConversation(ctx context.Context, id string, lastMessageAt time.Time, incrementUnread bool) error {
	unread := 0
	if incrementUnread {
		unread = 1
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET last_message_at = $1, unread_count = unread_count + $2 WHERE id = $3`,
		lastMessageAt, unread, id,
	)
	return eris.Wrapf(err, "postgres: touch conversation %s", id)
}

func (s *PostgresStore) RenameConversation(ctx context.Context, id, name string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET name = $1 WHERE id = $2`,
		name, id,
	)
	return eris.Wrapf(err, "postgres: rename conversation %s", id)
}

func (s *PostgresStore) MarkAIReply(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET last_ai_reply_at = $1 WHERE id = $2`,
		at, id,
	)
	return eris.Wrapf(err, "postgres: mark ai reply %s", id)
}

func (s *PostgresStore) FindChannelByAccount(ctx context.Context, providerAccountID string) (*model.Channel, error) {
	var ch model.Channel
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, type, provider_account_id, is_active, auto_reply_enabled, created_at
		 FROM channels WHERE provider_account_id = $1 AND is_active`,
		providerAccountID,
	).Scan(&ch.ID, &ch.UserID, &ch.Type, &ch.ProviderAccountID, &ch.IsActive, &ch.AutoReplyEnabled, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find channel")
	}
	return &ch, nil
}

func (s *PostgresStore) CreateChannel(ctx context.Context, ch *model.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO channels (id, user_id, type, provider_account_id, is_active, auto_reply_enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ch.ID, ch.UserID, ch.Type, ch.ProviderAccountID, ch.IsActive, ch.AutoReplyEnabled, ch.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert channel")
}

func (s *PostgresStore) SetChannelActive(ctx context.Context, id string, active bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE channels SET is_active = $1 WHERE id = $2`,
		active, id,
	)
	return eris.Wrapf(err, "postgres: set channel active %s", id)
}
