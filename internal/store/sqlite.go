package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS prospects (
	id                 TEXT PRIMARY KEY,
	campaign_id        TEXT NOT NULL REFERENCES campaigns(id),
	data               TEXT NOT NULL,
	score              REAL NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'PENDING',
	profile_fetched_at DATETIME,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS channels (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	type                TEXT NOT NULL,
	provider_account_id TEXT NOT NULL,
	is_active           INTEGER NOT NULL DEFAULT 1,
	auto_reply_enabled  INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	channel_id       TEXT NOT NULL REFERENCES channels(id),
	external_id      TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	last_ai_reply_at DATETIME,
	last_message_at  DATETIME,
	unread_count     INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
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
	ai_generated    INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prospects_campaign ON prospects(campaign_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_external_id ON messages(external_id);
CREATE INDEX IF NOT EXISTS idx_channels_provider_account ON channels(provider_account_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProspect(ctx context.Context, p *model.Prospect) error {
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
		return eris.Wrap(err, "sqlite: marshal prospect")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prospects (id, campaign_id, data, score, status, profile_fetched_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CampaignID, string(data), p.Score, string(p.Status), p.ProfileFetchedAt, now, now,
	)
	return eris.Wrap(err, "sqlite: insert prospect")
}

func (s *SQLiteStore) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM prospects WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: prospect %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", id)
	}

	var p model.Prospect
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
	}
	return &p, nil
}

func (s *SQLiteStore) UpdateProspect(ctx context.Context, id string, upd model.ProspectUpdate) error {
	p, err := s.GetProspect(ctx, id)
	if err != nil {
		return err
	}
	p.Apply(upd)
	p.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal prospect")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET data = ?, score = ?, status = ?, profile_fetched_at = ?, updated_at = ? WHERE id = ?`,
		string(data), p.Score, string(p.Status), p.ProfileFetchedAt, p.UpdatedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update prospect %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: prospect %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) FindPendingProspects(ctx context.Context, campaignID string, limit int) ([]model.Prospect, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM prospects
		 WHERE campaign_id = ? AND profile_fetched_at IS NULL AND status = ?
		 ORDER BY created_at
		 LIMIT ?`,
		campaignID, string(model.ProspectStatusPending), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find pending prospects %s", campaignID)
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		var p model.Prospect
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate prospects")
}

func (s *SQLiteStore) FindProspectsByStatus(ctx context.Context, campaignID string, status model.ProspectStatus, limit int) ([]model.Prospect, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM prospects
		 WHERE campaign_id = ? AND status = ?
		 ORDER BY created_at
		 LIMIT ?`,
		campaignID, string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find prospects by status %s", campaignID)
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		var p model.Prospect
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate prospects")
}

func (s *SQLiteStore) CountProspects(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM prospects WHERE campaign_id = ?`, campaignID,
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count prospects %s", campaignID)
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
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
		return eris.Wrap(err, "sqlite: marshal campaign")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, string(data), now, now,
	)
	return eris.Wrap(err, "sqlite: insert campaign")
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM campaigns WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: campaign %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", id)
	}

	var c model.Campaign
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal campaign")
	}
	return &c, nil
}

func (s *SQLiteStore) IncrementCampaignSent(ctx context.Context, id string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns
		 SET data = json_set(data, '$.sent_count', COALESCE(json_extract(data, '$.sent_count'), 0) + ?),
		     updated_at = ?
		 WHERE id = ?`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment campaign %s sent count", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: campaign %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Status == "" {
		m.Status = model.MessageStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, channel_id, external_id, direction, content, status, ai_generated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.ChannelID, m.ExternalID, string(m.Direction), m.Content, string(m.Status), m.AIGenerated, m.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert message")
}

func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, externalID string, status model.MessageStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE external_id = ?`,
		string(status), externalID,
	)
	return eris.Wrapf(err, "sqlite: update message status %s", externalID)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, channel_id, external_id, direction, content, status, ai_generated, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at
		 LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list messages %s", conversationID)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var externalID sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ChannelID, &externalID, &m.Direction, &m.Content, &m.Status, &m.AIGenerated, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		m.ExternalID = externalID.String
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate messages")
}

func (s *SQLiteStore) FindConversation(ctx context.Context, channelID, externalID string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, external_id, name, last_ai_reply_at, last_message_at, unread_count, created_at
		 FROM conversations WHERE channel_id = ? AND external_id = ?`,
		channelID, externalID,
	).Scan(&c.ID, &c.ChannelID, &c.ExternalID, &c.Name, &c.LastAIReplyAt, &c.LastMessageAt, &c.UnreadCount, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find conversation")
	}
	return &c, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, channel_id, external_id, name, unread_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ChannelID, c.ExternalID, c.Name, c.UnreadCount, c.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert conversation")
}

func (s *SQLiteStore) TouchConversation(ctx context.Context, id string, lastMessageAt time.Time, incrementUnread bool) error {
	unread := 0
	if incrementUnread {
		unread = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ?, unread_count = unread_count + ? WHERE id = ?`,
		lastMessageAt, unread, id,
	)
	return eris.Wrapf(err, "sqlite: touch conversation %s", id)
}

func (s *SQLiteStore) RenameConversation(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET name = ? WHERE id = ?`,
		name, id,
	)
	return eris.Wrapf(err, "sqlite: rename conversation %s", id)
}

func (s *SQLiteStore) MarkAIReply(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_ai_reply_at = ? WHERE id = ?`,
		at, id,
	)
	return eris.Wrapf(err, "sqlite: mark ai reply %s", id)
}

func (s *SQLiteStore) FindChannelByAccount(ctx context.Context, providerAccountID string) (*model.Channel, error) {
	var ch model.Channel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, provider_account_id, is_active, auto_reply_enabled, created_at
		 FROM channels WHERE provider_account_id = ? AND is_active = 1`,
		providerAccountID,
	).Scan(&ch.ID, &ch.UserID, &ch.Type, &ch.ProviderAccountID, &ch.IsActive, &ch.AutoReplyEnabled, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find channel")
	}
	return &ch, nil
}

func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *model.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, user_id, type, provider_account_id, is_active, auto_reply_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.UserID, ch.Type, ch.ProviderAccountID, ch.IsActive, ch.AutoReplyEnabled, ch.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert channel")
}

func (s *SQLiteStore) SetChannelActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET is_active = ? WHERE id = ?`,
		active, id,
	)
	return eris.Wrapf(err, "sqlite: set channel active %s", id)
}
