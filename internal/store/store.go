package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Role classifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrNotFound indicates a lookup for a row that does not exist. Empty
// history reads are not errors; this is only for keyed single-row lookups.
var ErrNotFound = errors.New("not found")

// Message is one stored chat message. IDs are assigned by the database and
// are the ordering key; Timestamp is wall-clock only and never trusted for
// ordering.
type Message struct {
	ID        int64
	ChannelID int64
	Role      Role
	Username  string
	Content   string
	Timestamp time.Time
}

// Quote is a curated highlight saved from a channel.
type Quote struct {
	ID        int64
	ChannelID int64
	MessageID int64
	Username  string
	Content   string
	QuotedBy  string
	Timestamp time.Time
}

// Milestone records the last time a tracked per-user event fired.
type Milestone struct {
	UserID      int64
	Username    string
	LastEventAt time.Time
}

// Store is the single owner of all persisted history state. Every operation
// opens its own statement; there is no cross-operation transaction.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store on top of an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Append inserts one message row. The row id is assigned by the database
// and is the sole source of conversational order.
func (s *Store) Append(channelID int64, role Role, username, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}
	if username == "" {
		return errors.New("append: empty username")
	}
	if content == "" {
		return errors.New("append: empty content")
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (channel_id, role, username, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		channelID, string(role), username, content, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns the last `limit` messages for the channel in chronological
// order (oldest first).
func (s *Store) Recent(channelID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	msgs, err := s.queryMessages(
		`SELECT id, channel_id, role, username, content, timestamp
		 FROM messages WHERE channel_id = ? ORDER BY id DESC LIMIT ?`,
		channelID, limit,
	)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// Search returns up to `limit` messages whose content contains the query,
// case-insensitive, most recent first.
func (s *Store) Search(channelID int64, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	return s.queryMessages(
		`SELECT id, channel_id, role, username, content, timestamp
		 FROM messages
		 WHERE channel_id = ? AND instr(lower(content), lower(?)) > 0
		 ORDER BY id DESC LIMIT ?`,
		channelID, query, limit,
	)
}

// MessagesAfterUserLast returns every message strictly newer than the given
// user's most recent message in the channel, oldest first. A user with no
// prior message yields an empty result.
func (s *Store) MessagesAfterUserLast(channelID int64, username string) ([]Message, error) {
	var last sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(id) FROM messages WHERE channel_id = ? AND username = ?`,
		channelID, username,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("find last message of %s: %w", username, err)
	}
	if !last.Valid {
		return nil, nil
	}
	return s.queryMessages(
		`SELECT id, channel_id, role, username, content, timestamp
		 FROM messages WHERE channel_id = ? AND id > ? ORDER BY id ASC`,
		channelID, last.Int64,
	)
}

// MessagesInTimeframe returns all messages for the channel within the named
// timeframe, oldest first. An unknown timeframe yields an empty result.
func (s *Store) MessagesInTimeframe(channelID int64, tf Timeframe) ([]Message, error) {
	if tf == TimeframeAll {
		return s.queryMessages(
			`SELECT id, channel_id, role, username, content, timestamp
			 FROM messages WHERE channel_id = ? ORDER BY id ASC`,
			channelID,
		)
	}
	start, end, ok := tf.Bounds(s.now())
	if !ok {
		return nil, nil
	}
	if end.IsZero() {
		return s.queryMessages(
			`SELECT id, channel_id, role, username, content, timestamp
			 FROM messages WHERE channel_id = ? AND timestamp >= ? ORDER BY id ASC`,
			channelID, start.Unix(),
		)
	}
	return s.queryMessages(
		`SELECT id, channel_id, role, username, content, timestamp
		 FROM messages WHERE channel_id = ? AND timestamp >= ? AND timestamp < ? ORDER BY id ASC`,
		channelID, start.Unix(), end.Unix(),
	)
}

// Count returns the number of messages in the channel within the given
// period.
func (s *Store) Count(channelID int64, p Period) (int, error) {
	var (
		count int
		err   error
	)
	switch {
	case p.Kind == PeriodAll:
		err = s.db.QueryRow(
			`SELECT COUNT(*) FROM messages WHERE channel_id = ?`, channelID,
		).Scan(&count)
	case p.Kind == PeriodYesterday:
		start, end, _ := TimeframeYesterday.Bounds(s.now())
		err = s.db.QueryRow(
			`SELECT COUNT(*) FROM messages WHERE channel_id = ? AND timestamp >= ? AND timestamp < ?`,
			channelID, start.Unix(), end.Unix(),
		).Scan(&count)
	case p.Days == 0:
		// Zero days means "since local midnight today", not a 0-length window.
		start, _, _ := TimeframeToday.Bounds(s.now())
		err = s.db.QueryRow(
			`SELECT COUNT(*) FROM messages WHERE channel_id = ? AND timestamp >= ?`,
			channelID, start.Unix(),
		).Scan(&count)
	default:
		cutoff := s.now().Add(-time.Duration(p.Days) * 24 * time.Hour)
		err = s.db.QueryRow(
			`SELECT COUNT(*) FROM messages WHERE channel_id = ? AND timestamp >= ?`,
			channelID, cutoff.Unix(),
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// TotalMessages returns the number of message rows across all channels.
func (s *Store) TotalMessages() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count all messages: %w", err)
	}
	return count, nil
}

// Personality returns the channel's system-prompt override, or "" if the
// channel has none.
func (s *Store) Personality(channelID int64) (string, error) {
	var text string
	err := s.db.QueryRow(
		`SELECT personality FROM personalities WHERE channel_id = ?`, channelID,
	).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get personality: %w", err)
	}
	return text, nil
}

// SetPersonality stores or replaces the channel's system-prompt override.
func (s *Store) SetPersonality(channelID int64, text string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO personalities (channel_id, personality) VALUES (?, ?)`,
		channelID, text,
	)
	if err != nil {
		return fmt.Errorf("set personality: %w", err)
	}
	return nil
}

// AddQuote saves a curated highlight. Quotes are append-only.
func (s *Store) AddQuote(channelID, messageID int64, username, content, quotedBy string) error {
	_, err := s.db.Exec(
		`INSERT INTO quotes (channel_id, message_id, username, content, quoted_by, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		channelID, messageID, username, content, quotedBy, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// Quotes returns up to `limit` quotes for the channel, most recent first.
func (s *Store) Quotes(channelID int64, limit int) ([]Quote, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	rows, err := s.db.Query(
		`SELECT id, channel_id, message_id, username, content, quoted_by, timestamp
		 FROM quotes WHERE channel_id = ? ORDER BY id DESC LIMIT ?`,
		channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var (
			q  Quote
			ts int64
		)
		if err := rows.Scan(&q.ID, &q.ChannelID, &q.MessageID, &q.Username, &q.Content, &q.QuotedBy, &ts); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.Timestamp = time.Unix(ts, 0)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Milestone returns the user's tracked event row, or ErrNotFound.
func (s *Store) Milestone(userID int64) (Milestone, error) {
	var (
		m  Milestone
		ts int64
	)
	err := s.db.QueryRow(
		`SELECT user_id, username, last_event_at FROM milestones WHERE user_id = ?`, userID,
	).Scan(&m.UserID, &m.Username, &ts)
	if err == sql.ErrNoRows {
		return Milestone{}, ErrNotFound
	}
	if err != nil {
		return Milestone{}, fmt.Errorf("get milestone: %w", err)
	}
	m.LastEventAt = time.Unix(ts, 0)
	return m, nil
}

// TouchMilestone records "the event fired now" for the user, overwriting
// any previous row.
func (s *Store) TouchMilestone(userID int64, username string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO milestones (user_id, username, last_event_at) VALUES (?, ?, ?)`,
		userID, username, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("touch milestone: %w", err)
	}
	return nil
}

// LastImportedID returns the import watermark for the channel. The second
// return value reports whether a watermark exists.
func (s *Store) LastImportedID(channelID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT last_message_id FROM import_state WHERE channel_id = ?`, channelID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get import watermark: %w", err)
	}
	return id, true, nil
}

// SetLastImportedID upserts the import watermark for the channel.
func (s *Store) SetLastImportedID(channelID, messageID int64) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO import_state (channel_id, last_message_id) VALUES (?, ?)`,
		channelID, messageID,
	)
	if err != nil {
		return fmt.Errorf("set import watermark: %w", err)
	}
	return nil
}

func (s *Store) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m    Message
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &m.ChannelID, &role, &m.Username, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		m.Timestamp = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
