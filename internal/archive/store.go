// Package archive provides PostgreSQL-backed durable storage for chat
// messages. The in-process message store is a bounded FIFO; the archive keeps
// the full stream for analytics and audit. Rows are written by the archiver
// service, which consumes the NATS archive subject.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/consilience/collab-chat/internal/chat"
)

// Store manages archived messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an archive store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists one message. The (origin_id, sender, sent_at) unique
// constraint makes re-delivered NATS messages a no-op.
func (s *Store) Insert(ctx context.Context, msg chat.Message) error {
	const query = `
		INSERT INTO messages (origin_id, sender, channel, content, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (origin_id, sender, sent_at) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.Sender,
		msg.Channel,
		msg.Content,
		msg.Kind,
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// Recent returns the most recent limit messages for a channel in
// chronological order.
func (s *Store) Recent(ctx context.Context, channel string, limit int) ([]chat.Message, error) {
	const query = `
		SELECT origin_id, sender, channel, content, kind, sent_at
		FROM (
			SELECT origin_id, sender, channel, content, kind, sent_at
			FROM messages
			WHERE channel = $1
			ORDER BY sent_at DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC`

	rows, err := s.db.QueryContext(ctx, query, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query recent: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Channel, &m.Content, &m.Kind, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: rows: %w", err)
	}
	return out, nil
}

// CountSince returns the number of archived messages newer than the window.
func (s *Store) CountSince(ctx context.Context, window time.Duration) (int64, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages
		WHERE sent_at >= NOW() - $1::interval`

	var count int64
	err := s.db.QueryRowContext(ctx, query, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("archive: count since: %w", err)
	}
	return count, nil
}
