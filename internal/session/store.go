// Package session persists conversation trajectories, keyed by user.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/scribeagent/scribe/internal/message"
)

// Store is a SQLite-backed trajectory store. Each user has one
// conversation; messages are stored one row each in trajectory order.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the session database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		user_id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (user_id) REFERENCES conversations(user_id) ON DELETE CASCADE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_user_position ON messages(user_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored trajectory for a user, oldest first. A user
// with no history gets an empty slice, not an error.
func (s *Store) Load(ctx context.Context, userID string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM messages
		WHERE user_id = ?
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []message.Message{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg message.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("decode stored message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Save replaces the user's stored trajectory with msgs. Every message is
// normalized to the canonical shape before it is written.
func (s *Store) Save(ctx context.Context, userID string, msgs []message.Message) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at
	`, userID, now, now); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	for i, msg := range msgs {
		normalized := message.NormalizeForStorage(msg)
		payload, err := json.Marshal(normalized)
		if err != nil {
			return fmt.Errorf("encode message %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, user_id, position, role, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), userID, i, string(normalized.Role), string(payload), now); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Reset deletes the user's conversation and all of its messages.
func (s *Store) Reset(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats reports store-level counts for the health endpoint.
func (s *Store) Stats(ctx context.Context) map[string]any {
	var convCount, msgCount int
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&convCount)
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&msgCount)
	return map[string]any{
		"conversations": convCount,
		"messages":      msgCount,
		"storage":       "sqlite",
	}
}
