// Package store persists questions, message pairs and per-group settings
// in a sqlite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store owns the questioner database. The lifecycle engine is the only
// mutator of question rows; the relay is the only mutator of pairs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the questioner database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open questioner db: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE questions ADD COLUMN allow_return BOOLEAN NOT NULL DEFAULT 1`)
	_, _ = db.Exec(`ALTER TABLE questions ADD COLUMN activity_status_enabled BOOLEAN`)
	_, _ = db.Exec(`ALTER TABLE messages_pairs ADD COLUMN topic_thread_id BIGINT`)
	_, _ = db.Exec(`ALTER TABLE messages_pairs ADD COLUMN direction TEXT NOT NULL DEFAULT 'user_to_topic'`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_questions_status ON questions(status)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_questions_employee ON questions(employee_userid)`)
	_, _ = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_group_topic ON questions(group_id, topic_id)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pairs_user_msg ON messages_pairs(user_chat_id, user_message_id)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pairs_topic_msg ON messages_pairs(topic_chat_id, topic_message_id)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pairs_token ON messages_pairs(question_token)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pairs_created ON messages_pairs(created_at)`)

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access (e.g. the directory).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is a transient "connection busy" class error
// worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "connection is busy")
}

// withRetry re-executes fn up to three times on busy-class errors.
// Other errors are surfaced immediately.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = fn()
		if !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	return err
}
