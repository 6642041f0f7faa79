package store

import (
	"database/sql"
	"fmt"
	"time"
)

const pairColumns = `id, user_chat_id, user_message_id, topic_chat_id, topic_message_id,
	COALESCE(topic_thread_id, 0), question_token, direction, created_at`

// AddPair records a relayed message pair.
func (s *Store) AddPair(p *MessagePair) error {
	return withRetry(func() error {
		var thread any
		if p.TopicThreadID != 0 {
			thread = p.TopicThreadID
		}
		res, err := s.db.Exec(`
		INSERT INTO messages_pairs (user_chat_id, user_message_id, topic_chat_id, topic_message_id, topic_thread_id, question_token, direction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
			p.UserChatID, p.UserMessageID, p.TopicChatID, p.TopicMessageID,
			thread, p.QuestionToken, p.Direction,
		)
		if err != nil {
			return fmt.Errorf("add pair: %w", err)
		}
		id, _ := res.LastInsertId()
		p.ID = id
		return nil
	})
}

// FindPairByUserMessage returns the pair recorded for a user-chat message.
func (s *Store) FindPairByUserMessage(chatID, messageID int64) (*MessagePair, error) {
	return s.getPair(`SELECT `+pairColumns+` FROM messages_pairs
		WHERE user_chat_id = ? AND user_message_id = ?`, chatID, messageID)
}

// FindPairByTopicMessage returns the pair recorded for a topic message.
func (s *Store) FindPairByTopicMessage(chatID, messageID int64) (*MessagePair, error) {
	return s.getPair(`SELECT `+pairColumns+` FROM messages_pairs
		WHERE topic_chat_id = ? AND topic_message_id = ?`, chatID, messageID)
}

// FindPair looks the message up on both sides of the index.
func (s *Store) FindPair(chatID, messageID int64) (*MessagePair, error) {
	p, err := s.FindPairByUserMessage(chatID, messageID)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.FindPairByTopicMessage(chatID, messageID)
}

// ListPairsByToken returns all pairs recorded for a question, oldest first.
func (s *Store) ListPairsByToken(token string) ([]MessagePair, error) {
	var out []MessagePair
	err := withRetry(func() error {
		rows, err := s.db.Query(`SELECT `+pairColumns+` FROM messages_pairs
			WHERE question_token = ? ORDER BY id ASC`, token)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var p MessagePair
			if err := rows.Scan(&p.ID, &p.UserChatID, &p.UserMessageID,
				&p.TopicChatID, &p.TopicMessageID, &p.TopicThreadID,
				&p.QuestionToken, &p.Direction, &p.CreatedAt); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	return out, nil
}

// DeletePairsOlderThan sweeps pairs past the retention window.
// Returns the number of deleted rows.
func (s *Store) DeletePairsOlderThan(days int) (int64, error) {
	var deleted int64
	err := withRetry(func() error {
		cutoff := time.Now().AddDate(0, 0, -days).UTC().Format("2006-01-02 15:04:05")
		res, err := s.db.Exec(`DELETE FROM messages_pairs WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// DeletePairsByToken removes all pairs for a question.
func (s *Store) DeletePairsByToken(token string) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM messages_pairs WHERE question_token = ?`, token)
		return err
	})
}

func (s *Store) getPair(query string, args ...any) (*MessagePair, error) {
	var p MessagePair
	err := withRetry(func() error {
		return s.db.QueryRow(query, args...).Scan(
			&p.ID, &p.UserChatID, &p.UserMessageID,
			&p.TopicChatID, &p.TopicMessageID, &p.TopicThreadID,
			&p.QuestionToken, &p.Direction, &p.CreatedAt,
		)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pair: %w", err)
	}
	return &p, nil
}

// CountPairs returns the number of stored message pairs.
func (s *Store) CountPairs() (int64, error) {
	var n int64
	err := withRetry(func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM messages_pairs`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count pairs: %w", err)
	}
	return n, nil
}
