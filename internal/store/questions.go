package store

import (
	"database/sql"
	"fmt"
	"time"
)

const questionColumns = `token, group_id, topic_id, COALESCE(duty_userid, 0), employee_userid,
	COALESCE(question_text,''), start_time, end_time, COALESCE(clever_link,''),
	quality_employee, quality_duty, COALESCE(status,''), allow_return, activity_status_enabled`

// AddQuestion inserts a new question row.
func (s *Store) AddQuestion(q *Question) error {
	return withRetry(func() error {
		var duty any
		if q.DutyUserID != 0 {
			duty = q.DutyUserID
		}
		_, err := s.db.Exec(`
		INSERT INTO questions (token, group_id, topic_id, duty_userid, employee_userid, question_text, start_time, end_time, clever_link, quality_employee, quality_duty, status, allow_return, activity_status_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.Token, q.GroupID, q.TopicID, duty, q.EmployeeUserID,
			q.QuestionText, q.StartTime, q.EndTime, q.CleverLink,
			q.QualityEmployee, q.QualityDuty, q.Status, q.AllowReturn, q.ActivityStatusEnabled,
		)
		if err != nil {
			return fmt.Errorf("add question: %w", err)
		}
		return nil
	})
}

// GetQuestion returns a question by token.
func (s *Store) GetQuestion(token string) (*Question, error) {
	var q *Question
	err := withRetry(func() error {
		row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE token = ?`, token)
		var err error
		q, err = scanQuestion(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestionByGroupTopic returns the question living in the given forum topic.
func (s *Store) GetQuestionByGroupTopic(groupID, topicID int64) (*Question, error) {
	var q *Question
	err := withRetry(func() error {
		row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE group_id = ? AND topic_id = ?`, groupID, topicID)
		var err error
		q, err = scanQuestion(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetActiveQuestionByEmployee returns the employee's open or in-progress
// question, or ErrNotFound.
func (s *Store) GetActiveQuestionByEmployee(employeeID int64) (*Question, error) {
	var q *Question
	err := withRetry(func() error {
		row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions
			WHERE employee_userid = ? AND status IN (?, ?) LIMIT 1`,
			employeeID, StatusOpen, StatusInProgress)
		var err error
		q, err = scanQuestion(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ClaimQuestion assigns the duty and moves the question to in_progress in a
// single statement, so a crash cannot leave an owner on an open question.
func (s *Store) ClaimQuestion(token string, dutyID int64) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET duty_userid = ?, status = ? WHERE token = ?`,
			dutyID, StatusInProgress, token)
		return err
	})
}

// CloseQuestion sets the closed status and the end time atomically.
func (s *Store) CloseQuestion(token string, end time.Time) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET status = ?, end_time = ? WHERE token = ?`,
			StatusClosed, end, token)
		return err
	})
}

// ReopenQuestion returns a question to open: the duty and the end time are
// cleared in the same statement.
func (s *Store) ReopenQuestion(token string) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET status = ?, duty_userid = NULL, end_time = NULL WHERE token = ?`,
			StatusOpen, token)
		return err
	})
}

// SetQualityEmployee records the asker's post-close rating.
func (s *Store) SetQualityEmployee(token string, good bool) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET quality_employee = ? WHERE token = ?`, good, token)
		return err
	})
}

// SetQualityDuty records the duty's post-close rating.
func (s *Store) SetQualityDuty(token string, good bool) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET quality_duty = ? WHERE token = ?`, good, token)
		return err
	})
}

// SetAllowReturn flips whether the asker may reopen within the return window.
func (s *Store) SetAllowReturn(token string, allow bool) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET allow_return = ? WHERE token = ?`, allow, token)
		return err
	})
}

// SetActivityStatusEnabled sets the per-question activity override.
// nil restores the group default.
func (s *Store) SetActivityStatusEnabled(token string, enabled *bool) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE questions SET activity_status_enabled = ? WHERE token = ?`, enabled, token)
		return err
	})
}

// DeleteQuestion removes a question row.
func (s *Store) DeleteQuestion(token string) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM questions WHERE token = ?`, token)
		return err
	})
}

// ListActiveQuestions returns all open and in-progress questions.
func (s *Store) ListActiveQuestions() ([]Question, error) {
	return s.listQuestions(`SELECT `+questionColumns+` FROM questions
		WHERE status IN (?, ?) ORDER BY start_time ASC`, StatusOpen, StatusInProgress)
}

// ListAvailableToReturn returns up to limit of the employee's closed
// questions still inside the return window and marked returnable, newest
// first.
func (s *Store) ListAvailableToReturn(employeeID int64, window time.Duration, limit int) ([]Question, error) {
	cutoff := time.Now().Add(-window)
	return s.listQuestions(`SELECT `+questionColumns+` FROM questions
		WHERE employee_userid = ? AND status = ? AND allow_return = 1 AND end_time >= ?
		ORDER BY end_time DESC LIMIT ?`, employeeID, StatusClosed, cutoff, limit)
}

// ListQuestionsOlderThan returns questions whose start time is older than
// the given number of days.
func (s *Store) ListQuestionsOlderThan(days int) ([]Question, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	return s.listQuestions(`SELECT `+questionColumns+` FROM questions
		WHERE start_time < ? ORDER BY start_time ASC`, cutoff)
}

// ListQuestionsByMonth returns all questions started in the given month.
// A non-zero groupID narrows the result to that forum group.
func (s *Store) ListQuestionsByMonth(month time.Month, year int, groupID int64) ([]Question, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 1, 0)
	query := `SELECT ` + questionColumns + ` FROM questions WHERE start_time >= ? AND start_time < ?`
	args := []any{from, to}
	if groupID != 0 {
		query += ` AND group_id = ?`
		args = append(args, groupID)
	}
	return s.listQuestions(query+` ORDER BY start_time ASC`, args...)
}

// CountByEmployeeSince returns how many questions the employee asked since
// the given time.
func (s *Store) CountByEmployeeSince(employeeID int64, since time.Time) (int, error) {
	var count int
	err := withRetry(func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE employee_userid = ? AND start_time >= ?`,
			employeeID, since).Scan(&count)
	})
	return count, err
}

// CountByDutySince returns how many questions the duty handled since the
// given time.
func (s *Store) CountByDutySince(dutyID int64, since time.Time) (int, error) {
	var count int
	err := withRetry(func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE duty_userid = ? AND start_time >= ?`,
			dutyID, since).Scan(&count)
	})
	return count, err
}

func (s *Store) listQuestions(query string, args ...any) ([]Question, error) {
	var out []Question
	err := withRetry(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			q, err := scanQuestionRow(rows)
			if err != nil {
				return err
			}
			out = append(out, *q)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row *sql.Row) (*Question, error) {
	q, err := scanQuestionRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func scanQuestionRow(r rowScanner) (*Question, error) {
	var q Question
	var startTime, endTime sql.NullTime
	var qualityEmployee, qualityDuty, activityEnabled sql.NullBool
	err := r.Scan(
		&q.Token, &q.GroupID, &q.TopicID, &q.DutyUserID, &q.EmployeeUserID,
		&q.QuestionText, &startTime, &endTime, &q.CleverLink,
		&qualityEmployee, &qualityDuty, &q.Status, &q.AllowReturn, &activityEnabled,
	)
	if err != nil {
		return nil, err
	}
	if startTime.Valid {
		q.StartTime = &startTime.Time
	}
	if endTime.Valid {
		q.EndTime = &endTime.Time
	}
	if qualityEmployee.Valid {
		q.QualityEmployee = &qualityEmployee.Bool
	}
	if qualityDuty.Valid {
		q.QualityDuty = &qualityDuty.Bool
	}
	if activityEnabled.Valid {
		q.ActivityStatusEnabled = &activityEnabled.Bool
	}
	return &q, nil
}

// StatusCounts returns the number of questions per status.
func (s *Store) StatusCounts() (map[string]int64, error) {
	counts := map[string]int64{}
	err := withRetry(func() error {
		rows, err := s.db.Query(`SELECT status, COUNT(*) FROM questions GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var n int64
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			counts[status] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	return counts, nil
}
