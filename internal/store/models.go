package store

import "time"

// Question statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

// Pair directions.
const (
	DirectionUserToTopic = "user_to_topic"
	DirectionTopicToUser = "topic_to_user"
)

// Question is one question row, keyed by token.
type Question struct {
	Token                 string
	GroupID               int64
	TopicID               int64
	DutyUserID            int64 // 0 = unassigned
	EmployeeUserID        int64
	QuestionText          string
	StartTime             *time.Time
	EndTime               *time.Time
	CleverLink            string
	QualityEmployee       *bool
	QualityDuty           *bool
	Status                string
	AllowReturn           bool
	ActivityStatusEnabled *bool // nil = group default applies
}

// Active reports whether the question is still being worked.
func (q *Question) Active() bool {
	return q.Status == StatusOpen || q.Status == StatusInProgress
}

// MessagePair links an asker-side message to its mirror inside the topic.
type MessagePair struct {
	ID             int64
	UserChatID     int64
	UserMessageID  int64
	TopicChatID    int64
	TopicMessageID int64
	TopicThreadID  int64
	QuestionToken  string
	Direction      string
	CreatedAt      time.Time
}

// GroupSettings is the per-group settings row. Values holds the parsed
// JSON map.
type GroupSettings struct {
	ID         int64
	GroupID    int64
	Values     map[string]any
	LastUpdate time.Time
}

// Recognized settings keys.
const (
	SettingAskCleverLink        = "ask_clever_link"
	SettingActivityStatus       = "activity_status"
	SettingActivityWarnMinutes  = "activity_warn_minutes"
	SettingActivityCloseMinutes = "activity_close_minutes"
	SettingEmojiOpen            = "emoji_open"
	SettingEmojiInProgress      = "emoji_in_progress"
	SettingEmojiClosed          = "emoji_closed"
	SettingEmojiFired           = "emoji_fired"
)

// DefaultSettings returns the values map used when a group has no row yet.
func DefaultSettings() map[string]any {
	return map[string]any{
		SettingAskCleverLink:        true,
		SettingActivityStatus:       true,
		SettingActivityWarnMinutes:  5,
		SettingActivityCloseMinutes: 10,
	}
}

// Bool reads a boolean settings key, with a default when absent.
func (g *GroupSettings) Bool(key string, def bool) bool {
	if v, ok := g.Values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int reads an integer settings key, with a default when absent.
// JSON numbers decode as float64.
func (g *GroupSettings) Int(key string, def int) int {
	switch v := g.Values[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// String reads a string settings key, with a default when absent.
func (g *GroupSettings) String(key, def string) string {
	if v, ok := g.Values[key].(string); ok && v != "" {
		return v
	}
	return def
}
