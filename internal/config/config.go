// Package config provides configuration types and loading for questioner.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration struct.
// Top-level groups: Bot, Forums, Database, Redis, Questioner, Sheets, Journal.
type Config struct {
	Bot        BotConfig        `json:"bot"`
	Forums     ForumsConfig     `json:"forums"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Questioner QuestionerConfig `json:"questioner"`
	Sheets     SheetsConfig     `json:"sheets"`
	Journal    JournalConfig    `json:"journal"`
}

// ---------------------------------------------------------------------------
// Bot – messenger identity
// ---------------------------------------------------------------------------

// BotConfig groups messenger identity settings.
type BotConfig struct {
	Token    string `json:"token" envconfig:"BOT_TOKEN"`
	Division string `json:"division" envconfig:"DIVISION"`
	UseRedis bool   `json:"useRedis" envconfig:"USE_REDIS"`
}

// ---------------------------------------------------------------------------
// Forums – forum group identifiers per division
// ---------------------------------------------------------------------------

// ForumsConfig holds the forum group ids for the main and trainee flows
// of both supported divisions.
type ForumsConfig struct {
	NTPMainForumID    int64 `json:"ntpMainForumId" envconfig:"NTP_MAIN_FORUM_ID"`
	NTPTraineeForumID int64 `json:"ntpTraineeForumId" envconfig:"NTP_TRAINEE_FORUM_ID"`
	NCKMainForumID    int64 `json:"nckMainForumId" envconfig:"NCK_MAIN_FORUM_ID"`
	NCKTraineeForumID int64 `json:"nckTraineeForumId" envconfig:"NCK_TRAINEE_FORUM_ID"`
}

// MainForumID returns the main forum id for the given division.
func (f ForumsConfig) MainForumID(division string) int64 {
	if division == "НЦК" {
		return f.NCKMainForumID
	}
	return f.NTPMainForumID
}

// TraineeForumID returns the trainee forum id for the given division.
func (f ForumsConfig) TraineeForumID(division string) int64 {
	if division == "НЦК" {
		return f.NCKTraineeForumID
	}
	return f.NTPTraineeForumID
}

// ---------------------------------------------------------------------------
// Database – sqlite file locations
// ---------------------------------------------------------------------------

// DatabaseConfig groups database path settings. The questioner database
// holds questions, message pairs and per-group settings; the main database
// holds the read-only employee directory.
type DatabaseConfig struct {
	QuestionerPath string `json:"questionerPath" envconfig:"DB_QUESTIONER_PATH"`
	MainPath       string `json:"mainPath" envconfig:"DB_MAIN_PATH"`
}

// ---------------------------------------------------------------------------
// Redis – optional directory cache
// ---------------------------------------------------------------------------

// RedisConfig contains redis connection settings, used only when
// Bot.UseRedis is set.
type RedisConfig struct {
	Host     string `json:"host" envconfig:"REDIS_HOST"`
	Port     int    `json:"port" envconfig:"REDIS_PORT"`
	Password string `json:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `json:"db" envconfig:"REDIS_DB"`
}

// Addr returns the host:port pair for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ---------------------------------------------------------------------------
// Questioner – lifecycle behaviour
// ---------------------------------------------------------------------------

// QuestionerConfig groups question lifecycle settings. These are process-wide
// defaults; per-group settings rows may override the activity values.
type QuestionerConfig struct {
	AskCleverLink bool `json:"askCleverLink" envconfig:"ASK_CLEVER_LINK"`

	RemoveOldQuestions     bool `json:"removeOldQuestions" envconfig:"REMOVE_OLD_QUESTIONS"`
	RemoveOldQuestionsDays int  `json:"removeOldQuestionsDays" envconfig:"REMOVE_OLD_QUESTIONS_DAYS"`

	ActivityStatus       bool `json:"activityStatus" envconfig:"ACTIVITY_STATUS"`
	ActivityWarnMinutes  int  `json:"activityWarnMinutes" envconfig:"ACTIVITY_WARN_MINUTES"`
	ActivityCloseMinutes int  `json:"activityCloseMinutes" envconfig:"ACTIVITY_CLOSE_MINUTES"`
}

// WarnAfter returns the inactivity warning delay.
func (q QuestionerConfig) WarnAfter() time.Duration {
	return time.Duration(q.ActivityWarnMinutes) * time.Minute
}

// CloseAfter returns the inactivity auto-close delay.
func (q QuestionerConfig) CloseAfter() time.Duration {
	return time.Duration(q.ActivityCloseMinutes) * time.Minute
}

// ---------------------------------------------------------------------------
// Sheets – trainee roster spreadsheets (consumed by the directory helper)
// ---------------------------------------------------------------------------

// SheetsConfig holds the trainee spreadsheet identifiers. The core only
// parses and passes these through.
type SheetsConfig struct {
	NTPTraineeSpreadsheetID string `json:"ntpTraineeSpreadsheetId" envconfig:"NTP_TRAINEE_SPREADSHEET_ID"`
	NTPTraineeSheetName     string `json:"ntpTraineeSheetName" envconfig:"NTP_TRAINEE_SHEET_NAME"`
	NCKTraineeSpreadsheetID string `json:"nckTraineeSpreadsheetId" envconfig:"NCK_TRAINEE_SPREADSHEET_ID"`
	NCKTraineeSheetName     string `json:"nckTraineeSheetName" envconfig:"NCK_TRAINEE_SHEET_NAME"`
}

// ---------------------------------------------------------------------------
// Journal – lifecycle event journal via Kafka
// ---------------------------------------------------------------------------

// JournalConfig configures the optional lifecycle-event journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled" envconfig:"JOURNAL_ENABLED"`
	Brokers string `json:"brokers" envconfig:"JOURNAL_BROKERS"`
	Topic   string `json:"topic" envconfig:"JOURNAL_TOPIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Division: "НТП",
		},
		Database: DatabaseConfig{
			QuestionerPath: "questioner.db",
			MainPath:       "main.db",
		},
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Questioner: QuestionerConfig{
			AskCleverLink:          true,
			RemoveOldQuestions:     false,
			RemoveOldQuestionsDays: 14,
			ActivityStatus:         true,
			ActivityWarnMinutes:    5,
			ActivityCloseMinutes:   10,
		},
		Journal: JournalConfig{
			Enabled: false,
			Topic:   "questioner.lifecycle",
		},
	}
}

// Load builds the configuration from the process environment, after first
// loading any .env file candidates. Environment variables win over file
// values; defaults fill whatever is left unset.
func Load() (*Config, error) {
	LoadEnvFileCandidates()

	cfg := DefaultConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	if c.Questioner.ActivityWarnMinutes <= 0 {
		return fmt.Errorf("ACTIVITY_WARN_MINUTES must be positive, got %d", c.Questioner.ActivityWarnMinutes)
	}
	if c.Questioner.ActivityCloseMinutes <= c.Questioner.ActivityWarnMinutes {
		return fmt.Errorf("ACTIVITY_CLOSE_MINUTES (%d) must be greater than ACTIVITY_WARN_MINUTES (%d)",
			c.Questioner.ActivityCloseMinutes, c.Questioner.ActivityWarnMinutes)
	}
	if c.Questioner.RemoveOldQuestions && c.Questioner.RemoveOldQuestionsDays <= 0 {
		return fmt.Errorf("REMOVE_OLD_QUESTIONS_DAYS must be positive when REMOVE_OLD_QUESTIONS is set")
	}
	if c.Journal.Enabled && c.Journal.Brokers == "" {
		return fmt.Errorf("JOURNAL_BROKERS is required when JOURNAL_ENABLED is set")
	}
	return nil
}
