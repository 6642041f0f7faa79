package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetSettings returns the settings row for a group, or ErrNotFound.
func (s *Store) GetSettings(groupID int64) (*GroupSettings, error) {
	var g GroupSettings
	var raw string
	err := withRetry(func() error {
		return s.db.QueryRow(`SELECT id, group_id, COALESCE(values_json,'{}'), last_update
			FROM settings WHERE group_id = ?`, groupID).
			Scan(&g.ID, &g.GroupID, &raw, &g.LastUpdate)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &g.Values); err != nil {
		return nil, fmt.Errorf("decode settings for group %d: %w", groupID, err)
	}
	if g.Values == nil {
		g.Values = map[string]any{}
	}
	return &g, nil
}

// GetOrCreateSettings returns the group's settings, creating a row with the
// given defaults when none exists.
func (s *Store) GetOrCreateSettings(groupID int64, defaults map[string]any) (*GroupSettings, error) {
	g, err := s.GetSettings(groupID)
	if err == nil {
		return g, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	if defaults == nil {
		defaults = DefaultSettings()
	}
	raw, err := json.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	err = withRetry(func() error {
		_, err := s.db.Exec(`INSERT INTO settings (group_id, values_json, last_update)
			VALUES (?, ?, datetime('now'))
			ON CONFLICT(group_id) DO NOTHING`, groupID, string(raw))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}
	return s.GetSettings(groupID)
}

// UpdateSettings merges the given keys into the group's values map.
func (s *Store) UpdateSettings(groupID int64, values map[string]any) error {
	g, err := s.GetOrCreateSettings(groupID, nil)
	if err != nil {
		return err
	}
	for k, v := range values {
		g.Values[k] = v
	}
	raw, err := json.Marshal(g.Values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE settings SET values_json = ?, last_update = datetime('now')
			WHERE group_id = ?`, string(raw), groupID)
		return err
	})
}

// UpdateSettingsKey sets a single key for a group.
func (s *Store) UpdateSettingsKey(groupID int64, key string, value any) error {
	return s.UpdateSettings(groupID, map[string]any{key: value})
}

// BulkUpdateSettingsKey sets a single key across multiple groups.
func (s *Store) BulkUpdateSettingsKey(groupIDs []int64, key string, value any) error {
	for _, gid := range groupIDs {
		if err := s.UpdateSettingsKey(gid, key, value); err != nil {
			return fmt.Errorf("update settings for group %d: %w", gid, err)
		}
	}
	return nil
}
