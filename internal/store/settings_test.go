package store

import "testing"

func TestGetOrCreateSettingsDefaults(t *testing.T) {
	s := newTestStore(t)

	g, err := s.GetOrCreateSettings(-100, nil)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if !g.Bool(SettingAskCleverLink, false) {
		t.Error("expected ask_clever_link default true")
	}
	if !g.Bool(SettingActivityStatus, false) {
		t.Error("expected activity_status default true")
	}
	if g.Int(SettingActivityWarnMinutes, 0) != 5 {
		t.Errorf("expected warn minutes 5, got %d", g.Int(SettingActivityWarnMinutes, 0))
	}
	if g.Int(SettingActivityCloseMinutes, 0) != 10 {
		t.Errorf("expected close minutes 10, got %d", g.Int(SettingActivityCloseMinutes, 0))
	}

	// Second call must return the same row, not recreate it.
	again, err := s.GetOrCreateSettings(-100, nil)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if again.ID != g.ID {
		t.Errorf("expected same row, got %d and %d", g.ID, again.ID)
	}
}

func TestUpdateSettingsKey(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateSettingsKey(-200, SettingActivityStatus, false); err != nil {
		t.Fatalf("update key: %v", err)
	}
	g, err := s.GetSettings(-200)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if g.Bool(SettingActivityStatus, true) {
		t.Error("expected activity_status false")
	}
	// Untouched defaults survive the merge.
	if !g.Bool(SettingAskCleverLink, false) {
		t.Error("expected ask_clever_link preserved")
	}
}

func TestUpdateSettingsMerge(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateSettings(-300, map[string]any{
		SettingEmojiOpen:   "5312016608254762256",
		SettingEmojiClosed: "5312241539987020022",
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	g, _ := s.GetSettings(-300)
	if g.String(SettingEmojiOpen, "") != "5312016608254762256" {
		t.Errorf("unexpected emoji_open: %q", g.String(SettingEmojiOpen, ""))
	}

	err = s.UpdateSettings(-300, map[string]any{SettingEmojiOpen: "123"})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	g, _ = s.GetSettings(-300)
	if g.String(SettingEmojiOpen, "") != "123" {
		t.Errorf("expected overwritten emoji_open, got %q", g.String(SettingEmojiOpen, ""))
	}
	if g.String(SettingEmojiClosed, "") != "5312241539987020022" {
		t.Error("expected emoji_closed preserved")
	}
}

func TestBulkUpdateSettingsKey(t *testing.T) {
	s := newTestStore(t)

	groups := []int64{-1, -2, -3}
	if err := s.BulkUpdateSettingsKey(groups, SettingActivityWarnMinutes, 7); err != nil {
		t.Fatalf("bulk update: %v", err)
	}
	for _, gid := range groups {
		g, err := s.GetSettings(gid)
		if err != nil {
			t.Fatalf("get settings %d: %v", gid, err)
		}
		if g.Int(SettingActivityWarnMinutes, 0) != 7 {
			t.Errorf("group %d: expected warn minutes 7, got %d", gid, g.Int(SettingActivityWarnMinutes, 0))
		}
	}
}
