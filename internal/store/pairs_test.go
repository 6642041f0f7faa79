package store

import (
	"testing"
)

func TestPairRoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := &MessagePair{
		UserChatID:     111,
		UserMessageID:  5,
		TopicChatID:    -100200300,
		TopicMessageID: 98,
		TopicThreadID:  12,
		QuestionToken:  "tok-pair",
		Direction:      DirectionUserToTopic,
	}
	if err := s.AddPair(p); err != nil {
		t.Fatalf("add pair: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected pair ID assigned")
	}

	byUser, err := s.FindPairByUserMessage(111, 5)
	if err != nil {
		t.Fatalf("find by user message: %v", err)
	}
	if byUser.TopicMessageID != 98 || byUser.Direction != DirectionUserToTopic {
		t.Errorf("unexpected pair: %+v", byUser)
	}

	byTopic, err := s.FindPairByTopicMessage(-100200300, 98)
	if err != nil {
		t.Fatalf("find by topic message: %v", err)
	}
	if byTopic.UserMessageID != 5 {
		t.Errorf("unexpected pair: %+v", byTopic)
	}

	// FindPair tries both sides.
	either, err := s.FindPair(-100200300, 98)
	if err != nil {
		t.Fatalf("find pair: %v", err)
	}
	if either.ID != p.ID {
		t.Errorf("expected pair %d, got %d", p.ID, either.ID)
	}
}

func TestFindPairNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.FindPair(1, 2); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPairsByToken(t *testing.T) {
	s := newTestStore(t)

	for i := int64(1); i <= 3; i++ {
		p := &MessagePair{
			UserChatID:     111,
			UserMessageID:  i,
			TopicChatID:    -100,
			TopicMessageID: 100 + i,
			QuestionToken:  "tok-list",
			Direction:      DirectionTopicToUser,
		}
		if err := s.AddPair(p); err != nil {
			t.Fatalf("add pair %d: %v", i, err)
		}
	}

	pairs, err := s.ListPairsByToken("tok-list")
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	for i, p := range pairs {
		if p.UserMessageID != int64(i+1) {
			t.Errorf("pairs out of order at %d: %+v", i, p)
		}
	}
}

func TestDeletePairsOlderThan(t *testing.T) {
	s := newTestStore(t)

	p := &MessagePair{
		UserChatID: 1, UserMessageID: 1,
		TopicChatID: -1, TopicMessageID: 1,
		QuestionToken: "tok-sweep", Direction: DirectionUserToTopic,
	}
	if err := s.AddPair(p); err != nil {
		t.Fatalf("add pair: %v", err)
	}
	// Age the row past the retention window.
	if _, err := s.db.Exec(`UPDATE messages_pairs SET created_at = datetime('now', '-3 days') WHERE id = ?`, p.ID); err != nil {
		t.Fatalf("age pair: %v", err)
	}

	deleted, err := s.DeletePairsOlderThan(2)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
	if _, err := s.FindPair(1, 1); err != ErrNotFound {
		t.Fatalf("expected pair gone, got %v", err)
	}
}
