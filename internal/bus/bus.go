// Package bus provides the async event bus between the messenger gateway
// and the question broker core.
package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event kinds.
const (
	KindUserMessage   = "user_message"   // private chat message from an employee
	KindTopicMessage  = "topic_message"  // message inside a forum topic
	KindEditedMessage = "edited_message" // edit on either side
	KindCallback      = "callback"       // inline keyboard press
	KindMemberUpdate  = "member_update"  // chat member status change
)

// Event is one inbound messenger event, tagged by Kind.
type Event struct {
	Kind      string    `json:"kind"`
	ChatID    int64     `json:"chat_id"`
	ThreadID  int64     `json:"thread_id,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	SenderID  int64     `json:"sender_id"`
	FromBot   bool      `json:"from_bot,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Callback fields.
	CallbackID   string `json:"callback_id,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
	CallbackMsg  int64  `json:"callback_msg,omitempty"`

	// Message extras.
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
	HasCustomEmoji   bool   `json:"has_custom_emoji,omitempty"`
	CustomEmojis     string `json:"custom_emojis,omitempty"`
}

// EventBus decouples the messenger gateway from the broker core.
type EventBus struct {
	events chan *Event
	quit   chan struct{}
	once   sync.Once
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		events: make(chan *Event, 100),
		quit:   make(chan struct{}),
	}
}

// Publish sends an event from the gateway to the core.
func (b *EventBus) Publish(evt *Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.events <- evt
}

// ErrStopped is returned by Consume after Stop.
var ErrStopped = errors.New("bus: stopped")

// Consume blocks until an event is available, the bus is stopped or the
// context is cancelled.
func (b *EventBus) Consume(ctx context.Context) (*Event, error) {
	select {
	case evt := <-b.events:
		return evt, nil
	case <-b.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of pending events.
func (b *EventBus) Size() int {
	return len(b.events)
}

// Stop signals consumers to exit. Safe to call more than once.
func (b *EventBus) Stop() {
	b.once.Do(func() { close(b.quit) })
}
