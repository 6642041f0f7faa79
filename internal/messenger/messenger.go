// Package messenger defines the capability set the question broker needs
// from the messenger platform. The real transport lives outside the core;
// everything here is expressed in chat, thread and message ids.
package messenger

import "context"

// Button is one interactive keyboard button. Exactly one of Callback or URL
// should be set.
type Button struct {
	Text     string `json:"text"`
	Callback string `json:"callback,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Keyboard is an inline keyboard layout, row-major.
type Keyboard struct {
	Rows [][]Button `json:"rows"`
}

// Row appends a row of buttons and returns the keyboard for chaining.
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// SendOptions describes an outgoing message.
type SendOptions struct {
	Chat           int64
	Thread         int64 // 0 = no thread
	Text           string
	Keyboard       *Keyboard
	ReplyTo        int64 // 0 = no reply
	DisablePreview bool
}

// Messenger is the abstract capability set consumed by the lifecycle engine
// and the relay. Implementations wrap a concrete bot API client.
type Messenger interface {
	// Forum topics.
	CreateTopic(ctx context.Context, group int64, name, iconEmojiID string) (int64, error)
	EditTopic(ctx context.Context, group, thread int64, name, iconEmojiID string) error
	CloseTopic(ctx context.Context, group, thread int64) error
	ReopenTopic(ctx context.Context, group, thread int64) error
	DeleteTopic(ctx context.Context, group, thread int64) error

	// Messages.
	SendMessage(ctx context.Context, opts SendOptions) (int64, error)
	CopyMessage(ctx context.Context, fromChat, fromMsg, toChat, toThread, replyTo int64) (int64, error)
	EditMessage(ctx context.Context, chat, msg int64, newText string) error
	DeleteMessage(ctx context.Context, chat, msg int64) error
	PinMessage(ctx context.Context, chat, msg int64, silent bool) error

	// Interactive controls.
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
