// Package relay mirrors messages between an asker's private chat and the
// question's forum topic, recording every copy as a message pair so that
// replies and edits can be linked back later.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stpbots/questioner/internal/bus"
	"github.com/stpbots/questioner/internal/config"
	"github.com/stpbots/questioner/internal/directory"
	"github.com/stpbots/questioner/internal/engine"
	"github.com/stpbots/questioner/internal/guard"
	"github.com/stpbots/questioner/internal/messenger"
	"github.com/stpbots/questioner/internal/scheduler"
	"github.com/stpbots/questioner/internal/store"
)

// warningTTL is how long the premium-emoji notice stays before deletion.
const warningTTL = 30 * time.Second

// Options configures a Relay.
type Options struct {
	Store     *store.Store
	Directory *directory.Directory
	Engine    *engine.Engine
	Messenger messenger.Messenger
	Scheduler *scheduler.Scheduler
	Config    *config.Config
}

// Relay routes messages between private chats and forum topics.
type Relay struct {
	store *store.Store
	dir   *directory.Directory
	eng   *engine.Engine
	msgr  messenger.Messenger
	sched *scheduler.Scheduler
	cfg   *config.Config
}

// New creates a Relay.
func New(opts Options) *Relay {
	return &Relay{
		store: opts.Store,
		dir:   opts.Directory,
		eng:   opts.Engine,
		msgr:  opts.Messenger,
		sched: opts.Scheduler,
		cfg:   opts.Config,
	}
}

// extractCleverLink returns the first knowledge-base link in the text, or
// empty when there is none.
func extractCleverLink(text string) string {
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, engine.CleverLinkPrefix) {
			return word
		}
	}
	return ""
}

// HandleUserMessage processes a message from an employee's private chat.
// Without an active question it opens a new one; with one it relays the
// message into the question's topic.
func (r *Relay) HandleUserMessage(ctx context.Context, ev bus.Event) {
	if ev.FromBot {
		return
	}

	q, err := r.store.GetActiveQuestionByEmployee(ev.SenderID)
	if err == store.ErrNotFound {
		if strings.TrimSpace(ev.Text) == engine.SentinelReturnMenu {
			if err := r.eng.ReturnMenu(ctx, ev.SenderID); err != nil {
				slog.Error("Relay: return menu failed", "sender", ev.SenderID, "error", err)
			}
			return
		}
		if _, err := r.eng.Ask(ctx, ev.SenderID, ev.Text, extractCleverLink(ev.Text)); err != nil {
			r.notifyDenied(ctx, ev.SenderID, err)
		}
		return
	}
	if err != nil {
		slog.Error("Relay: active question lookup failed", "sender", ev.SenderID, "error", err)
		return
	}

	if strings.TrimSpace(ev.Text) == engine.SentinelCloseQuestion {
		if err := r.eng.Close(ctx, ev.SenderID, q.Token); err != nil {
			r.notifyDenied(ctx, ev.SenderID, err)
		}
		return
	}

	unlock := r.eng.LockToken(q.Token)
	defer unlock()

	replyTo := r.topicReplyTarget(ev)
	copyID, err := r.msgr.CopyMessage(ctx, ev.ChatID, ev.MessageID, q.GroupID, q.TopicID, replyTo)
	if err != nil {
		slog.Error("Relay: copy to topic failed", "token", q.Token, "error", err)
		return
	}
	if ev.HasCustomEmoji {
		r.sendEphemeralWarning(ctx, ev)
	}

	pair := &store.MessagePair{
		UserChatID:     ev.ChatID,
		UserMessageID:  ev.MessageID,
		TopicChatID:    q.GroupID,
		TopicMessageID: copyID,
		TopicThreadID:  q.TopicID,
		QuestionToken:  q.Token,
		Direction:      store.DirectionUserToTopic,
	}
	if err := r.store.AddPair(pair); err != nil {
		slog.Error("Relay: pair insert failed", "token", q.Token, "error", err)
	}
	r.eng.TouchActivity(q)
}

// HandleTopicMessage processes a message inside a question topic. Messages
// from employees who are not duty are removed; the duty's first message
// claims the question.
func (r *Relay) HandleTopicMessage(ctx context.Context, ev bus.Event) {
	if ev.FromBot || ev.ThreadID == 0 {
		return
	}

	q, err := r.store.GetQuestionByGroupTopic(ev.ChatID, ev.ThreadID)
	if err == store.ErrNotFound {
		r.closeOrphanTopic(ctx, ev)
		return
	}
	if err != nil {
		slog.Error("Relay: topic lookup failed", "group", ev.ChatID, "topic", ev.ThreadID, "error", err)
		return
	}

	actor, err := r.dir.Get(ctx, ev.SenderID)
	if err != nil {
		slog.Warn("Relay: unknown sender in topic", "sender", ev.SenderID, "token", q.Token)
		return
	}
	if err := guard.CanSpeakInTopic(actor, q); err != nil {
		r.warnInTopic(ctx, ev, err)
		return
	}

	if strings.TrimSpace(ev.Text) == engine.SentinelCloseQuestion {
		if err := r.eng.Close(ctx, ev.SenderID, q.Token); err != nil {
			slog.Warn("Relay: close by sentinel denied", "token", q.Token, "error", err)
		}
		return
	}

	if q.Status == store.StatusOpen {
		if err := r.eng.Pickup(ctx, actor, q.Token); err != nil {
			slog.Warn("Relay: pickup denied", "token", q.Token, "duty", actor.ChatID, "error", err)
			return
		}
		q.DutyUserID = actor.ChatID
		q.Status = store.StatusInProgress
	}

	unlock := r.eng.LockToken(q.Token)
	defer unlock()

	replyTo := r.userReplyTarget(ev)
	copyID, err := r.msgr.CopyMessage(ctx, ev.ChatID, ev.MessageID, q.EmployeeUserID, 0, replyTo)
	if err != nil {
		slog.Error("Relay: copy to user failed", "token", q.Token, "error", err)
		return
	}

	pair := &store.MessagePair{
		UserChatID:     q.EmployeeUserID,
		UserMessageID:  copyID,
		TopicChatID:    ev.ChatID,
		TopicMessageID: ev.MessageID,
		TopicThreadID:  ev.ThreadID,
		QuestionToken:  q.Token,
		Direction:      store.DirectionTopicToUser,
	}
	if err := r.store.AddPair(pair); err != nil {
		slog.Error("Relay: pair insert failed", "token", q.Token, "error", err)
	}
	r.eng.TouchActivity(q)
}

// HandleEdit mirrors an edited message to its copy on the other side,
// appending an edit annotation. Edits on closed questions are dropped and
// edits never restart the inactivity timers.
func (r *Relay) HandleEdit(ctx context.Context, ev bus.Event) {
	pair, err := r.store.FindPair(ev.ChatID, ev.MessageID)
	if err == store.ErrNotFound {
		return
	}
	if err != nil {
		slog.Error("Relay: edit pair lookup failed", "chat", ev.ChatID, "msg", ev.MessageID, "error", err)
		return
	}

	q, err := r.store.GetQuestion(pair.QuestionToken)
	if err != nil {
		return
	}
	if q.Status == store.StatusClosed {
		return
	}

	now := time.Now()
	if ev.ChatID == pair.UserChatID && ev.MessageID == pair.UserMessageID {
		// The asker edited; update the topic copy.
		text := ev.Text + engine.EditedBySpecialistNote(now)
		if err := r.msgr.EditMessage(ctx, pair.TopicChatID, pair.TopicMessageID, text); err != nil {
			slog.Error("Relay: topic edit failed", "token", q.Token, "error", err)
		}
		return
	}
	// The duty edited; update the private copy.
	text := ev.Text + engine.EditedByDutyNote(now)
	if err := r.msgr.EditMessage(ctx, pair.UserChatID, pair.UserMessageID, text); err != nil {
		slog.Error("Relay: user edit failed", "token", q.Token, "error", err)
	}
}

// topicReplyTarget maps a private-chat reply to the matching topic message.
func (r *Relay) topicReplyTarget(ev bus.Event) int64 {
	if ev.ReplyToMessageID == 0 {
		return 0
	}
	pair, err := r.store.FindPairByUserMessage(ev.ChatID, ev.ReplyToMessageID)
	if err != nil {
		return 0
	}
	return pair.TopicMessageID
}

// userReplyTarget maps a topic reply to the matching private-chat message.
func (r *Relay) userReplyTarget(ev bus.Event) int64 {
	if ev.ReplyToMessageID == 0 {
		return 0
	}
	pair, err := r.store.FindPairByTopicMessage(ev.ChatID, ev.ReplyToMessageID)
	if err != nil {
		return 0
	}
	return pair.UserMessageID
}

// sendEphemeralWarning replies to the offending message and schedules the
// reply's deletion. The one-shot is keyed by chat and message id so warnings
// for different messages never replace each other.
func (r *Relay) sendEphemeralWarning(ctx context.Context, ev bus.Event) {
	id, err := r.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:    ev.ChatID,
		ReplyTo: ev.MessageID,
		Text:    engine.PremiumEmojiWarning(ev.CustomEmojis),
	})
	if err != nil {
		slog.Error("Relay: emoji warning failed", "chat", ev.ChatID, "error", err)
		return
	}
	chat := ev.ChatID
	r.sched.RunAfter(fmt.Sprintf("warn:%d:%d", chat, ev.MessageID), warningTTL, func(ctx context.Context) {
		if err := r.msgr.DeleteMessage(ctx, chat, id); err != nil {
			slog.Error("Relay: warning cleanup failed", "chat", chat, "error", err)
		}
	})
}

// warnInTopic replies to a refused topic message with the refusal reason.
// The message itself is left in place and never relayed.
func (r *Relay) warnInTopic(ctx context.Context, ev bus.Event, cause error) {
	var denial *guard.Denial
	reason := guard.ErrNotYourChat.Text
	if errors.As(cause, &denial) {
		reason = denial.Text
	}
	if _, err := r.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:    ev.ChatID,
		Thread:  ev.ThreadID,
		ReplyTo: ev.MessageID,
		Text:    engine.TopicWarning(reason),
	}); err != nil {
		slog.Error("Relay: topic warning failed", "group", ev.ChatID, "topic", ev.ThreadID, "error", err)
	}
}

// closeOrphanTopic handles a topic message with no matching question row:
// the topic gets an error notice and is closed best-effort.
func (r *Relay) closeOrphanTopic(ctx context.Context, ev bus.Event) {
	slog.Error("Relay: no question for topic, closing", "group", ev.ChatID, "topic", ev.ThreadID)
	if _, err := r.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:   ev.ChatID,
		Thread: ev.ThreadID,
		Text:   engine.OrphanTopicNotice(),
	}); err != nil {
		slog.Error("Relay: orphan notice failed", "group", ev.ChatID, "topic", ev.ThreadID, "error", err)
	}
	if err := r.msgr.CloseTopic(ctx, ev.ChatID, ev.ThreadID); err != nil {
		slog.Error("Relay: orphan topic close failed", "group", ev.ChatID, "topic", ev.ThreadID, "error", err)
	}
}

// notifyDenied forwards a guard denial text to the user; unexpected errors
// are only logged.
func (r *Relay) notifyDenied(ctx context.Context, chat int64, err error) {
	var denial *guard.Denial
	if !errors.As(err, &denial) {
		slog.Error("Relay: operation failed", "chat", chat, "error", err)
		return
	}
	if _, err := r.msgr.SendMessage(ctx, messenger.SendOptions{Chat: chat, Text: denial.Text}); err != nil {
		slog.Error("Relay: denial notice failed", "chat", chat, "error", err)
	}
}
