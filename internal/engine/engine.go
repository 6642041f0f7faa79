// Package engine owns the question lifecycle state machine. It is the only
// mutator of question rows; every transition runs under a per-token lock.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stpbots/questioner/internal/config"
	"github.com/stpbots/questioner/internal/directory"
	"github.com/stpbots/questioner/internal/guard"
	"github.com/stpbots/questioner/internal/messenger"
	"github.com/stpbots/questioner/internal/scheduler"
	"github.com/stpbots/questioner/internal/store"
)

// attentionInterval is how often an unclaimed question nudges the forum.
const attentionInterval = 5 * time.Minute

// removalDelay is the pause between closing a cancelled topic and deleting it.
const removalDelay = 30 * time.Second

// returnMenuLimit caps how many closed questions the reopen menu offers.
const returnMenuLimit = 5

// Recorder receives lifecycle transitions for the audit journal.
type Recorder interface {
	Record(ctx context.Context, event, token string, fields map[string]any)
}

// Options configures an Engine.
type Options struct {
	Store     *store.Store
	Directory *directory.Directory
	Scheduler *scheduler.Scheduler
	Messenger messenger.Messenger
	Config    *config.Config
	Journal   Recorder // optional
}

// Engine drives questions through their lifecycle.
type Engine struct {
	store   *store.Store
	dir     *directory.Directory
	sched   *scheduler.Scheduler
	msgr    messenger.Messenger
	cfg     *config.Config
	journal Recorder
	locks   *keyedMutex
}

// New creates an Engine.
func New(opts Options) *Engine {
	return &Engine{
		store:   opts.Store,
		dir:     opts.Directory,
		sched:   opts.Scheduler,
		msgr:    opts.Messenger,
		cfg:     opts.Config,
		journal: opts.Journal,
		locks:   newKeyedMutex(),
	}
}

// LockToken serializes external work (the relay) with lifecycle transitions.
func (e *Engine) LockToken(token string) func() {
	return e.locks.Lock(token)
}

func (e *Engine) record(ctx context.Context, event, token string, fields map[string]any) {
	if e.journal == nil {
		return
	}
	e.journal.Record(ctx, event, token, fields)
}

// settingsDefaults seeds a new settings row from the process configuration.
func (e *Engine) settingsDefaults() map[string]any {
	q := e.cfg.Questioner
	return map[string]any{
		store.SettingAskCleverLink:        q.AskCleverLink,
		store.SettingActivityStatus:       q.ActivityStatus,
		store.SettingActivityWarnMinutes:  q.ActivityWarnMinutes,
		store.SettingActivityCloseMinutes: q.ActivityCloseMinutes,
	}
}

func (e *Engine) groupSettings(groupID int64) (*store.GroupSettings, error) {
	return e.store.GetOrCreateSettings(groupID, e.settingsDefaults())
}

// activityEnabled resolves the per-question override against the group
// default.
func activityEnabled(q *store.Question, gs *store.GroupSettings) bool {
	if q.ActivityStatusEnabled != nil {
		return *q.ActivityStatusEnabled
	}
	return gs.Bool(store.SettingActivityStatus, true)
}

// armTimers installs or cancels the inactivity deadlines according to the
// question's effective activity setting.
func (e *Engine) armTimers(q *store.Question, gs *store.GroupSettings) {
	if !q.Active() || !activityEnabled(q, gs) {
		e.sched.Cancel(q.Token)
		return
	}
	warn := time.Duration(gs.Int(store.SettingActivityWarnMinutes, e.cfg.Questioner.ActivityWarnMinutes)) * time.Minute
	closeAfter := time.Duration(gs.Int(store.SettingActivityCloseMinutes, e.cfg.Questioner.ActivityCloseMinutes)) * time.Minute
	e.sched.Restart(q.Token, warn, closeAfter)
}

// Rearm rebuilds the scheduler map from the currently-active questions.
// Called once on process start.
func (e *Engine) Rearm(ctx context.Context) error {
	active, err := e.store.ListActiveQuestions()
	if err != nil {
		return fmt.Errorf("rearm: %w", err)
	}
	for i := range active {
		q := &active[i]
		gs, err := e.groupSettings(q.GroupID)
		if err != nil {
			slog.Warn("Rearm: settings lookup failed", "token", q.Token, "error", err)
			continue
		}
		e.armTimers(q, gs)
		if q.Status == store.StatusOpen {
			e.sched.InstallReminder(q.Token, attentionInterval)
		}
	}
	slog.Info("Scheduler rearmed from active questions", "count", len(active))
	return nil
}

// TouchActivity restarts the inactivity deadlines after asker or duty
// activity.
func (e *Engine) TouchActivity(q *store.Question) {
	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		slog.Warn("Touch: settings lookup failed", "token", q.Token, "error", err)
		return
	}
	e.armTimers(q, gs)
}

// Ask creates a new question for the asker: allocates a token, creates the
// forum topic, persists the row, pins the info message and starts the
// inactivity timers.
func (e *Engine) Ask(ctx context.Context, askerID int64, text, cleverLink string) (*store.Question, error) {
	actor, err := e.dir.Get(ctx, askerID)
	if err != nil {
		return nil, err
	}

	hasActive := true
	if _, err := e.store.GetActiveQuestionByEmployee(askerID); err == store.ErrNotFound {
		hasActive = false
	} else if err != nil {
		return nil, err
	}
	groupID := e.cfg.Forums.MainForumID(actor.Division)
	gs, err := e.groupSettings(groupID)
	if err != nil {
		return nil, err
	}

	linkRequired := gs.Bool(store.SettingAskCleverLink, e.cfg.Questioner.AskCleverLink)
	if err := guard.CanAsk(actor, e.cfg.Bot.Division, hasActive, cleverLink != "", linkRequired); err != nil {
		return nil, err
	}

	if cleverLink == "" {
		cleverLink = CleverLinkNotFound
	}

	token := uuid.NewString()
	unlock := e.locks.Lock(token)
	defer unlock()

	topicID, err := e.msgr.CreateTopic(ctx, groupID, topicName(actor.Division, actor.FullName),
		gs.String(store.SettingEmojiOpen, ""))
	if err != nil {
		return nil, fmt.Errorf("create topic: %w", err)
	}

	now := time.Now()
	q := &store.Question{
		Token:          token,
		GroupID:        groupID,
		TopicID:        topicID,
		EmployeeUserID: askerID,
		QuestionText:   text,
		CleverLink:     cleverLink,
		StartTime:      &now,
		Status:         store.StatusOpen,
		AllowReturn:    true,
	}
	if err := e.store.AddQuestion(q); err != nil {
		// The topic is orphaned; remove it best-effort.
		_ = e.msgr.DeleteTopic(ctx, groupID, topicID)
		return nil, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	askedToday, _ := e.store.CountByEmployeeSince(askerID, dayStart)
	askedMonth, _ := e.store.CountByEmployeeSince(askerID, monthStart)

	infoID, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:           groupID,
		Thread:         topicID,
		Text:           textQuestionInfo(actor.FullName, actor.Division, text, cleverLink, askedToday, askedMonth),
		DisablePreview: true,
	})
	if err != nil {
		slog.Error("Ask: info message failed", "token", token, "error", err)
	} else if err := e.msgr.PinMessage(ctx, groupID, infoID, true); err != nil {
		slog.Error("Ask: pin failed", "token", token, "error", err)
	}

	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     askerID,
		Text:     textQuestionCreated(),
		Keyboard: cancelKeyboard(token),
	}); err != nil {
		slog.Error("Ask: confirmation failed", "token", token, "error", err)
	}

	e.armTimers(q, gs)
	e.sched.InstallReminder(token, attentionInterval)
	e.record(ctx, "asked", token, map[string]any{"employee": askerID, "group": groupID, "topic": topicID})
	slog.Info("Question created", "token", token, "employee", askerID, "topic", topicID)
	return q, nil
}

// CancelByAsker removes a never-claimed question: the topic gets the fired
// icon, is closed, and both topic and row are deleted after a short delay.
func (e *Engine) CancelByAsker(ctx context.Context, askerID int64, token string) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	actor, err := e.dir.Get(ctx, askerID)
	if err != nil {
		return err
	}
	if err := guard.CanCancelByAsker(actor, q); err != nil {
		return err
	}

	e.sched.Cancel(token)
	e.sched.CancelReminder(token)

	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		return err
	}
	if err := e.msgr.EditTopic(ctx, q.GroupID, q.TopicID, token, gs.String(store.SettingEmojiFired, "")); err != nil {
		slog.Error("Cancel: edit topic failed", "token", token, "error", err)
	}
	if err := e.msgr.CloseTopic(ctx, q.GroupID, q.TopicID); err != nil {
		slog.Error("Cancel: close topic failed", "token", token, "error", err)
	}

	groupID, topicID := q.GroupID, q.TopicID
	e.sched.RunAfter("remove:"+token, removalDelay, func(ctx context.Context) {
		if err := e.msgr.DeleteTopic(ctx, groupID, topicID); err != nil {
			slog.Error("Cancel: delete topic failed", "token", token, "error", err)
		}
		if err := e.store.DeleteQuestion(token); err != nil {
			slog.Error("Cancel: delete question failed", "token", token, "error", err)
		}
		if err := e.store.DeletePairsByToken(token); err != nil {
			slog.Error("Cancel: delete pairs failed", "token", token, "error", err)
		}
	})

	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat: askerID,
		Text: textQuestionCancelled(),
	}); err != nil {
		slog.Error("Cancel: notify failed", "token", token, "error", err)
	}

	e.record(ctx, "cancelled", token, map[string]any{"employee": askerID})
	slog.Info("Question cancelled", "token", token, "employee", askerID)
	return nil
}

// Pickup claims an open question for the duty: sets duty_id, moves the
// topic icon to in-progress and notifies the asker. The relay calls this on
// the duty's first message in the topic.
func (e *Engine) Pickup(ctx context.Context, duty *directory.Employee, token string) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	if q.Status != store.StatusOpen {
		// Already claimed while the message was in flight.
		return guard.CanPickup(duty, q)
	}
	if err := guard.CanPickup(duty, q); err != nil {
		return err
	}

	if err := e.store.ClaimQuestion(token, duty.ChatID); err != nil {
		return err
	}
	q.DutyUserID = duty.ChatID
	q.Status = store.StatusInProgress

	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		return err
	}
	if err := e.msgr.EditTopic(ctx, q.GroupID, q.TopicID, "", gs.String(store.SettingEmojiInProgress, "")); err != nil {
		slog.Error("Pickup: edit topic failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     q.EmployeeUserID,
		Text:     textQuestionInProgress(duty.FullName, duty.Username),
		Keyboard: closeKeyboard(token),
	}); err != nil {
		slog.Error("Pickup: notify asker failed", "token", token, "error", err)
	}
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	handledToday, _ := e.store.CountByDutySince(duty.ChatID, dayStart)
	controls := releaseKeyboard(token)
	controls.Rows = append(controls.Rows, activityToggleKeyboard(token, activityEnabled(q, gs)).Rows...)
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     q.GroupID,
		Thread:   q.TopicID,
		Text:     textTopicClaimed(duty.FullName, handledToday),
		Keyboard: controls,
	}); err != nil {
		slog.Error("Pickup: topic controls failed", "token", token, "error", err)
	}

	e.sched.CancelReminder(token)
	e.armTimers(q, gs)
	e.record(ctx, "picked_up", token, map[string]any{"duty": duty.ChatID})
	slog.Info("Question picked up", "token", token, "duty", duty.ChatID)
	return nil
}

// Release puts an in-progress question back to open: clears duty_id, flips
// the icon and notifies both sides.
func (e *Engine) Release(ctx context.Context, actorID int64, token string) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	actor, err := e.dir.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if err := guard.CanRelease(actor, q); err != nil {
		return err
	}

	if err := e.store.ReopenQuestion(token); err != nil {
		return err
	}
	q.DutyUserID = 0
	q.Status = store.StatusOpen

	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		return err
	}
	if err := e.msgr.EditTopic(ctx, q.GroupID, q.TopicID, "", gs.String(store.SettingEmojiOpen, "")); err != nil {
		slog.Error("Release: edit topic failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat: q.EmployeeUserID,
		Text: textQuestionReleased(),
	}); err != nil {
		slog.Error("Release: notify asker failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:   q.GroupID,
		Thread: q.TopicID,
		Text:   textQuestionReleased(),
	}); err != nil {
		slog.Error("Release: notify topic failed", "token", token, "error", err)
	}

	e.armTimers(q, gs)
	e.sched.InstallReminder(token, attentionInterval)
	e.record(ctx, "released", token, map[string]any{"by": actorID})
	slog.Info("Question released", "token", token, "by", actorID)
	return nil
}

// Close terminates a question on behalf of an actor. System closes (the
// inactivity deadline) pass actorID 0.
func (e *Engine) Close(ctx context.Context, actorID int64, token string) error {
	unlock := e.locks.Lock(token)
	defer unlock()
	return e.closeLocked(ctx, actorID, token, false)
}

func (e *Engine) closeLocked(ctx context.Context, actorID int64, token string, bySystem bool) error {
	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}

	if !bySystem {
		actor, err := e.dir.Get(ctx, actorID)
		if err != nil {
			return err
		}
		if err := guard.CanClose(actor, q); err != nil {
			return err
		}
	} else if q.Status == store.StatusClosed {
		return nil
	}

	now := time.Now()
	if err := e.store.CloseQuestion(token, now); err != nil {
		return err
	}
	q.EndTime = &now
	q.Status = store.StatusClosed

	e.sched.Cancel(token)
	e.sched.CancelReminder(token)

	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		return err
	}

	closedText := textQuestionClosed()
	if bySystem {
		closedText = textQuestionAutoClosed(gs.Int(store.SettingActivityCloseMinutes, e.cfg.Questioner.ActivityCloseMinutes))
	}

	// The token becomes the topic's display name after closure.
	if err := e.msgr.EditTopic(ctx, q.GroupID, q.TopicID, token, gs.String(store.SettingEmojiClosed, "")); err != nil {
		slog.Error("Close: edit topic failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     q.GroupID,
		Thread:   q.TopicID,
		Text:     closedText + "\n\n" + textRateRequestDuty(),
		Keyboard: dutyCloseKeyboard(token, q.AllowReturn),
	}); err != nil {
		slog.Error("Close: topic notice failed", "token", token, "error", err)
	}
	if err := e.msgr.CloseTopic(ctx, q.GroupID, q.TopicID); err != nil {
		slog.Error("Close: close topic failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     q.EmployeeUserID,
		Text:     closedText + "\n\n" + textRateRequest(),
		Keyboard: qualityKeyboard(token),
	}); err != nil {
		slog.Error("Close: asker notice failed", "token", token, "error", err)
	}

	event := "closed"
	if bySystem {
		event = "auto_closed"
	}
	e.record(ctx, event, token, map[string]any{"by": actorID})
	slog.Info("Question closed", "token", token, "by", actorID, "system", bySystem)
	return nil
}

// InactivityWarn is the scheduler's warning callback. It re-reads the
// question and does nothing when the state has moved on.
func (e *Engine) InactivityWarn(ctx context.Context, token string) {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err != nil || !q.Active() {
		return
	}
	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		slog.Warn("Warn: settings lookup failed", "token", token, "error", err)
		return
	}
	if !activityEnabled(q, gs) {
		e.sched.Cancel(token)
		return
	}

	remaining := gs.Int(store.SettingActivityCloseMinutes, e.cfg.Questioner.ActivityCloseMinutes) -
		gs.Int(store.SettingActivityWarnMinutes, e.cfg.Questioner.ActivityWarnMinutes)
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat: q.EmployeeUserID,
		Text: textInactivityWarnUser(remaining),
	}); err != nil {
		slog.Error("Warn: asker notice failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:   q.GroupID,
		Thread: q.TopicID,
		Text:   textInactivityWarnTopic(remaining),
	}); err != nil {
		slog.Error("Warn: topic notice failed", "token", token, "error", err)
	}
	slog.Info("Inactivity warning sent", "token", token)
}

// InactivityClose is the scheduler's auto-close callback.
func (e *Engine) InactivityClose(ctx context.Context, token string) {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err != nil || !q.Active() {
		return
	}
	if err := e.closeLocked(ctx, 0, token, true); err != nil {
		slog.Error("Auto-close failed", "token", token, "error", err)
	}
}

// AttentionRemind nudges the forum about a still-unclaimed question.
func (e *Engine) AttentionRemind(ctx context.Context, token string) {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err != nil || q.Status != store.StatusOpen || q.DutyUserID != 0 {
		e.sched.CancelReminder(token)
		return
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:   q.GroupID,
		Thread: q.TopicID,
		Text:   textAttentionReminder(),
	}); err != nil {
		slog.Error("Reminder failed", "token", token, "error", err)
	}
}

// Reopen returns a closed question to open on the asker's request.
func (e *Engine) Reopen(ctx context.Context, askerID int64, token string) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	actor, err := e.dir.Get(ctx, askerID)
	if err != nil {
		return err
	}
	hasOther := false
	if other, err := e.store.GetActiveQuestionByEmployee(askerID); err == nil && other.Token != token {
		hasOther = true
	} else if err != nil && err != store.ErrNotFound {
		return err
	}
	if err := guard.CanReopenByAsker(actor, q, time.Now(), hasOther); err != nil {
		return err
	}

	// Asker-side reopens show the in-progress icon: the previous duty is
	// expected back in the conversation.
	return e.reopenLocked(ctx, q, actor, store.SettingEmojiInProgress,
		textQuestionReopenedByAsker(actor.FullName), "reopened")
}

// ReopenByDuty returns a closed question to open on the owning duty's
// request, with the open icon.
func (e *Engine) ReopenByDuty(ctx context.Context, dutyID int64, token string) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	actor, err := e.dir.Get(ctx, dutyID)
	if err != nil {
		return err
	}
	askerHasActive := false
	if _, err := e.store.GetActiveQuestionByEmployee(q.EmployeeUserID); err == nil {
		askerHasActive = true
	} else if err != store.ErrNotFound {
		return err
	}
	if err := guard.CanReopenByDuty(actor, q, time.Now(), askerHasActive); err != nil {
		return err
	}

	return e.reopenLocked(ctx, q, actor, store.SettingEmojiOpen,
		textQuestionReopened(actor.FullName), "reopened_by_duty")
}

func (e *Engine) reopenLocked(ctx context.Context, q *store.Question, actor *directory.Employee, iconKey, notice, event string) error {
	token := q.Token
	if err := e.store.ReopenQuestion(token); err != nil {
		return err
	}
	q.EndTime = nil
	q.DutyUserID = 0
	q.Status = store.StatusOpen

	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		return err
	}
	if err := e.msgr.ReopenTopic(ctx, q.GroupID, q.TopicID); err != nil {
		slog.Error("Reopen: reopen topic failed", "token", token, "error", err)
	}
	if err := e.msgr.EditTopic(ctx, q.GroupID, q.TopicID, "", gs.String(iconKey, "")); err != nil {
		slog.Error("Reopen: edit topic failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:   q.GroupID,
		Thread: q.TopicID,
		Text:   notice,
	}); err != nil {
		slog.Error("Reopen: topic notice failed", "token", token, "error", err)
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat: q.EmployeeUserID,
		Text: notice,
	}); err != nil {
		slog.Error("Reopen: asker notice failed", "token", token, "error", err)
	}

	e.armTimers(q, gs)
	e.sched.InstallReminder(token, attentionInterval)
	e.record(ctx, event, token, map[string]any{"by": actor.ChatID})
	slog.Info("Question reopened", "token", token, "by", actor.ChatID)
	return nil
}

// Rate records a post-close quality rating. The asker's rating lands in
// quality_employee, the duty's in quality_duty.
func (e *Engine) Rate(ctx context.Context, actorID int64, token string, good bool) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	if q.Status != store.StatusClosed {
		return guard.ErrNotClosed
	}

	if actorID == q.EmployeeUserID {
		err = e.store.SetQualityEmployee(token, good)
	} else {
		actor, derr := e.dir.Get(ctx, actorID)
		if derr != nil {
			return derr
		}
		if gerr := guard.CanActAsDuty(actor, q); gerr != nil {
			return gerr
		}
		err = e.store.SetQualityDuty(token, good)
	}
	if err != nil {
		return err
	}

	e.record(ctx, "rated", token, map[string]any{"by": actorID, "good": good})
	slog.Info("Question rated", "token", token, "by", actorID, "good", good)
	return nil
}

// ToggleAllowReturn flips whether the asker may reopen the question.
// Returns the new state.
func (e *Engine) ToggleAllowReturn(ctx context.Context, actorID int64, token string) (bool, error) {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return false, guard.ErrQuestionMissing
	}
	if err != nil {
		return false, err
	}
	if q.Status != store.StatusClosed {
		return false, guard.ErrNotClosed
	}
	actor, err := e.dir.Get(ctx, actorID)
	if err != nil {
		return false, err
	}
	if err := guard.CanActAsDuty(actor, q); err != nil {
		return false, err
	}

	allow := !q.AllowReturn
	if err := e.store.SetAllowReturn(token, allow); err != nil {
		return false, err
	}

	notice := textAllowReturnDisabled()
	if allow {
		notice = textAllowReturnEnabled()
	}
	if _, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     q.GroupID,
		Thread:   q.TopicID,
		Text:     notice,
		Keyboard: dutyCloseKeyboard(token, allow),
	}); err != nil {
		slog.Error("Toggle return: notice failed", "token", token, "error", err)
	}

	e.record(ctx, "allow_return_toggled", token, map[string]any{"by": actorID, "allow": allow})
	return allow, nil
}

// ToggleActivityStatus sets the per-question activity override and arms or
// cancels the deadlines immediately.
func (e *Engine) ToggleActivityStatus(ctx context.Context, actorID int64, token string, enabled bool) error {
	unlock := e.locks.Lock(token)
	defer unlock()

	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	actor, err := e.dir.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if err := guard.CanActAsDuty(actor, q); err != nil {
		return err
	}

	if err := e.store.SetActivityStatusEnabled(token, &enabled); err != nil {
		return err
	}
	q.ActivityStatusEnabled = &enabled

	gs, err := e.groupSettings(q.GroupID)
	if err != nil {
		return err
	}
	e.armTimers(q, gs)
	e.record(ctx, "activity_toggled", token, map[string]any{"by": actorID, "enabled": enabled})
	return nil
}

// AvailableToReturn lists the asker's reopenable questions for the reopen
// keyboard.
func (e *Engine) AvailableToReturn(askerID int64) ([]store.Question, error) {
	return e.store.ListAvailableToReturn(askerID, guard.ReturnWindow, returnMenuLimit)
}

// ReturnMenu sends the asker the list of questions still open for return.
func (e *Engine) ReturnMenu(ctx context.Context, askerID int64) error {
	qs, err := e.AvailableToReturn(askerID)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		_, err := e.msgr.SendMessage(ctx, messenger.SendOptions{
			Chat: askerID,
			Text: textNothingToReturn(),
		})
		return err
	}
	tokens := make([]string, len(qs))
	titles := make([]string, len(qs))
	for i := range qs {
		tokens[i] = qs[i].Token
		title := qs[i].QuestionText
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:50]) + "…"
		}
		titles[i] = title
	}
	_, err = e.msgr.SendMessage(ctx, messenger.SendOptions{
		Chat:     askerID,
		Text:     textReturnMenu(),
		Keyboard: reopenKeyboard(tokens, titles),
	})
	return err
}

// DeleteOld sweeps questions past the retention window: the topic and the
// row are deleted, timers cancelled. Returns the number of removed
// questions.
func (e *Engine) DeleteOld(ctx context.Context) (int, error) {
	if !e.cfg.Questioner.RemoveOldQuestions {
		return 0, nil
	}
	old, err := e.store.ListQuestionsOlderThan(e.cfg.Questioner.RemoveOldQuestionsDays)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range old {
		q := &old[i]
		unlock := e.locks.Lock(q.Token)

		e.sched.Cancel(q.Token)
		e.sched.CancelReminder(q.Token)
		if err := e.msgr.DeleteTopic(ctx, q.GroupID, q.TopicID); err != nil {
			slog.Error("Sweep: delete topic failed", "token", q.Token, "error", err)
		}
		if err := e.store.DeleteQuestion(q.Token); err != nil {
			slog.Error("Sweep: delete question failed", "token", q.Token, "error", err)
			unlock()
			continue
		}
		if err := e.store.DeletePairsByToken(q.Token); err != nil {
			slog.Error("Sweep: delete pairs failed", "token", q.Token, "error", err)
		}
		removed++
		unlock()
	}
	if removed > 0 {
		e.record(ctx, "old_swept", "", map[string]any{"count": removed})
		slog.Info("Old questions swept", "count", removed)
	}
	return removed, nil
}

// SweepPairs deletes message pairs past the 2-day retention.
func (e *Engine) SweepPairs(ctx context.Context) (int64, error) {
	deleted, err := e.store.DeletePairsOlderThan(2)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.Info("Message pairs swept", "count", deleted)
	}
	return deleted, nil
}
