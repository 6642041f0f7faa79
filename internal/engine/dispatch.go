package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stpbots/questioner/internal/bus"
	"github.com/stpbots/questioner/internal/guard"
	"github.com/stpbots/questioner/internal/store"
)

// HandleCallback routes an inline-keyboard press to the matching lifecycle
// operation and answers the callback with the outcome. Guard denials come
// back as an alert with the denial text; unexpected errors are only logged.
func (e *Engine) HandleCallback(ctx context.Context, ev bus.Event) {
	op, token, args := ParseCallback(ev.CallbackData)
	if op == "" || token == "" {
		return
	}

	var err error
	var ack string

	switch op {
	case CallbackCancel:
		err = e.CancelByAsker(ctx, ev.SenderID, token)
		if err == nil {
			ack = textQuestionCancelled()
		}
	case CallbackClose:
		err = e.Close(ctx, ev.SenderID, token)
	case CallbackQuality:
		good := len(args) > 0 && args[0] == "good"
		err = e.Rate(ctx, ev.SenderID, token, good)
		if err == nil {
			ack = textRated()
		}
	case CallbackAllowReturn:
		var allow bool
		allow, err = e.ToggleAllowReturn(ctx, ev.SenderID, token)
		if err == nil {
			if allow {
				ack = textAllowReturnEnabled()
			} else {
				ack = textAllowReturnDisabled()
			}
		}
	case CallbackReopen:
		err = e.reopenBySide(ctx, ev.SenderID, token)
	case CallbackRelease:
		err = e.Release(ctx, ev.SenderID, token)
	case CallbackActivity:
		enabled := len(args) > 0 && args[0] == "on"
		err = e.ToggleActivityStatus(ctx, ev.SenderID, token, enabled)
	default:
		slog.Warn("Unknown callback", "op", op, "sender", ev.SenderID)
		return
	}

	var denial *guard.Denial
	switch {
	case err == nil:
		if aerr := e.msgr.AnswerCallback(ctx, ev.CallbackID, ack, false); aerr != nil {
			slog.Error("Callback answer failed", "op", op, "error", aerr)
		}
	case errors.As(err, &denial):
		if aerr := e.msgr.AnswerCallback(ctx, ev.CallbackID, denial.Text, true); aerr != nil {
			slog.Error("Callback answer failed", "op", op, "error", aerr)
		}
	default:
		slog.Error("Callback operation failed", "op", op, "token", token, "error", err)
	}
}

// reopenBySide picks the asker or duty reopen path by who pressed the
// button.
func (e *Engine) reopenBySide(ctx context.Context, senderID int64, token string) error {
	q, err := e.store.GetQuestion(token)
	if err == store.ErrNotFound {
		return guard.ErrQuestionMissing
	}
	if err != nil {
		return err
	}
	if senderID == q.EmployeeUserID {
		return e.Reopen(ctx, senderID, token)
	}
	return e.ReopenByDuty(ctx, senderID, token)
}
