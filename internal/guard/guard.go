// Package guard is the pure access/ownership decision layer. It inspects
// an actor, a question and the clock, and either allows an operation or
// returns a Denial carrying the user-visible refusal text. It never touches
// storage or the messenger.
package guard

import (
	"errors"
	"time"

	"github.com/stpbots/questioner/internal/directory"
	"github.com/stpbots/questioner/internal/store"
)

// ReturnWindow is how long after closure the asker may reopen.
const ReturnWindow = 24 * time.Hour

// Denial is a refused operation. Text is shown to the user as an alert or
// reply; Reason identifies the rule for logs and errors.Is checks.
type Denial struct {
	Reason string
	Text   string
}

func (d *Denial) Error() string { return d.Reason }

// Is matches denials by Reason so callers can use errors.Is with the
// package sentinels.
func (d *Denial) Is(target error) bool {
	var t *Denial
	if errors.As(target, &t) {
		return d.Reason == t.Reason
	}
	return false
}

var (
	ErrNoRights        = &Denial{Reason: "no rights", Text: "У тебя недостаточно прав 🥺"}
	ErrWrongDivision   = &Denial{Reason: "wrong division", Text: "Вопросы твоего направления обрабатываются в другом боте"}
	ErrActiveExists    = &Denial{Reason: "active question exists", Text: "У тебя уже есть активный вопрос"}
	ErrOtherActive     = &Denial{Reason: "other active question", Text: "У тебя есть другой открытый вопрос"}
	ErrNotYourChat     = &Denial{Reason: "not your chat", Text: "Это не твой чат!"}
	ErrAlreadyClosed   = &Denial{Reason: "already closed", Text: "Вопрос уже закрыт"}
	ErrNotClosed       = &Denial{Reason: "not closed", Text: "Этот вопрос не закрыт"}
	ErrReturnExpired   = &Denial{Reason: "return window expired", Text: "Вопрос не переоткрыть. Прошло более 24 часов или возврат заблокирован"}
	ErrReturnBlocked   = &Denial{Reason: "return blocked", Text: "Возврат вопроса заблокирован"}
	ErrAlreadyClaimed  = &Denial{Reason: "already in progress", Text: "Вопрос не может быть отменен. Он уже в работе"}
	ErrNotOwner        = &Denial{Reason: "owned by another duty", Text: "Это не твой чат!"}
	ErrNotUnassigned   = &Denial{Reason: "not claimed by anyone", Text: "Вопрос никем не занят"}
	ErrQuestionMissing = &Denial{Reason: "question not found", Text: "❌ Вопрос не найден"}
	ErrLinkRequired    = &Denial{Reason: "clever link required", Text: "🗃️ Прикрепи ссылку на регламент из клевера, по которому у тебя вопрос"}
)

// CanAsk checks that the actor may create a question in the given division.
// hasActive reports whether the actor already has an open or in-progress
// question. When linkRequired is set, non-admin askers must attach a
// knowledge-base link.
func CanAsk(actor *directory.Employee, division string, hasActive, hasLink, linkRequired bool) error {
	if !actor.CanAsk() {
		return ErrNoRights
	}
	if actor.Division != division {
		return ErrWrongDivision
	}
	if hasActive {
		return ErrActiveExists
	}
	if linkRequired && !hasLink && !actor.IsAdmin() {
		return ErrLinkRequired
	}
	return nil
}

// CanPickup checks that the actor may claim an open question.
func CanPickup(actor *directory.Employee, q *store.Question) error {
	if !actor.IsDuty() {
		return ErrNoRights
	}
	switch q.Status {
	case store.StatusOpen:
		return nil
	case store.StatusInProgress:
		// A claimed topic accepts messages only from its owner.
		if q.DutyUserID == actor.ChatID || actor.IsAdmin() {
			return nil
		}
		return ErrNotYourChat
	default:
		return ErrAlreadyClosed
	}
}

// CanActAsDuty checks duty ownership: the caller must own the question or
// be an admin.
func CanActAsDuty(actor *directory.Employee, q *store.Question) error {
	if !actor.IsDuty() {
		return ErrNoRights
	}
	if actor.IsAdmin() {
		return nil
	}
	if q.DutyUserID == 0 {
		return ErrNotUnassigned
	}
	if q.DutyUserID != actor.ChatID {
		return ErrNotOwner
	}
	return nil
}

// CanRelease checks that the actor may release the question back to open.
func CanRelease(actor *directory.Employee, q *store.Question) error {
	if !q.Active() {
		return ErrAlreadyClosed
	}
	return CanActAsDuty(actor, q)
}

// CanClose checks that the actor may close the question: the owning duty,
// the asker, or an admin.
func CanClose(actor *directory.Employee, q *store.Question) error {
	if q.Status == store.StatusClosed {
		return ErrAlreadyClosed
	}
	if actor.ChatID == q.EmployeeUserID || actor.IsAdmin() {
		return nil
	}
	if q.DutyUserID != 0 {
		return CanActAsDuty(actor, q)
	}
	// Unclaimed questions may still be closed by a duty-capable user.
	if actor.IsDuty() {
		return nil
	}
	return ErrNotYourChat
}

// CanCancelByAsker checks that an open, never-claimed question may be
// cancelled by its asker.
func CanCancelByAsker(actor *directory.Employee, q *store.Question) error {
	if actor.ChatID != q.EmployeeUserID {
		return ErrNotYourChat
	}
	if q.DutyUserID != 0 || q.Status == store.StatusInProgress {
		return ErrAlreadyClaimed
	}
	if q.EndTime != nil || q.Status == store.StatusClosed {
		return ErrAlreadyClosed
	}
	return nil
}

// CanReopenByAsker checks the asker-side reopen guards: closed, inside the
// return window, returnable, and no other active question.
func CanReopenByAsker(actor *directory.Employee, q *store.Question, now time.Time, hasOtherActive bool) error {
	if actor.ChatID != q.EmployeeUserID {
		return ErrNotYourChat
	}
	if q.Status != store.StatusClosed || q.EndTime == nil {
		return ErrNotClosed
	}
	if !q.AllowReturn {
		return ErrReturnBlocked
	}
	if now.Sub(*q.EndTime) > ReturnWindow {
		return ErrReturnExpired
	}
	if hasOtherActive {
		return ErrOtherActive
	}
	return nil
}

// CanReopenByDuty checks the duty-side reopen guards: the same rules plus
// duty ownership, and the asker must have no other active question.
func CanReopenByDuty(actor *directory.Employee, q *store.Question, now time.Time, askerHasActive bool) error {
	if err := CanActAsDuty(actor, q); err != nil {
		return err
	}
	if q.Status != store.StatusClosed || q.EndTime == nil {
		return ErrNotClosed
	}
	if !q.AllowReturn {
		return ErrReturnBlocked
	}
	if now.Sub(*q.EndTime) > ReturnWindow {
		return ErrReturnExpired
	}
	if askerHasActive {
		return &Denial{Reason: "asker has active question", Text: "У специалиста есть другой открытый вопрос"}
	}
	return nil
}

// CanSpeakInTopic checks that a duty message in a topic may be relayed.
func CanSpeakInTopic(actor *directory.Employee, q *store.Question) error {
	if q.Status == store.StatusClosed {
		return ErrAlreadyClosed
	}
	return CanPickup(actor, q)
}
