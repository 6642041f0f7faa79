package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stpbots/questioner/internal/directory"
	"github.com/stpbots/questioner/internal/store"
)

func specialist(id int64) *directory.Employee {
	return &directory.Employee{ChatID: id, FullName: "Сотрудник", Role: directory.RoleSpecialist, Division: "НТП"}
}

func senior(id int64) *directory.Employee {
	return &directory.Employee{ChatID: id, FullName: "Старший", Role: directory.RoleSenior, Division: "НТП"}
}

func admin(id int64) *directory.Employee {
	return &directory.Employee{ChatID: id, FullName: "Админ", Role: directory.RoleAdmin, Division: "НТП"}
}

func openQuestion(employee int64) *store.Question {
	now := time.Now()
	return &store.Question{
		Token:          "tok",
		EmployeeUserID: employee,
		Status:         store.StatusOpen,
		StartTime:      &now,
		AllowReturn:    true,
	}
}

func claimedQuestion(employee, duty int64) *store.Question {
	q := openQuestion(employee)
	q.DutyUserID = duty
	q.Status = store.StatusInProgress
	return q
}

func closedQuestion(employee, duty int64, closedAgo time.Duration) *store.Question {
	q := claimedQuestion(employee, duty)
	q.Status = store.StatusClosed
	end := time.Now().Add(-closedAgo)
	q.EndTime = &end
	return q
}

func TestCanAsk(t *testing.T) {
	if err := CanAsk(specialist(1), "НТП", false, false, false); err != nil {
		t.Errorf("specialist in own division must be allowed: %v", err)
	}
	if err := CanAsk(specialist(1), "НЦК", false, false, false); !errors.Is(err, ErrWrongDivision) {
		t.Errorf("expected wrong division, got %v", err)
	}
	if err := CanAsk(specialist(1), "НТП", true, false, false); !errors.Is(err, ErrActiveExists) {
		t.Errorf("expected active-question refusal, got %v", err)
	}
	outsider := &directory.Employee{ChatID: 2, Role: 0, Division: "НТП"}
	if err := CanAsk(outsider, "НТП", false, false, false); !errors.Is(err, ErrNoRights) {
		t.Errorf("expected no rights, got %v", err)
	}
}

func TestCanAskCleverLinkRule(t *testing.T) {
	if err := CanAsk(specialist(1), "НТП", false, false, true); !errors.Is(err, ErrLinkRequired) {
		t.Errorf("expected link-required refusal, got %v", err)
	}
	if err := CanAsk(specialist(1), "НТП", false, true, true); err != nil {
		t.Errorf("attached link must satisfy the requirement: %v", err)
	}
	if err := CanAsk(admin(3), "НТП", false, false, true); err != nil {
		t.Errorf("admins are exempt from the link requirement: %v", err)
	}
	if err := CanAsk(specialist(1), "НТП", false, false, false); err != nil {
		t.Errorf("flag off must not require a link: %v", err)
	}
}

func TestCanPickup(t *testing.T) {
	q := openQuestion(10)
	if err := CanPickup(senior(20), q); err != nil {
		t.Errorf("senior must pick up an open question: %v", err)
	}
	if err := CanPickup(specialist(20), q); !errors.Is(err, ErrNoRights) {
		t.Errorf("specialist must not pick up: %v", err)
	}

	claimed := claimedQuestion(10, 20)
	if err := CanPickup(senior(20), claimed); err != nil {
		t.Errorf("owner must keep speaking: %v", err)
	}
	if err := CanPickup(senior(21), claimed); !errors.Is(err, ErrNotYourChat) {
		t.Errorf("foreign duty must be refused, got %v", err)
	}
	if err := CanPickup(admin(99), claimed); err != nil {
		t.Errorf("admin overrides ownership: %v", err)
	}
}

func TestCanClose(t *testing.T) {
	claimed := claimedQuestion(10, 20)
	if err := CanClose(senior(20), claimed); err != nil {
		t.Errorf("owning duty closes: %v", err)
	}
	if err := CanClose(specialist(10), claimed); err != nil {
		t.Errorf("asker closes: %v", err)
	}
	if err := CanClose(senior(21), claimed); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign duty must not close, got %v", err)
	}
	if err := CanClose(admin(99), claimed); err != nil {
		t.Errorf("admin closes: %v", err)
	}
	closed := closedQuestion(10, 20, time.Hour)
	if err := CanClose(senior(20), closed); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected already closed, got %v", err)
	}
}

func TestCanCancelByAsker(t *testing.T) {
	q := openQuestion(10)
	if err := CanCancelByAsker(specialist(10), q); err != nil {
		t.Errorf("asker cancels own open question: %v", err)
	}
	if err := CanCancelByAsker(specialist(11), q); !errors.Is(err, ErrNotYourChat) {
		t.Errorf("stranger must not cancel, got %v", err)
	}
	if err := CanCancelByAsker(specialist(10), claimedQuestion(10, 20)); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("claimed question not cancellable, got %v", err)
	}
}

func TestCanReopenByAsker(t *testing.T) {
	now := time.Now()

	fresh := closedQuestion(10, 20, 2*time.Hour)
	if err := CanReopenByAsker(specialist(10), fresh, now, false); err != nil {
		t.Errorf("reopen inside window: %v", err)
	}

	stale := closedQuestion(10, 20, 25*time.Hour)
	if err := CanReopenByAsker(specialist(10), stale, now, false); !errors.Is(err, ErrReturnExpired) {
		t.Errorf("expected expired window, got %v", err)
	}

	blocked := closedQuestion(10, 20, time.Hour)
	blocked.AllowReturn = false
	if err := CanReopenByAsker(specialist(10), blocked, now, false); !errors.Is(err, ErrReturnBlocked) {
		t.Errorf("expected blocked return, got %v", err)
	}

	if err := CanReopenByAsker(specialist(10), fresh, now, true); !errors.Is(err, ErrOtherActive) {
		t.Errorf("expected other-active refusal, got %v", err)
	}

	if err := CanReopenByAsker(specialist(10), claimedQuestion(10, 20), now, false); !errors.Is(err, ErrNotClosed) {
		t.Errorf("expected not closed, got %v", err)
	}
}

func TestCanReopenByDuty(t *testing.T) {
	now := time.Now()
	q := closedQuestion(10, 20, time.Hour)

	if err := CanReopenByDuty(senior(20), q, now, false); err != nil {
		t.Errorf("owning duty reopens: %v", err)
	}
	if err := CanReopenByDuty(senior(21), q, now, false); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign duty must not reopen, got %v", err)
	}
	if err := CanReopenByDuty(senior(20), q, now, true); err == nil {
		t.Error("expected refusal when the asker has another active question")
	}
}

func TestCanRelease(t *testing.T) {
	q := claimedQuestion(10, 20)
	if err := CanRelease(senior(20), q); err != nil {
		t.Errorf("owner releases: %v", err)
	}
	if err := CanRelease(senior(21), q); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign duty must not release, got %v", err)
	}
	if err := CanRelease(senior(20), closedQuestion(10, 20, time.Hour)); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected already closed, got %v", err)
	}
}
