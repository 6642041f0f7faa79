package engine

import (
	"context"
	"testing"

	"github.com/stpbots/questioner/internal/bus"
	"github.com/stpbots/questioner/internal/store"
)

func callback(sender int64, data string) bus.Event {
	return bus.Event{
		Kind:         bus.KindCallback,
		SenderID:     sender,
		CallbackID:   "cb-1",
		CallbackData: data,
	}
}

func TestCallbackQualityRecordsRating(t *testing.T) {
	env := newTestEnv(t)
	q := env.ask(t)
	env.pickup(t, q.Token)
	if err := env.engine.Close(context.Background(), dutyID, q.Token); err != nil {
		t.Fatalf("close: %v", err)
	}

	env.engine.HandleCallback(context.Background(), callback(askerID, "quality:"+q.Token+":good"))

	got, _ := env.store.GetQuestion(q.Token)
	if got.QualityEmployee == nil || !*got.QualityEmployee {
		t.Fatal("rating not recorded")
	}
	if len(env.msgr.CallsTo("AnswerCallback")) != 1 {
		t.Fatal("callback not answered")
	}
}

func TestCallbackDenialAnsweredWithAlert(t *testing.T) {
	env := newTestEnv(t)
	q := env.ask(t)

	// Rating an open question is denied.
	env.engine.HandleCallback(context.Background(), callback(askerID, "quality:"+q.Token+":good"))

	answers := env.msgr.CallsTo("AnswerCallback")
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(answers))
	}
	if answers[0].Text == "" {
		t.Fatal("denial text missing from the answer")
	}
}

func TestCallbackReopenRoutesBySide(t *testing.T) {
	env := newTestEnv(t)
	q := env.ask(t)
	env.pickup(t, q.Token)
	if err := env.engine.Close(context.Background(), dutyID, q.Token); err != nil {
		t.Fatalf("close: %v", err)
	}

	env.engine.HandleCallback(context.Background(), callback(dutyID, "reopen:"+q.Token))
	got, _ := env.store.GetQuestion(q.Token)
	if got.Status != store.StatusOpen {
		t.Fatalf("status = %q, want open after duty reopen", got.Status)
	}
}

func TestCallbackCloseButtonClosesQuestion(t *testing.T) {
	env := newTestEnv(t)
	q := env.ask(t)
	env.pickup(t, q.Token)

	env.engine.HandleCallback(context.Background(), callback(askerID, "close:"+q.Token))

	got, _ := env.store.GetQuestion(q.Token)
	if got.Status != store.StatusClosed {
		t.Fatalf("status = %q, want closed", got.Status)
	}
}

func TestCallbackCancelRemovesUnclaimed(t *testing.T) {
	env := newTestEnv(t)
	q := env.ask(t)

	env.engine.HandleCallback(context.Background(), callback(askerID, "cancel:"+q.Token))
	if len(env.msgr.CallsTo("CloseTopic")) != 1 {
		t.Fatal("topic not closed on cancel")
	}
}

func TestCallbackUnknownOpIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.engine.HandleCallback(context.Background(), callback(askerID, "bogus:data"))
	if len(env.msgr.Calls) != 0 {
		t.Fatal("unexpected messenger activity")
	}
}
