package messenger

import (
	"context"
	"sync"
)

// Call is one recorded messenger invocation.
type Call struct {
	Method  string
	Chat    int64
	Thread  int64
	Msg     int64
	ReplyTo int64
	Text    string
	Icon    string
}

// Fake is an in-memory Messenger used by tests across the repo. It records
// every call and hands out incrementing ids.
type Fake struct {
	mu     sync.Mutex
	Calls  []Call
	nextID int64

	// FailNext makes the next call return this error once.
	FailNext error
}

// NewFake creates a recording messenger.
func NewFake() *Fake {
	return &Fake{nextID: 1000}
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, c)
}

func (f *Fake) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.FailNext
	f.FailNext = nil
	return err
}

func (f *Fake) id() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

// CallsTo returns recorded calls of the given method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

func (f *Fake) CreateTopic(ctx context.Context, group int64, name, icon string) (int64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	id := f.id()
	f.record(Call{Method: "CreateTopic", Chat: group, Thread: id, Text: name, Icon: icon})
	return id, nil
}

func (f *Fake) EditTopic(ctx context.Context, group, thread int64, name, icon string) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "EditTopic", Chat: group, Thread: thread, Text: name, Icon: icon})
	return nil
}

func (f *Fake) CloseTopic(ctx context.Context, group, thread int64) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "CloseTopic", Chat: group, Thread: thread})
	return nil
}

func (f *Fake) ReopenTopic(ctx context.Context, group, thread int64) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "ReopenTopic", Chat: group, Thread: thread})
	return nil
}

func (f *Fake) DeleteTopic(ctx context.Context, group, thread int64) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "DeleteTopic", Chat: group, Thread: thread})
	return nil
}

func (f *Fake) SendMessage(ctx context.Context, opts SendOptions) (int64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	id := f.id()
	f.record(Call{Method: "SendMessage", Chat: opts.Chat, Thread: opts.Thread, Msg: id, ReplyTo: opts.ReplyTo, Text: opts.Text})
	return id, nil
}

func (f *Fake) CopyMessage(ctx context.Context, fromChat, fromMsg, toChat, toThread, replyTo int64) (int64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	id := f.id()
	f.record(Call{Method: "CopyMessage", Chat: toChat, Thread: toThread, Msg: id, ReplyTo: replyTo})
	return id, nil
}

func (f *Fake) EditMessage(ctx context.Context, chat, msg int64, newText string) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "EditMessage", Chat: chat, Msg: msg, Text: newText})
	return nil
}

func (f *Fake) DeleteMessage(ctx context.Context, chat, msg int64) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "DeleteMessage", Chat: chat, Msg: msg})
	return nil
}

func (f *Fake) PinMessage(ctx context.Context, chat, msg int64, silent bool) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "PinMessage", Chat: chat, Msg: msg})
	return nil
}

func (f *Fake) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.record(Call{Method: "AnswerCallback", Text: text})
	return nil
}
