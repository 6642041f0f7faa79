package engine

import (
	"fmt"
	"strings"

	"github.com/stpbots/questioner/internal/messenger"
)

// Callback data prefixes. The payload after the prefix is the question token,
// plus op-specific fields separated by ':'.
const (
	CallbackCancel      = "cancel"       // cancel:<token>
	CallbackClose       = "close"        // close:<token>
	CallbackQuality     = "quality"      // quality:<token>:<good|bad>
	CallbackAllowReturn = "allow_return" // allow_return:<token>
	CallbackReopen      = "reopen"       // reopen:<token>
	CallbackRelease     = "release"      // release:<token>
	CallbackActivity    = "activity"     // activity:<token>:<on|off>
)

// ParseCallback splits callback data into op, token and the remaining args.
func ParseCallback(data string) (op, token string, args []string) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return data, "", nil
	}
	return parts[0], parts[1], parts[2:]
}

func cancelKeyboard(token string) *messenger.Keyboard {
	k := &messenger.Keyboard{}
	return k.Row(messenger.Button{
		Text:     "❌ Отменить вопрос",
		Callback: fmt.Sprintf("%s:%s", CallbackCancel, token),
	})
}

func closeKeyboard(token string) *messenger.Keyboard {
	k := &messenger.Keyboard{}
	return k.Row(messenger.Button{
		Text:     SentinelCloseQuestion,
		Callback: fmt.Sprintf("%s:%s", CallbackClose, token),
	})
}

func qualityKeyboard(token string) *messenger.Keyboard {
	k := &messenger.Keyboard{}
	return k.Row(
		messenger.Button{Text: "👍", Callback: fmt.Sprintf("%s:%s:good", CallbackQuality, token)},
		messenger.Button{Text: "👎", Callback: fmt.Sprintf("%s:%s:bad", CallbackQuality, token)},
	)
}

// dutyCloseKeyboard is shown to the duty on close: rating plus the
// allow-return toggle reflecting the current flag.
func dutyCloseKeyboard(token string, allowReturn bool) *messenger.Keyboard {
	k := qualityKeyboard(token)
	toggle := "⛔ Запретить возврат"
	if !allowReturn {
		toggle = "🟢 Разрешить возврат"
	}
	return k.Row(messenger.Button{
		Text:     toggle,
		Callback: fmt.Sprintf("%s:%s", CallbackAllowReturn, token),
	})
}

func releaseKeyboard(token string) *messenger.Keyboard {
	k := &messenger.Keyboard{}
	return k.Row(messenger.Button{
		Text:     "↩️ Освободить вопрос",
		Callback: fmt.Sprintf("%s:%s", CallbackRelease, token),
	})
}

// reopenKeyboard lists the asker's returnable questions.
func reopenKeyboard(tokens []string, titles []string) *messenger.Keyboard {
	k := &messenger.Keyboard{}
	for i, tok := range tokens {
		k.Row(messenger.Button{
			Text:     titles[i],
			Callback: fmt.Sprintf("%s:%s", CallbackReopen, tok),
		})
	}
	return k
}

func activityToggleKeyboard(token string, enabled bool) *messenger.Keyboard {
	k := &messenger.Keyboard{}
	text := "🔕 Выключить отслеживание активности"
	arg := "off"
	if !enabled {
		text = "🔔 Включить отслеживание активности"
		arg = "on"
	}
	return k.Row(messenger.Button{
		Text:     text,
		Callback: fmt.Sprintf("%s:%s:%s", CallbackActivity, token, arg),
	})
}
