package engine

import (
	"fmt"
	"time"
)

// Control sentinels recognized in message bodies.
const (
	// SentinelCloseQuestion closes a question when sent verbatim by either side.
	SentinelCloseQuestion = "✅️ Закрыть вопрос"

	// CleverLinkPrefix is the required prefix of a knowledge-base link.
	CleverLinkPrefix = "https://clever.ertelecom.ru/content/space/"

	// CleverLinkNotFound is the literal stored when the asker had no link.
	CleverLinkNotFound = "не нашел"

	// SentinelReturnMenu asks for the list of reopenable questions.
	SentinelReturnMenu = "🔄 Вернуть вопрос"
)

func textQuestionInfo(fullName, division, text, cleverLink string, askedToday, askedMonth int) string {
	link := cleverLink
	if link == "" {
		link = CleverLinkNotFound
	}
	return fmt.Sprintf(`<b>❓ Новый вопрос</b>

<b>Специалист:</b> %s
<b>Направление:</b> %s
<b>Вопросов за день:</b> %d
<b>Вопросов за месяц:</b> %d

<b>Вопрос:</b>
%s

<b>Регламент:</b> %s`, fullName, division, askedToday, askedMonth, text, link)
}

func textQuestionCreated() string {
	return `<b>✅ Вопрос создан</b>

Ожидай, скоро подключится дежурный`
}

func textQuestionInProgress(dutyName, dutyUsername string) string {
	who := fmt.Sprintf("<b>%s</b>", dutyName)
	if dutyUsername != "" && dutyUsername != "Не указан" && dutyUsername != "Скрыто/не определено" {
		who += fmt.Sprintf(` (<a href="https://t.me/%s">лс</a>)`, dutyUsername)
	}
	return fmt.Sprintf(`<b>👮‍♂️ Вопрос в работе</b>

На вопрос отвечает %s`, who)
}

func textQuestionReleased() string {
	return `<b>↩️ Вопрос освобожден</b>

Ожидай, скоро подключится другой дежурный`
}

func textQuestionClosed() string {
	return "<b>🔒 Вопрос закрыт</b>"
}

func textQuestionAutoClosed(closeMinutes int) string {
	return fmt.Sprintf(`🔒 <b>Вопрос автоматически закрыт</b>

Вопрос был закрыт из-за отсутствия активности в течение %d минут`, closeMinutes)
}

func textInactivityWarnUser(warnMinutes int) string {
	return fmt.Sprintf(`⚠️ <b>Внимание!</b>

Твой вопрос будет автоматически закрыт через %d минут при отсутствии активности`, warnMinutes)
}

func textInactivityWarnTopic(warnMinutes int) string {
	return fmt.Sprintf(`⚠️ <b>Внимание!</b>

Чат будет автоматически закрыт через %d минут при отсутствии активности`, warnMinutes)
}

func textAttentionReminder() string {
	return `<b>⏰ Вопрос ждет дежурного</b>

Вопрос все еще никем не взят в работу`
}

func textQuestionReopened(byName string) string {
	return fmt.Sprintf(`<b>🔓 Вопрос переоткрыт</b>

Старший <b>%s</b> переоткрыл вопрос`, byName)
}

func textQuestionReopenedByAsker(fullName string) string {
	return fmt.Sprintf(`<b>🔓 Вопрос переоткрыт</b>

Специалист <b>%s</b> вернул вопрос`, fullName)
}

func textRateRequest() string {
	return `Пожалуйста, оцени ответ дежурного`
}

func textRateRequestDuty() string {
	return `Оценка дежурного

Пожалуйста, оцени вопрос специалиста`
}

func textRated() string {
	return "Оценка успешно выставлена ❤️"
}

func textAllowReturnEnabled() string {
	return "🟢 Возврат текущего вопроса был разрешен"
}

func textAllowReturnDisabled() string {
	return "⛔ Возврат текущего вопроса был заблокирован"
}

func textQuestionCancelled() string {
	return "Вопрос успешно удален"
}

func EditedBySpecialistNote(at time.Time) string {
	return fmt.Sprintf("\n\n<i>Сообщение изменено специалистом — %s</i>", at.Format("15:04 02.01.2006"))
}

func EditedByDutyNote(at time.Time) string {
	return fmt.Sprintf("\n\n<i>Сообщение изменено дежурным — %s</i>", at.Format("15:04 02.01.2006"))
}

func PremiumEmojiWarning(emojis string) string {
	return fmt.Sprintf(`<b>💎 Премиум эмодзи</b>

Сообщение содержит премиум эмодзи, собеседник увидит бесплатные аналоги: %s

<i>Предупреждение удалится через 30 секунд</i>`, emojis)
}

// TopicWarning frames a refusal shown under the offending topic message.
func TopicWarning(reason string) string {
	return fmt.Sprintf(`<b>⚠️ Предупреждение</b>

%s

<i>Твое сообщение не отобразится специалисту</i>`, reason)
}

// OrphanTopicNotice is posted into a topic that has no question row before
// the topic is closed.
func OrphanTopicNotice() string {
	return `<b>⚠️ Ошибка</b>

Не удалось найти текущую тему в базе, закрываю`
}

func topicName(division, fullName string) string {
	return fmt.Sprintf("%s | %s", division, fullName)
}

func textTopicClaimed(dutyName string, handledToday int) string {
	return fmt.Sprintf("👨‍💻 Вопрос взят в работу: %s\nРешено вопросов за сегодня: %d", dutyName, handledToday)
}

func textReturnMenu() string {
	return "Выбери вопрос, который хочешь вернуть:"
}

func textNothingToReturn() string {
	return "Нет вопросов, доступных для возврата. Вопрос можно вернуть в течение 24 часов после закрытия, если возврат не заблокирован"
}
