package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/icewatch/ticketwatch/internal/match"
)

// writeMatchLines writes the date, title and time lines shared by all
// match messages
func writeMatchLines(msg *strings.Builder, m *match.Match) {
	msg.WriteString(fmt.Sprintf("📅 %s\n", html.EscapeString(m.DateDisplay)))
	msg.WriteString(fmt.Sprintf("🏒 <b>%s</b>\n", html.EscapeString(m.Title)))
	if t := matchTime(m); t != "" {
		msg.WriteString(fmt.Sprintf("🕒 %s\n", html.EscapeString(t)))
	}
}

// matchTime prefers the normalized clock and falls back to the scraped text
func matchTime(m *match.Match) string {
	if m.Time != "" {
		return m.Time
	}
	return m.RawTime
}

func ticketLink(m *match.Match) string {
	return fmt.Sprintf("🎟 <a href='%s'>Купить билет</a>", html.EscapeString(m.PurchaseURL))
}

// FormatAdded formats the announcement of a newly listed match
func FormatAdded(m *match.Match) string {
	var msg strings.Builder

	msg.WriteString("🔥 <b>Открыта продажа билетов!</b>\n\n")
	writeMatchLines(&msg, m)

	if m.HasTicketLink() {
		msg.WriteString(ticketLink(m))
	}

	return strings.TrimRight(msg.String(), "\n")
}

// FormatRemoved formats the notice for a match that left the page
func FormatRemoved(m *match.Match) string {
	var msg strings.Builder

	msg.WriteString("⏱ <b>Матч больше не в продаже</b>\n\n")
	writeMatchLines(&msg, m)
	msg.WriteString("\n<i>Матч начался или продажа билетов закрыта.</i>")

	return msg.String()
}

// FormatMatchList formats the current snapshot as one message, truncated to
// fit the Bot API limit.
func FormatMatchList(matches []*match.Match) string {
	if len(matches) == 0 {
		return "Сейчас билетов в продаже нет. Я напишу, как только они появятся."
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("🏒 <b>Матчи в продаже: %d</b>\n", len(matches)))

	for i, m := range matches {
		var entry strings.Builder
		entry.WriteString("\n")
		writeMatchLines(&entry, m)
		if m.HasTicketLink() {
			entry.WriteString(ticketLink(m))
			entry.WriteString("\n")
		}

		rest := len(matches) - i
		tail := fmt.Sprintf("\n…и ещё %d", rest)
		if utf8.RuneCountInString(msg.String())+utf8.RuneCountInString(entry.String())+utf8.RuneCountInString(tail) > MaxMessageLength {
			msg.WriteString(tail)
			break
		}
		msg.WriteString(entry.String())
	}

	return strings.TrimRight(msg.String(), "\n")
}

// FormatAdminAlert formats the diagnostics message sent after repeated
// failed cycles
func FormatAdminAlert(failures int, err error) string {
	reason := "неизвестная ошибка"
	if err != nil {
		reason = err.Error()
	}
	return fmt.Sprintf("⚠️ <b>Проверка страницы не удаётся</b>\n\nНеудачных циклов подряд: %d\nПоследняя ошибка: <code>%s</code>",
		failures, html.EscapeString(truncate(reason, 1000)))
}

// FormatRecovery formats the message sent when checks succeed again
func FormatRecovery(failures int) string {
	return fmt.Sprintf("✅ <b>Проверка страницы восстановлена</b>\n\nПосле %d неудачных циклов подряд.", failures)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
