package commands

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/watcher"
)

const (
	unknownText = "Не понимаю эту команду. Список команд: /help"
	errorText   = "⚠️ Не получилось выполнить команду, попробуйте позже."
)

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("🏒 <b>Слежу за продажей билетов на матчи</b>\n\n")
	b.WriteString("/start — подписаться на уведомления\n")
	b.WriteString("/stop — отписаться\n")
	b.WriteString("/matches — матчи, которые сейчас в продаже\n")
	b.WriteString("/status — когда была последняя проверка\n")
	b.WriteString("/help — эта справка")
	if admin {
		b.WriteString("\n/stats — метрики бота")
	}
	return b.String()
}

func formatStatus(st watcher.Status, subscribers int, loc *time.Location, now time.Time) string {
	var b strings.Builder

	if st.Degraded() {
		b.WriteString("⚠️ <b>Проверка страницы не удаётся</b>\n\n")
	} else {
		b.WriteString("📊 <b>Состояние</b>\n\n")
	}

	if st.LastCheck.IsZero() {
		b.WriteString("Проверок ещё не было\n")
	} else {
		b.WriteString(fmt.Sprintf("Последняя проверка: %s (%s назад)\n",
			st.LastCheck.In(loc).Format("02.01.2006 15:04"), formatAgo(now.Sub(st.LastCheck))))
	}
	if !st.LastSuccess.IsZero() && !st.LastSuccess.Equal(st.LastCheck) {
		b.WriteString(fmt.Sprintf("Последняя успешная: %s\n", st.LastSuccess.In(loc).Format("02.01.2006 15:04")))
	}
	if st.LastError != "" {
		b.WriteString(fmt.Sprintf("Ошибка: <code>%s</code>\n", html.EscapeString(st.LastError)))
	}
	b.WriteString(fmt.Sprintf("Матчей в продаже: %d\n", st.Matches))
	if subscribers >= 0 {
		b.WriteString(fmt.Sprintf("Подписчиков: %d\n", subscribers))
	}
	if st.ConsecutiveFailures > 0 {
		b.WriteString(fmt.Sprintf("Неудачных проверок подряд: %d\n", st.ConsecutiveFailures))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "меньше минуты"
	case d < time.Hour:
		return fmt.Sprintf("%d мин", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d ч %d мин", int(d.Hours()), int(d.Minutes())%60)
	}
}

func formatStats(snap logger.MetricsSnapshot) string {
	var b strings.Builder
	b.WriteString("📈 <b>Метрики</b>\n")

	if len(snap.Counters) > 0 {
		b.WriteString("\n<b>Счётчики</b>\n")
		for _, k := range sortedKeys(snap.Counters) {
			b.WriteString(fmt.Sprintf("%s: %d\n", html.EscapeString(k), snap.Counters[k]))
		}
	}
	if len(snap.Gauges) > 0 {
		b.WriteString("\n<b>Значения</b>\n")
		for _, k := range sortedKeys(snap.Gauges) {
			b.WriteString(fmt.Sprintf("%s: %g\n", html.EscapeString(k), snap.Gauges[k]))
		}
	}
	if len(snap.Timings) > 0 {
		b.WriteString("\n<b>Время</b>\n")
		for _, k := range sortedKeys(snap.Timings) {
			t := snap.Timings[k]
			b.WriteString(fmt.Sprintf("%s: %d× avg %s max %s\n", html.EscapeString(k), t.Count, t.Average, t.Max))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
