// Package calendar renders the current matches as an iCalendar feed so fans
// can subscribe to the on-sale schedule.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/icewatch/ticketwatch/internal/match"
)

// MatchDuration is the block reserved for a match in the calendar
const MatchDuration = 2*time.Hour + 30*time.Minute

const lineLimit = 75

// GenerateICS renders matches with a resolved start time as one calendar.
// Matches whose date could not be resolved are left out.
func GenerateICS(matches []*match.Match, calendarName string, now time.Time) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//ticketwatch//matches//RU\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if calendarName != "" {
		writeLine(&ics, "X-WR-CALNAME:"+escapeICS(calendarName))
	}

	stamp := formatICSTime(now)
	for _, m := range matches {
		if m == nil || m.StartsAt.IsZero() {
			continue
		}
		writeEvent(&ics, m, stamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, m *match.Match, stamp string) {
	ics.WriteString("BEGIN:VEVENT\r\n")
	writeLine(ics, fmt.Sprintf("UID:%s@ticketwatch", m.IdentityKey()))
	writeLine(ics, "DTSTAMP:"+stamp)
	writeLine(ics, "DTSTART:"+formatICSTime(m.StartsAt))
	writeLine(ics, "DTEND:"+formatICSTime(m.StartsAt.Add(MatchDuration)))
	writeLine(ics, "SUMMARY:"+escapeICS("🏒 "+m.Title))

	description := m.DateDisplay
	if m.HasTicketLink() {
		description += "\nБилеты: " + m.PurchaseURL
		writeLine(ics, "URL:"+m.PurchaseURL)
	}
	writeLine(ics, "DESCRIPTION:"+escapeICS(description))

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

// writeLine folds content lines longer than 75 octets as RFC 5545 requires,
// never splitting a UTF-8 sequence
func writeLine(ics *strings.Builder, line string) {
	for len(line) > lineLimit {
		cut := lineLimit
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar text values
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
