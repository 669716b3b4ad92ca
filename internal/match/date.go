package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownDate is displayed when the day or the month is missing
const UnknownDate = "Дата неизвестна"

const (
	DefaultSeasonStartMonth = time.August
	DefaultPastTolerance    = 30 * 24 * time.Hour
	DefaultKickoff          = "19:00"
	DefaultTimezone         = "Europe/Moscow"
)

type monthName struct {
	month    time.Month
	genitive string
}

// months maps abbreviated (and full) month spellings to the genitive form
// used after a day number ("10 ноября").
var months = map[string]monthName{
	"янв":  {time.January, "января"},
	"фев":  {time.February, "февраля"},
	"февр": {time.February, "февраля"},
	"мар":  {time.March, "марта"},
	"апр":  {time.April, "апреля"},
	"май":  {time.May, "мая"},
	"мая":  {time.May, "мая"},
	"июн":  {time.June, "июня"},
	"июл":  {time.July, "июля"},
	"авг":  {time.August, "августа"},
	"сен":  {time.September, "сентября"},
	"сент": {time.September, "сентября"},
	"окт":  {time.October, "октября"},
	"ноя":  {time.November, "ноября"},
	"нояб": {time.November, "ноября"},
	"дек":  {time.December, "декабря"},
}

var weekdays = map[string]string{
	"пн": "понедельник",
	"вт": "вторник",
	"ср": "среда",
	"чт": "четверг",
	"пт": "пятница",
	"сб": "суббота",
	"вс": "воскресенье",
}

func init() {
	// Accept the full genitive spelling too ("ноября" → "ноября").
	full := make(map[string]monthName, 12)
	for _, m := range months {
		full[m.genitive] = m
	}
	for k, v := range full {
		months[k] = v
	}
}

var clockPattern = regexp.MustCompile(`(?:^|\D)(\d{1,2})\s*[:.\-]\s*(\d{2})(?:\D|$)`)

// LookupMonth resolves an abbreviated month to its number and genitive form
func LookupMonth(abbr string) (time.Month, string, bool) {
	m, ok := months[cleanFragment(abbr)]
	if !ok {
		return 0, "", false
	}
	return m.month, m.genitive, true
}

// LookupWeekday resolves an abbreviated weekday to its full name
func LookupWeekday(abbr string) (string, bool) {
	w, ok := weekdays[cleanFragment(abbr)]
	return w, ok
}

// SplitMonthField splits a combined "ноя, пт" field into month and weekday.
// A field without a comma is treated as month-only.
func SplitMonthField(field string) (month, weekday string) {
	month, weekday, _ = strings.Cut(field, ",")
	return cleanFragment(month), cleanFragment(weekday)
}

// ParseClock extracts hour and minute from "19:00", "19.00" or "19-00".
func ParseClock(s string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func cleanFragment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".")
}

// NormalizedDate is the canonical form of a scraped date
type NormalizedDate struct {
	Display  string
	Month    string // full form, or the raw fragment if it could not be resolved
	Weekday  string // full form, empty when absent
	Time     string // "HH:MM", empty when the scraped time was invalid
	StartsAt time.Time
}

// Normalizer converts locale-abbreviated date fragments into display strings
// and resolved start times. Zero fields fall back to the package defaults.
type Normalizer struct {
	SeasonStartMonth time.Month
	PastTolerance    time.Duration
	DefaultKickoff   string
	Location         *time.Location
	Now              func() time.Time
}

// NewNormalizer creates a Normalizer with season start in August, a 30 day
// past tolerance and Moscow time.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		SeasonStartMonth: DefaultSeasonStartMonth,
		PastTolerance:    DefaultPastTolerance,
		DefaultKickoff:   DefaultKickoff,
		Location:         LoadLocation(DefaultTimezone),
		Now:              time.Now,
	}
}

// LoadLocation loads a time zone, falling back to a fixed MSK offset
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// Normalize builds the canonical date for the scraped fragments.
// It never fails: anything it cannot understand degrades to a partial string.
func (n *Normalizer) Normalize(day, monthField, clock string) NormalizedDate {
	var out NormalizedDate

	day = strings.TrimSpace(day)
	monthAbbr, weekdayAbbr := SplitMonthField(monthField)

	monthNum, genitive, monthOK := LookupMonth(monthAbbr)
	if monthOK {
		out.Month = genitive
	} else {
		out.Month = monthAbbr
	}

	if w, ok := LookupWeekday(weekdayAbbr); ok {
		out.Weekday = w
	}

	hour, minute, clockOK := ParseClock(clock)
	if clockOK {
		out.Time = formatClock(hour, minute)
	}

	var b strings.Builder
	if day == "" || monthAbbr == "" {
		b.WriteString(UnknownDate)
	} else {
		b.WriteString(day)
		b.WriteString(" ")
		b.WriteString(out.Month)
	}
	if out.Weekday != "" {
		b.WriteString(", ")
		b.WriteString(out.Weekday)
	}
	if out.Time != "" {
		b.WriteString(", ")
		b.WriteString(out.Time)
	}
	out.Display = b.String()

	if !monthOK {
		return out
	}
	dayNum, err := strconv.Atoi(day)
	if err != nil || dayNum < 1 || dayNum > 31 {
		return out
	}
	if !clockOK {
		hour, minute, _ = ParseClock(n.kickoff())
	}
	out.StartsAt = n.Resolve(monthNum, dayNum, hour, minute)
	return out
}

// Resolve assigns a year to a date that omits one. Returns the zero time for
// impossible dates such as 31 февраля.
func (n *Normalizer) Resolve(month time.Month, day, hour, minute int) time.Time {
	loc := n.location()
	now := n.now().In(loc)
	year := SeasonYear(now, month, n.seasonStart())

	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}
	}
	if now.Sub(t) > n.tolerance() {
		t = time.Date(year+1, month, day, hour, minute, 0, 0, loc)
		if t.Day() != day {
			return time.Time{}
		}
	}
	return t
}

// SeasonYear picks the calendar year of a match month for a season that
// starts in seasonStart: late-season months seen before the new year belong
// to the next calendar year.
func SeasonYear(now time.Time, month, seasonStart time.Month) int {
	if now.Month() >= seasonStart && month < seasonStart {
		return now.Year() + 1
	}
	return now.Year()
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return LoadLocation(DefaultTimezone)
	}
	return n.Location
}

func (n *Normalizer) seasonStart() time.Month {
	if n.SeasonStartMonth < time.January || n.SeasonStartMonth > time.December {
		return DefaultSeasonStartMonth
	}
	return n.SeasonStartMonth
}

func (n *Normalizer) kickoff() string {
	if _, _, ok := ParseClock(n.DefaultKickoff); ok {
		return n.DefaultKickoff
	}
	return DefaultKickoff
}

func (n *Normalizer) tolerance() time.Duration {
	if n.PastTolerance <= 0 {
		return DefaultPastTolerance
	}
	return n.PastTolerance
}

func formatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// IsPast checks if the match start has passed.
// Returns false if the date could not be resolved.
func (m *Match) IsPast(now time.Time) bool {
	if m.StartsAt.IsZero() {
		return false
	}
	return m.StartsAt.Before(now)
}

// IsUpcoming checks if the match is in the future.
// Returns true if the date could not be resolved.
func (m *Match) IsUpcoming(now time.Time) bool {
	if m.StartsAt.IsZero() {
		return true
	}
	return m.StartsAt.After(now)
}
