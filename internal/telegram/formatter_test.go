package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/icewatch/ticketwatch/internal/match"
)

func testMatch(title, date, url string) *match.Match {
	m := match.New(title, date, url)
	m.Time = "19:30"
	return m
}

func TestFormatAdded(t *testing.T) {
	tests := []struct {
		name        string
		match       *match.Match
		contains    []string
		notContains []string
	}{
		{
			name:  "with ticket link",
			match: testMatch("Команда А — Команда Б", "10 ноября, пятница, 19:30", "https://tickets.example.com/1"),
			contains: []string{
				"📅 10 ноября, пятница, 19:30",
				"🏒 <b>Команда А — Команда Б</b>",
				"🕒 19:30",
				"🎟 <a href='https://tickets.example.com/1'>Купить билет</a>",
			},
		},
		{
			name:        "without ticket link",
			match:       testMatch("Команда В — Команда Г", "14 декабря", ""),
			contains:    []string{"Команда В — Команда Г", "14 декабря"},
			notContains: []string{"Купить билет", "<a href"},
		},
		{
			name:        "escapes html",
			match:       testMatch("A <script> & B", "1 октября", "https://t.example.com/?a=1&b=2"),
			contains:    []string{"A &lt;script&gt; &amp; B", "a=1&amp;b=2"},
			notContains: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAdded(tt.match)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatAdded() missing %q in:\n%s", want, got)
				}
			}
			for _, bad := range tt.notContains {
				if strings.Contains(got, bad) {
					t.Errorf("FormatAdded() should not contain %q:\n%s", bad, got)
				}
			}
		})
	}
}

func TestFormatAdded_RawTimeFallback(t *testing.T) {
	m := match.New("A — B", "1 октября", "")
	m.RawTime = "время уточняется"

	if got := FormatAdded(m); !strings.Contains(got, "🕒 время уточняется") {
		t.Errorf("FormatAdded() should show the scraped time text:\n%s", got)
	}

	m.RawTime = ""
	if got := FormatAdded(m); strings.Contains(got, "🕒") {
		t.Errorf("FormatAdded() should omit an empty time line:\n%s", got)
	}
}

func TestFormatRemoved(t *testing.T) {
	got := FormatRemoved(testMatch("Команда А — Команда Б", "10 ноября", "https://tickets.example.com/1"))

	for _, want := range []string{"Команда А — Команда Б", "10 ноября", "не в продаже"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatRemoved() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Купить билет") {
		t.Error("FormatRemoved() should not carry a purchase link")
	}
}

func TestFormatMatchList(t *testing.T) {
	if got := FormatMatchList(nil); !strings.Contains(got, "нет") {
		t.Errorf("FormatMatchList(nil) = %q", got)
	}

	matches := []*match.Match{
		testMatch("A — B", "1 октября", "https://t.example.com/1"),
		testMatch("C — D", "2 октября", ""),
	}
	got := FormatMatchList(matches)
	if !strings.Contains(got, "Матчи в продаже: 2") {
		t.Errorf("FormatMatchList() header missing:\n%s", got)
	}
	if strings.Index(got, "A — B") > strings.Index(got, "C — D") {
		t.Error("FormatMatchList() should keep page order")
	}
	if strings.Count(got, "Купить билет") != 1 {
		t.Errorf("FormatMatchList() should link only matches with tickets:\n%s", got)
	}
}

func TestFormatMatchList_Truncates(t *testing.T) {
	var matches []*match.Match
	for i := 0; i < 200; i++ {
		matches = append(matches, testMatch(fmt.Sprintf("Команда %d — Команда %d", i, i+1), fmt.Sprintf("%d октября", i%28+1), "https://tickets.example.com/very/long/path/to/widget"))
	}

	got := FormatMatchList(matches)
	if n := utf8.RuneCountInString(got); n > MaxMessageLength {
		t.Errorf("message has %d runes, limit %d", n, MaxMessageLength)
	}
	if !strings.Contains(got, "…и ещё") {
		t.Error("truncated list should say how many matches were left out")
	}
}

func TestFormatAdminAlert(t *testing.T) {
	got := FormatAdminAlert(3, errors.New("status <503>"))
	if !strings.Contains(got, "3") || !strings.Contains(got, "status &lt;503&gt;") {
		t.Errorf("FormatAdminAlert() = %q", got)
	}
	if got := FormatAdminAlert(4, nil); !strings.Contains(got, "неизвестная ошибка") {
		t.Errorf("FormatAdminAlert(nil) = %q", got)
	}
	if got := FormatRecovery(5); !strings.Contains(got, "5") {
		t.Errorf("FormatRecovery() = %q", got)
	}
}
