package main

import (
	"fmt"
	"os"
	"time"

	"github.com/icewatch/ticketwatch/internal/calendar"
	"github.com/icewatch/ticketwatch/internal/match"
)

func main() {
	normalizer := match.NewNormalizer()

	// Two sample listings as they appear on the ticket page
	samples := []struct{ day, month, clock, title, url string }{
		{"10", "ноя, пт", "19:30", "ЦСКА — Спартак", "https://tickets.example.com/w/1"},
		{"14", "дек", "время уточняется", "Динамо — СКА", ""},
	}

	matches := make([]*match.Match, 0, len(samples))
	for _, s := range samples {
		date := normalizer.Normalize(s.day, s.month, s.clock)
		m := match.New(s.title, date.Display, s.url)
		m.StartsAt = date.StartsAt
		matches = append(matches, m)
	}

	icsContent := calendar.GenerateICS(matches, "Билеты на хоккей", time.Now())

	// Write to file (owner read/write only)
	filename := "test-matches.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or subscribe to /calendar.ics on a running instance")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
