package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/icewatch/ticketwatch/internal/match"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt time.Time      `json:"checked_at"`
	Source    string         `json:"source"`
	Baseline  bool           `json:"baseline"` // no snapshot was stored before
	OnSale    int            `json:"on_sale"`
	Skipped   int            `json:"skipped,omitempty"`
	Added     []*match.Match `json:"added"`
	Removed   []*match.Match `json:"removed"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if result.Baseline {
		fmt.Fprintln(w, "No snapshot stored yet; every match is reported as added.")
	}

	if len(result.Added) == 0 && len(result.Removed) == 0 {
		fmt.Fprintf(w, "No changes. %d matches on sale.\n", result.OnSale)
		return nil
	}

	for _, m := range result.Added {
		writeMatch(w, "ADDED", m, verbose)
	}
	for _, m := range result.Removed {
		writeMatch(w, "REMOVED", m, verbose)
	}

	fmt.Fprintf(w, "\nTotal: %d added, %d removed, %d on sale\n", len(result.Added), len(result.Removed), result.OnSale)
	if result.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d incomplete listings\n", result.Skipped)
	}
	return nil
}

func writeMatch(w io.Writer, prefix string, m *match.Match, verbose bool) {
	fmt.Fprintf(w, "%s: %s (%s)\n", prefix, m.Title, m.DateDisplay)
	if !verbose {
		return
	}
	fmt.Fprintf(w, "     Key: %s\n", m.IdentityKey())
	if !m.StartsAt.IsZero() {
		fmt.Fprintf(w, "     Starts: %s\n", m.StartsAt.Format(time.RFC3339))
	}
	if m.HasTicketLink() {
		fmt.Fprintf(w, "     Tickets: %s\n", m.PurchaseURL)
	}
}
