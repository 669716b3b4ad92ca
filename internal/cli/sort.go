package cli

import (
	"sort"
	"strings"

	"github.com/icewatch/ticketwatch/internal/match"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByTitle SortOrder = "title"
)

// sortMatches sorts matches in place. An empty order keeps page order.
func sortMatches(matches []*match.Match, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(matches, func(i, j int) bool {
			return compareByDate(matches[i], matches[j])
		})
	case SortByTitle:
		sort.SliceStable(matches, func(i, j int) bool {
			ti, tj := strings.ToLower(matches[i].Title), strings.ToLower(matches[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(matches[i], matches[j])
		})
	}
}

// compareByDate reports whether i starts before j. Matches without a
// resolved date go last, ordered by title.
func compareByDate(i, j *match.Match) bool {
	if !i.StartsAt.IsZero() && !j.StartsAt.IsZero() {
		return i.StartsAt.Before(j.StartsAt)
	}
	if !i.StartsAt.IsZero() {
		return true
	}
	if !j.StartsAt.IsZero() {
		return false
	}
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
