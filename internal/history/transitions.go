// Package history reconstructs status intervals and field histories from Jira changelogs.
package history

import (
	"slices"
	"strings"
	"time"

	"team-health/internal/jira"
)

// StatusTransition is a single status change.
type StatusTransition struct {
	Date       time.Time `json:"date"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
}

// Transitions extracts the status changes of a changelog in ascending date order. The input
// order is not trusted; entries with the same timestamp keep their relative order.
func Transitions(changelog []jira.ChangelogEntry) []StatusTransition {
	var out []StatusTransition
	for _, e := range changelog {
		for _, itm := range e.Items {
			if !strings.EqualFold(itm.Field, "status") {
				continue
			}
			out = append(out, StatusTransition{
				Date:       e.Created,
				FromStatus: itm.FromString,
				ToStatus:   itm.ToString,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b StatusTransition) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// WholeDays floors d to whole days. Negative durations count as zero.
func WholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

func sameStatus(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
