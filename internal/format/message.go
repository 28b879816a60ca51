// Package format renders stored events as dashboard sentences.
package format

import (
	"fmt"
	"time"

	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

// TimeLayout renders e.g. "01 April 2026 - 09:30 AM UTC".
const TimeLayout = "02 January 2006 - 03:04 PM UTC"

// Time formats an event timestamp; unparseable input is returned unchanged.
func Time(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(TimeLayout)
}

// Message returns the human-readable sentence for ev.
func Message(ev models.Event) string {
	when := Time(ev.Timestamp)
	switch ev.Action {
	case models.ActionPush:
		return fmt.Sprintf("%s pushed to %s on %s", ev.Author, deref(ev.ToBranch), when)
	case models.ActionPullRequest:
		return fmt.Sprintf("%s submitted a pull request from %s to %s on %s",
			ev.Author, deref(ev.FromBranch), deref(ev.ToBranch), when)
	case models.ActionMerge:
		return fmt.Sprintf("%s merged branch %s to %s on %s",
			ev.Author, deref(ev.FromBranch), deref(ev.ToBranch), when)
	default:
		return fmt.Sprintf("%s performed %s on %s", ev.Author, ev.Action, when)
	}
}

// Summaries converts events to the /api/events/latest shape, keeping order.
func Summaries(events []models.Event) []models.EventSummary {
	out := make([]models.EventSummary, 0, len(events))
	for _, ev := range events {
		out = append(out, models.EventSummary{
			Message:   Message(ev),
			Action:    ev.Action,
			Timestamp: ev.Timestamp,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return "unknown"
	}
	return *s
}
