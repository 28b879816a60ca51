package models

import "time"

// Action is the canonical classification of a repository event.
type Action string

const (
	ActionPush        Action = "PUSH"
	ActionPullRequest Action = "PULL_REQUEST"
	ActionMerge       Action = "MERGE"
)

// Valid reports whether a is one of the three persisted actions.
func (a Action) Valid() bool {
	switch a {
	case ActionPush, ActionPullRequest, ActionMerge:
		return true
	}
	return false
}

// UnknownAuthor is stored when the payload carries no sender login.
const UnknownAuthor = "Unknown"

// TimestampLayout is the ISO-8601 UTC form every Event timestamp is written in.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Event is the normalized record of one push, pull request or merge.
// ID is assigned by the store and is empty until the event is persisted.
type Event struct {
	ID         string  `json:"id,omitempty" jsonschema_description:"store-assigned identifier"`
	Author     string  `json:"author" jsonschema_description:"GitHub login of the sender, or Unknown"`
	Timestamp  string  `json:"timestamp" jsonschema:"format=date-time"`
	Action     Action  `json:"action" jsonschema:"enum=PUSH,enum=PULL_REQUEST,enum=MERGE"`
	RequestID  *string `json:"request_id" jsonschema_description:"head commit id for pushes, head sha for pull requests"`
	FromBranch *string `json:"from_branch" jsonschema_description:"source branch, null for pushes"`
	ToBranch   *string `json:"to_branch"`
}

// WebhookResponse is returned by POST /webhook once an event is stored.
type WebhookResponse struct {
	Message string `json:"message"`
	EventID string `json:"event_id"`
	Action  Action `json:"action"`
}

// EventSummary is one entry of GET /api/events/latest.
type EventSummary struct {
	Message   string `json:"message"`
	Action    Action `json:"action"`
	Timestamp string `json:"timestamp"`
}

// ActivityStats summarizes store activity for GET /api/stats and the monitor.
type ActivityStats struct {
	RecentEventsCount int64   `json:"recent_events_count"`
	LatestEvent       *string `json:"latest_event"`
	TotalEvents       int64   `json:"total_events"`
}
