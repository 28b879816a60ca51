// Package normalize maps GitHub webhook payloads onto models.Event.
package normalize

import (
	"strings"
	"time"

	"github.com/go-playground/webhooks/v6/github"

	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

const branchRefPrefix = "refs/heads/"

// Supported reports whether eventType is one the normalizer understands.
func Supported(eventType github.Event) bool {
	return eventType == github.PushEvent || eventType == github.PullRequestEvent
}

// Normalizer is stateless apart from its clock and safe for concurrent use.
type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock is New with a fixed time source.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize returns the canonical event for payload and false when the
// payload carries nothing actionable (unknown ref, PR action, malformed fields).
func (n *Normalizer) Normalize(payload map[string]any, eventType github.Event) (models.Event, bool) {
	if payload == nil {
		return models.Event{}, false
	}

	var (
		ev models.Event
		ok bool
	)
	switch eventType {
	case github.PushEvent:
		ev, ok = normalizePush(payload)
	case github.PullRequestEvent:
		ev, ok = normalizePullRequest(payload)
	}
	if !ok {
		return models.Event{}, false
	}

	ev.Author = author(payload)
	ev.Timestamp = models.FormatTimestamp(n.now())
	return ev, true
}

func normalizePush(payload map[string]any) (models.Event, bool) {
	ref, ok := lookupString(payload, "ref")
	if !ok || !strings.HasPrefix(ref, branchRefPrefix) {
		return models.Event{}, false
	}
	branch := strings.TrimPrefix(ref, branchRefPrefix)
	if branch == "" {
		return models.Event{}, false
	}

	return models.Event{
		Action:    models.ActionPush,
		RequestID: pushCommitID(payload),
		ToBranch:  &branch,
	}, true
}

// pushCommitID prefers head_commit.id, then commits[0].id.
func pushCommitID(payload map[string]any) *string {
	if head, ok := lookupMap(payload, "head_commit"); ok {
		if id, ok := lookupString(head, "id"); ok {
			return &id
		}
	}
	if first, ok := firstMap(payload, "commits"); ok {
		if id, ok := lookupString(first, "id"); ok {
			return &id
		}
	}
	return nil
}

func normalizePullRequest(payload map[string]any) (models.Event, bool) {
	pr, ok := lookupMap(payload, "pull_request")
	if !ok {
		return models.Event{}, false
	}

	var action models.Action
	prAction, _ := lookupString(payload, "action")
	switch prAction {
	case "opened":
		action = models.ActionPullRequest
	case "closed":
		if merged, _ := lookupBool(pr, "merged"); !merged {
			return models.Event{}, false
		}
		action = models.ActionMerge
	default:
		return models.Event{}, false
	}

	ev := models.Event{Action: action}
	if head, ok := lookupMap(pr, "head"); ok {
		if ref, ok := lookupString(head, "ref"); ok {
			ev.FromBranch = &ref
		}
		if sha, ok := lookupString(head, "sha"); ok {
			ev.RequestID = &sha
		}
	}
	if base, ok := lookupMap(pr, "base"); ok {
		if ref, ok := lookupString(base, "ref"); ok {
			ev.ToBranch = &ref
		}
	}
	return ev, true
}

func author(payload map[string]any) string {
	if sender, ok := lookupMap(payload, "sender"); ok {
		if login, ok := lookupString(sender, "login"); ok {
			return login
		}
	}
	return models.UnknownAuthor
}

// lookupString is absent when the key is missing, not a string, or empty.
func lookupString(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func lookupMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func lookupBool(m map[string]any, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// firstMap returns the first element of the array at key when it is an object.
func firstMap(m map[string]any, key string) (map[string]any, bool) {
	list, ok := m[key].([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	v, ok := list[0].(map[string]any)
	return v, ok
}
