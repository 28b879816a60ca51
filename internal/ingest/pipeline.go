// Package ingest runs one webhook delivery through normalization,
// validation and persistence.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/webhooks/v6/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/PratikDhanave/repo-activity-service/internal/logger"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
	"github.com/PratikDhanave/repo-activity-service/internal/normalize"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
	"github.com/PratikDhanave/repo-activity-service/internal/validation"
)

const tracerName = "repo-activity-service/ingest"

type Status string

const (
	StatusStored        Status = "stored"
	StatusUnsupported   Status = "unsupported"
	StatusNotApplicable Status = "not_applicable"
)

// Result is the outcome of a delivery that did not fail.
// Event and EventID are set only for StatusStored.
type Result struct {
	Status  Status
	Event   models.Event
	EventID string
}

// BackupTrigger starts a detached snapshot. It must not block.
type BackupTrigger interface {
	Trigger()
}

// Pipeline keeps no per-request state and may be shared by all requests.
type Pipeline struct {
	normalizer *normalize.Normalizer
	store      store.EventStore
	backup     BackupTrigger
}

func NewPipeline(normalizer *normalize.Normalizer, st store.EventStore, backup BackupTrigger) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		store:      st,
		backup:     backup,
	}
}

// Ingest processes an already authenticated body tagged with eventType.
// Returned errors are go-errors envelopes; see PublicError.
func (p *Pipeline) Ingest(ctx context.Context, eventType string, body []byte) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "webhook.ingest")
	defer span.End()

	evType := github.Event(strings.TrimSpace(eventType))
	span.SetAttributes(attribute.String("github.event", string(evType)))

	if !normalize.Supported(evType) {
		slog.InfoContext(ctx, "ignoring unsupported event type", "github_event", string(evType))
		return Result{Status: StatusUnsupported}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		slog.WarnContext(ctx, "webhook payload is not a JSON object", "error", err)
		return Result{}, badPayloadError("invalid JSON payload")
	}

	ev, ok := p.normalizer.Normalize(payload, evType)
	if !ok {
		action, _ := payload["action"].(string)
		slog.InfoContext(ctx, "no actionable state in event", "github_event", string(evType), "action", action)
		return Result{Status: StatusNotApplicable}, nil
	}

	if err := validation.Validate(ev); err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			slog.WarnContext(ctx, "event failed validation", "field", verr.Field, "reason", verr.Reason)
			return Result{}, verr.ToServiceError()
		}
		return Result{}, fmt.Errorf("validating event: %w", err)
	}

	id, err := p.store.Insert(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		slog.ErrorContext(ctx, "failed to persist event", "error", err, "action", string(ev.Action))
		return Result{}, persistenceError(err)
	}
	ev.ID = id

	ctx = logger.WithLogFields(ctx, logger.LogFields{EventID: logger.Ptr(id)})
	span.SetAttributes(attribute.String("event.id", id), attribute.String("event.action", string(ev.Action)))

	if p.backup != nil {
		p.backup.Trigger()
	}

	slog.InfoContext(ctx, "event stored", "action", string(ev.Action), "author", ev.Author)
	return Result{Status: StatusStored, Event: ev, EventID: id}, nil
}
