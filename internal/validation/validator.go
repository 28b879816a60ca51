package validation

import (
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

const TextCodeInvalidEvent = "EVENT_VALIDATION_FAILED"

// ValidationError describes the first structural problem found on an event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Reason)
}

// ToServiceError wraps the error in a 400 validation envelope.
func (e *ValidationError) ToServiceError() *goerrors.Error {
	return goerrors.NewValidation(e.Error(), goerrors.FieldError{
		Field:   e.Field,
		Message: e.Reason,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeInvalidEvent)
}

// Validate checks an event that the normalizer marked as actionable.
func Validate(ev models.Event) error {
	if ev.Author == "" {
		return &ValidationError{Field: "author", Reason: "is required"}
	}
	if ev.Timestamp == "" {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if ev.Action == "" {
		return &ValidationError{Field: "action", Reason: "is required"}
	}
	if ev.RequestID == nil || *ev.RequestID == "" {
		return &ValidationError{Field: "request_id", Reason: "is required"}
	}
	if !ev.Action.Valid() {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("must be one of PUSH, PULL_REQUEST, MERGE, got %q", ev.Action)}
	}
	if _, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err != nil {
		return &ValidationError{Field: "timestamp", Reason: "must be an ISO-8601 timestamp"}
	}
	return nil
}
