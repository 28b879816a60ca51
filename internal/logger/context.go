package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with a context carrying them.
type LogFields struct {
	DeliveryID *string // X-GitHub-Delivery header
	EventType  *string // X-GitHub-Event header
	EventID    *string // store-assigned event id
	Component  string  // e.g. "webhook.ingest", "backup.exporter"
}

// WithLogFields merges fields into ctx, newer non-empty values winning.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields on ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, newer LogFields) LogFields {
	result := existing

	if newer.DeliveryID != nil {
		result.DeliveryID = newer.DeliveryID
	}
	if newer.EventType != nil {
		result.EventType = newer.EventType
	}
	if newer.EventID != nil {
		result.EventID = newer.EventID
	}
	if newer.Component != "" {
		result.Component = newer.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
func Ptr[T any](v T) *T {
	return &v
}
