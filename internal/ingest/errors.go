package ingest

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeBadPayload  = "WEBHOOK_BAD_PAYLOAD"
	TextCodePersistence = "EVENT_PERSISTENCE_FAILED"
	TextCodeInternal    = "INTERNAL_ERROR"

	// InternalErrorMessage is the only detail callers see for server faults.
	InternalErrorMessage = "Internal server error"
)

func badPayloadError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeBadPayload)
}

func persistenceError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, "failed to persist event").
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextCodePersistence)
}

// PublicError maps err to the status and message a caller may see.
// Only bad input, validation and auth errors carry their own message.
func PublicError(err error) (int, string) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError, InternalErrorMessage
	}

	switch rich.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryAuth:
		code := rich.Code
		if code == 0 {
			code = http.StatusBadRequest
			if rich.Category == goerrors.CategoryAuth {
				code = http.StatusUnauthorized
			}
		}
		return code, rich.Message
	default:
		return http.StatusInternalServerError, InternalErrorMessage
	}
}
