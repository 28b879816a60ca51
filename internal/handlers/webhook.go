package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/repo-activity-service/internal/auth"
	"github.com/PratikDhanave/repo-activity-service/internal/ingest"
	"github.com/PratikDhanave/repo-activity-service/internal/logger"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

const (
	EventHeader    = "X-GitHub-Event"
	DeliveryHeader = "X-GitHub-Delivery"
)

// Ingester is the part of ingest.Pipeline the webhook route needs.
type Ingester interface {
	Ingest(ctx context.Context, eventType string, body []byte) (ingest.Result, error)
}

// RegisterWebhookRoutes registers the ingestion endpoint.
//
// POST /webhook
// - X-Hub-Signature-256 checked by auth.SignatureMiddleware
// - X-GitHub-Event selects push / pull_request handling
// - 200 for stored, unsupported and non-actionable events
func RegisterWebhookRoutes(r gin.IRoutes, verifier *auth.Verifier, pipeline Ingester) {
	r.POST("/webhook", auth.SignatureMiddleware(verifier), func(c *gin.Context) {
		eventType := strings.TrimSpace(c.GetHeader(EventHeader))

		fields := logger.LogFields{Component: "webhook.ingest", EventType: logger.Ptr(eventType)}
		if delivery := strings.TrimSpace(c.GetHeader(DeliveryHeader)); delivery != "" {
			fields.DeliveryID = logger.Ptr(delivery)
		}
		ctx := logger.WithLogFields(c.Request.Context(), fields)

		res, err := pipeline.Ingest(ctx, eventType, auth.RawBody(c))
		if err != nil {
			status, message := ingest.PublicError(err)
			if status >= http.StatusInternalServerError {
				slog.ErrorContext(ctx, "webhook processing failed", "error", err)
			}
			c.JSON(status, gin.H{"error": message})
			return
		}

		switch res.Status {
		case ingest.StatusUnsupported:
			c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Event type '%s' not supported", eventType)})
		case ingest.StatusNotApplicable:
			c.JSON(http.StatusOK, gin.H{"message": "Event received but no valid action to process"})
		default:
			c.JSON(http.StatusOK, models.WebhookResponse{
				Message: "Event processed successfully",
				EventID: res.EventID,
				Action:  res.Event.Action,
			})
		}
	})
}
