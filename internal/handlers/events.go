package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"

	"github.com/PratikDhanave/repo-activity-service/internal/format"
	"github.com/PratikDhanave/repo-activity-service/internal/ingest"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
)

const (
	rawEventsLimit    = 50
	latestEventsLimit = 10
	recentWindow      = time.Hour
)

// RegisterEventRoutes registers the read API used by the dashboard.
//
// GET /api/events        latest 50 events, raw fields, newest first
// GET /api/events/latest latest 10 events as formatted sentences
// GET /api/stats         event counts for monitoring
// GET /api/schema        JSON schema of a raw event
func RegisterEventRoutes(r gin.IRoutes, st store.EventStore) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	eventSchema := reflector.Reflect(&models.Event{})

	r.GET("/api/events", func(c *gin.Context) {
		events, err := st.Query(c.Request.Context(), rawEventsLimit)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to query events", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": ingest.InternalErrorMessage})
			return
		}
		c.JSON(http.StatusOK, events)
	})

	r.GET("/api/events/latest", func(c *gin.Context) {
		events, err := st.Query(c.Request.Context(), latestEventsLimit)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to query latest events", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": ingest.InternalErrorMessage})
			return
		}
		c.JSON(http.StatusOK, format.Summaries(events))
	})

	r.GET("/api/stats", func(c *gin.Context) {
		stats, err := st.Stats(c.Request.Context(), time.Now().Add(-recentWindow))
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to compute stats", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": ingest.InternalErrorMessage})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	r.GET("/api/schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, eventSchema)
	})
}
