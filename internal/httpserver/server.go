package httpserver

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/PratikDhanave/repo-activity-service/internal/auth"
	"github.com/PratikDhanave/repo-activity-service/internal/config"
	"github.com/PratikDhanave/repo-activity-service/internal/handlers"
	"github.com/PratikDhanave/repo-activity-service/internal/middleware"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
)

//go:embed dashboard.html
var dashboardHTML []byte

// NewRouter wires public endpoints, the webhook receiver and the read API.
// Public: /, /health, /ready, /api/*
// Signed: /webhook
func NewRouter(cfg config.Config, st store.EventStore, verifier *auth.Verifier, pipeline handlers.Ingester) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// OTel span first so recovery and access logs carry the trace id.
	if cfg.OTel.Enabled() {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
	})

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": models.FormatTimestamp(time.Now()),
		})
	})

	// Readiness: confirms the event store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "event store not reachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handlers.RegisterWebhookRoutes(r, verifier, pipeline)
	handlers.RegisterEventRoutes(r, st)

	return r
}
