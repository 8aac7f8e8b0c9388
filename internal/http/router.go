package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/Kcheesee/StarCitiSalesAgent/internal/http/handlers"
	httpMW "github.com/Kcheesee/StarCitiSalesAgent/internal/http/middleware"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler       *httpH.HealthHandler
	ConversationHandler *httpH.ConversationHandler
	ShipHandler         *httpH.ShipHandler
	JobHandler          *httpH.JobHandler
	WebhookHandler      *httpH.WebhookHandler
	RealtimeHandler     *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/metrics", cfg.HealthHandler.Metrics)
	}

	api := r.Group("/api")
	{
		// Conversations
		if h := cfg.ConversationHandler; h != nil {
			api.POST("/conversations", h.Start)
			api.GET("/conversations/:id", h.Get)
			api.DELETE("/conversations/:id", h.Delete)
			api.POST("/conversations/:id/messages", h.SendMessage)
			api.GET("/conversations/:id/recommendations", h.Recommendations)
			api.POST("/conversations/:id/complete", h.Complete)
			api.POST("/conversations/:id/documents", h.GenerateDocuments)
			api.GET("/conversations/:id/documents/:kind", h.DownloadDocument)
			api.POST("/conversations/:id/email", h.SendEmail)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/conversations/:id/events", cfg.RealtimeHandler.ConversationEvents)
		}

		// Catalog
		if h := cfg.ShipHandler; h != nil {
			api.GET("/ships/search", h.Search)
			api.GET("/ships/:slug", h.Get)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}

		// Voice provider
		if cfg.WebhookHandler != nil {
			api.POST("/webhooks/post-call", cfg.WebhookHandler.PostCall)
		}
	}

	return r
}
