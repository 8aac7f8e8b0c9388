package app

import (
	httpx "github.com/Kcheesee/StarCitiSalesAgent/internal/http"
	httpH "github.com/Kcheesee/StarCitiSalesAgent/internal/http/handlers"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

type Handlers struct {
	Health       *httpH.HealthHandler
	Conversation *httpH.ConversationHandler
	Ship         *httpH.ShipHandler
	Job          *httpH.JobHandler
	Webhook      *httpH.WebhookHandler
	Realtime     *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.Hub, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(metrics),
		Conversation: httpH.NewConversationHandler(services.Conversation, services.Jobs),
		Ship:         httpH.NewShipHandler(services.Catalog),
		Job:          httpH.NewJobHandler(services.Jobs),
		Webhook:      httpH.NewWebhookHandler(services.Webhook),
		Realtime:     httpH.NewRealtimeHandler(log, hub),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *httpx.Server {
	return httpx.NewServer(httpx.RouterConfig{
		Log:         log,
		Metrics:     metrics,
		ServiceName: cfg.ServiceName,
		CORSOrigins: cfg.CORSOrigins,

		HealthHandler:       handlers.Health,
		ConversationHandler: handlers.Conversation,
		ShipHandler:         handlers.Ship,
		JobHandler:          handlers.Job,
		WebhookHandler:      handlers.Webhook,
		RealtimeHandler:     handlers.Realtime,
	})
}
