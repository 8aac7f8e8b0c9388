package app

import (
	"fmt"

	"gorm.io/gorm"

	aggregates "github.com/Kcheesee/StarCitiSalesAgent/internal/data/aggregates"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/pipeline/conversation_documents"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/pipeline/conversation_email"
	jobruntime "github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/runtime"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/worker"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/analysis"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/retrieval"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type Services struct {
	Conversations domainagg.ConversationAggregate
	Engine        *retrieval.Engine
	Orchestrator  *consultant.Orchestrator
	Analyzer      *analysis.Analyzer
	Documents     *documents.Builder
	Files         *documents.FileStore

	Conversation services.ConversationService
	Catalog      services.CatalogService
	Jobs         services.JobService
	Email        services.EmailService
	Webhook      services.WebhookService

	JobNotifier *services.EventJobNotifier
	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	conversations := aggregates.NewConversationAggregate(aggregates.ConversationAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Conversations:   repos.Conversations,
		Transcript:      repos.Transcript,
		Recommendations: repos.Recommendations,
	})

	retrievalCfg, err := retrieval.LoadConfig()
	if err != nil {
		return Services{}, fmt.Errorf("load retrieval config: %w", err)
	}
	engine := retrieval.NewEngine(retrieval.EngineDeps{
		Log:         log,
		Embedder:    clients.Embedder,
		Catalog:     repos.CatalogItems,
		Metrics:     metrics,
		Config:      retrievalCfg,
		Constraints: retrieval.NewConstraintExtractor(),
	})

	jobNotifier := services.NewJobNotifier(log, clients.Bus)
	var jobOpts []services.JobServiceOption
	if clients.SendGrid == nil {
		jobOpts = append(jobOpts, services.WithoutEmail())
	}
	jobService := services.NewJobService(log, repos.JobRuns, conversations, jobNotifier, jobOpts...)

	ledger := consultant.NewLedger(conversations, consultant.SubstringDetector{})
	orchestrator, err := consultant.NewOrchestrator(consultant.OrchestratorDeps{
		Log:       log,
		Store:     conversations,
		Retriever: engine,
		Generator: clients.Generator,
		Ledger:    ledger,
		Locks:     consultant.NewTurnLocks(),
		Metrics:   metrics,
		Documents: jobService,
		Events:    clients.Bus,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init orchestrator: %w", err)
	}

	renderer, err := documents.NewRenderer()
	if err != nil {
		return Services{}, fmt.Errorf("init document renderer: %w", err)
	}
	files := documents.NewFileStore(cfg.DocumentsDir)
	builder, err := documents.NewBuilder(documents.BuilderDeps{
		Log:      log,
		Renderer: renderer,
		Store:    files,
		Catalog:  repos.CatalogItems,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init document builder: %w", err)
	}

	conversationService, err := services.NewConversationService(services.ConversationServiceDeps{
		Log:       log,
		Store:     conversations,
		Turns:     orchestrator,
		Documents: jobService,
		Files:     files,
		Events:    clients.Bus,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init conversation service: %w", err)
	}

	analyzer, err := analysis.NewAnalyzer(analysis.AnalyzerDeps{
		Log:       log,
		Store:     conversations,
		Catalog:   repos.CatalogItems,
		Ledger:    ledger,
		Metrics:   metrics,
		Documents: jobService,
		Events:    clients.Bus,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init post-call analyzer: %w", err)
	}
	webhookService := services.NewWebhookService(log, analyzer, services.WebhookConfig{
		Secret:    cfg.WebhookSecret,
		Tolerance: cfg.WebhookTolerance,
	})

	var emailService services.EmailService
	if clients.SendGrid != nil {
		emailService = services.NewEmailService(log, clients.SendGrid, files)
	}

	registry, err := wireJobRegistry(log, conversations, builder, jobService, emailService, clients)
	if err != nil {
		return Services{}, err
	}
	jobWorker := worker.NewWorker(log, repos.JobRuns, registry, jobNotifier, worker.ConfigFromEnv())

	return Services{
		Conversations: conversations,
		Engine:        engine,
		Orchestrator:  orchestrator,
		Analyzer:      analyzer,
		Documents:     builder,
		Files:         files,

		Conversation: conversationService,
		Catalog:      services.NewCatalogService(log, repos.CatalogItems, engine, clients.Embedder),
		Jobs:         jobService,
		Email:        emailService,
		Webhook:      webhookService,

		JobNotifier: jobNotifier,
		JobRegistry: registry,
		JobWorker:   jobWorker,
	}, nil
}

func wireJobRegistry(
	log *logger.Logger,
	conversations domainagg.ConversationAggregate,
	builder *documents.Builder,
	jobs services.JobService,
	email services.EmailService,
	clients Clients,
) (*jobruntime.Registry, error) {
	reg := jobruntime.NewRegistry()

	var requester conversation_documents.EmailRequester
	if email != nil {
		requester = jobs
	}
	if err := reg.Register(conversation_documents.New(log, conversations, builder, requester, clients.Bus)); err != nil {
		return nil, fmt.Errorf("register %s: %w", services.JobTypeConversationDocuments, err)
	}
	if email != nil {
		if err := reg.Register(conversation_email.New(log, conversations, email, clients.Bus)); err != nil {
			return nil, fmt.Errorf("register %s: %w", services.JobTypeConversationEmail, err)
		}
	}
	log.Info("job handlers registered", "types", reg.Types())
	return reg, nil
}
