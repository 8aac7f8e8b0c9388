package app

import (
	"context"
	"fmt"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/db"
	httpx "github.com/Kcheesee/StarCitiSalesAgent/internal/http"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Hub      *realtime.Hub
	Server   *httpx.Server

	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

// OpenDB connects and, unless DB_AUTO_MIGRATE is off, migrates.
func OpenDB(log *logger.Logger, migrate bool) (*db.Service, error) {
	svc, err := db.NewService(log, db.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if migrate {
		if err := svc.AutoMigrateAll(); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return svc, nil
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading configuration...")
	cfg := LoadConfig()

	metrics := observability.Init(log)
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	database, err := OpenDB(log, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	reposet := wireRepos(database.DB(), log)
	serviceset, err := wireServices(database.DB(), log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = database.Close()
		return nil, err
	}

	hub := realtime.NewHub(log)
	handlers := wireHandlers(log, serviceset, hub, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           database,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Hub:          hub,
		Server:       wireServer(log, cfg, handlers, metrics),
		shutdownOtel: shutdownOtel,
	}, nil
}

// Start runs the background pieces: the event forwarder feeding the SSE hub,
// the job worker and the queue-depth collector.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Clients.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
		cancel()
		return fmt.Errorf("start event forwarder: %w", err)
	}

	if a.Cfg.RunWorker && a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}

	if a.Metrics != nil {
		jobs := a.Repos.JobRuns
		a.Metrics.StartJobQueueCollector(ctx, a.Log, func(ctx context.Context) (map[string]int64, error) {
			return jobs.CountByStatus(dbctx.Context{Ctx: ctx})
		})
	}
	return nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, ":"+a.Cfg.Port, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	a.Clients.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.shutdownOtel != nil {
		sctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		defer cancel()
		if err := a.shutdownOtel(sctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
