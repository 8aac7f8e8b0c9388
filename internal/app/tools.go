package app

import (
	"context"
	"fmt"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/retrieval"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

// EmbedCatalog fills in missing catalog vectors. It needs only the database
// and the embedder, so it runs without generator or email credentials.
func EmbedCatalog(ctx context.Context, log *logger.Logger, batch int) (int, error) {
	cfg := LoadConfig()
	database, err := OpenDB(log, cfg.AutoMigrate)
	if err != nil {
		return 0, err
	}
	defer database.Close()

	rdb, err := wireRedis(ctx, log)
	if err != nil {
		return 0, err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	plan, err := resolveProviders(cfg, rdb != nil)
	if err != nil {
		return 0, err
	}
	embedder, err := wireEmbedder(log, cfg, plan, rdb)
	if err != nil {
		return 0, err
	}

	reposet := wireRepos(database.DB(), log)
	engine := retrieval.NewEngine(retrieval.EngineDeps{
		Log:         log,
		Embedder:    embedder,
		Catalog:     reposet.CatalogItems,
		Config:      retrieval.DefaultConfig(),
		Constraints: retrieval.NewConstraintExtractor(),
	})
	return services.NewCatalogService(log, reposet.CatalogItems, engine, embedder).EmbedMissing(ctx, batch)
}

// Ask runs one consultant turn in a fresh conversation.
func (a *App) Ask(ctx context.Context, question string, forceRecommendations bool) (*consultant.TurnResult, error) {
	if a == nil || a.Services.Conversation == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	snap, err := a.Services.Conversation.Start(ctx, services.StartConversationInput{})
	if err != nil {
		return nil, err
	}
	return a.Services.Conversation.SendMessage(ctx, snap.Conversation.ID, question, forceRecommendations)
}
