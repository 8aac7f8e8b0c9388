package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/retrieval"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/llm"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/openai"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/redisx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/sendgrid"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime/bus"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type Clients struct {
	Redis     *goredis.Client
	Bus       bus.Bus
	Plan      ProviderPlan
	Embedder  retrieval.Embedder
	Generator consultant.Generator
	// SendGrid is nil when SENDGRID_API_KEY is unset; email jobs are then not
	// registered.
	SendGrid sendgrid.Client
}

// wireRedis returns a nil client when REDIS_ADDR is unset.
func wireRedis(ctx context.Context, log *logger.Logger) (*goredis.Client, error) {
	rdb, err := redisx.NewFromEnv(ctx)
	if errors.Is(err, redisx.ErrNotConfigured) {
		log.Info("REDIS_ADDR unset; using in-process event bus and cache")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	return rdb, nil
}

func wireBus(log *logger.Logger, cfg Config, rdb *goredis.Client) (bus.Bus, error) {
	if rdb == nil {
		return bus.NewLocalBus(), nil
	}
	b, err := bus.NewRedisBus(rdb, cfg.RedisChannel, log)
	if err != nil {
		return nil, fmt.Errorf("init redis bus: %w", err)
	}
	return b, nil
}

// wireEmbedder builds the embedder named by plan and wraps it in the cache.
func wireEmbedder(log *logger.Logger, cfg Config, plan ProviderPlan, rdb *goredis.Client) (retrieval.Embedder, error) {
	var (
		inner     retrieval.Embedder
		namespace string
	)
	switch plan.Embeddings {
	case EmbeddingsOllama:
		lcfg := llm.ConfigFromEnv()
		lcfg.Provider = llm.ProviderOllama
		emb, err := llm.NewEmbedder(lcfg)
		if err != nil {
			return nil, fmt.Errorf("init ollama embedder: %w", err)
		}
		inner, namespace = emb, "ollama:"+lcfg.EmbedModel
	default:
		client, err := openai.NewFromEnv(log)
		if err != nil {
			return nil, fmt.Errorf("init openai embedder: %w", err)
		}
		inner, namespace = client, "openai:"+client.EmbedModel()
	}

	var cache retrieval.VectorCache
	switch plan.Cache {
	case EmbedCacheOff:
		return inner, nil
	case EmbedCacheRedis:
		cache = retrieval.NewRedisCache(rdb, cfg.EmbedCacheTTL, log)
	default:
		cache = retrieval.NewMemoryCache(cfg.EmbedCacheSize)
	}
	log.Info("embedding cache", "mode", plan.Cache, "source", plan.CacheSource, "namespace", namespace)
	return retrieval.NewCachedEmbedder(inner, cache, namespace), nil
}

func wireGenerator(log *logger.Logger, plan ProviderPlan) (consultant.Generator, error) {
	if plan.Generator == GeneratorOpenAI {
		client, err := openai.NewFromEnv(log)
		if err != nil {
			return nil, fmt.Errorf("init openai generator: %w", err)
		}
		return services.NewOpenAIGenerator(client)
	}
	model, err := llm.NewModel(log, llm.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init llm generator: %w", err)
	}
	return services.NewLLMGenerator(model)
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	rdb, err := wireRedis(ctx, log)
	if err != nil {
		return Clients{}, err
	}
	out := Clients{Redis: rdb}

	plan, err := resolveProviders(cfg, rdb != nil)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Plan = plan

	if out.Bus, err = wireBus(log, cfg, rdb); err != nil {
		out.Close()
		return Clients{}, err
	}
	if out.Embedder, err = wireEmbedder(log, cfg, plan, rdb); err != nil {
		out.Close()
		return Clients{}, err
	}
	if out.Generator, err = wireGenerator(log, plan); err != nil {
		out.Close()
		return Clients{}, err
	}

	sg, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("email delivery disabled", "error", err)
	} else {
		out.SendGrid = sg
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
