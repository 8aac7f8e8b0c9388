package app

import (
	"fmt"
)

type EmbeddingsProvider string

const (
	// EmbeddingsOpenAI uses the REST client directly.
	EmbeddingsOpenAI EmbeddingsProvider = "openai"
	// EmbeddingsOllama goes through langchaingo against a local model.
	EmbeddingsOllama EmbeddingsProvider = "ollama"
)

type GeneratorBackend string

const (
	GeneratorLangchain GeneratorBackend = "langchain"
	GeneratorOpenAI    GeneratorBackend = "openai-rest"
)

type EmbedCacheMode string

const (
	EmbedCacheRedis  EmbedCacheMode = "redis"
	EmbedCacheMemory EmbedCacheMode = "memory"
	EmbedCacheOff    EmbedCacheMode = "off"
)

type ProviderConfigErrorCode string

const (
	ProviderConfigErrorUnknownEmbeddings ProviderConfigErrorCode = "unknown_embeddings_provider"
	ProviderConfigErrorUnknownGenerator  ProviderConfigErrorCode = "unknown_generator_backend"
	ProviderConfigErrorUnknownCache      ProviderConfigErrorCode = "unknown_embed_cache"
	ProviderConfigErrorCacheNeedsRedis   ProviderConfigErrorCode = "embed_cache_requires_redis"
)

type ProviderConfigError struct {
	Code  ProviderConfigErrorCode
	Value string
	Cause error
}

func (e *ProviderConfigError) Error() string {
	if e == nil {
		return "invalid provider config"
	}
	return fmt.Sprintf("invalid provider config (code=%s value=%q): %v", e.Code, e.Value, e.Cause)
}

func (e *ProviderConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ProviderPlan is the resolved choice of embedder, generator and cache.
type ProviderPlan struct {
	Embeddings EmbeddingsProvider
	Generator  GeneratorBackend
	Cache      EmbedCacheMode
	// CacheSource is "explicit" when EMBED_CACHE was set, else "redis_default"
	// or "memory_default".
	CacheSource string
}

func resolveProviders(cfg Config, haveRedis bool) (ProviderPlan, error) {
	plan := ProviderPlan{
		Embeddings: cfg.EmbeddingsProvider,
		Generator:  cfg.GeneratorBackend,
		Cache:      cfg.EmbedCache,
	}
	if plan.Embeddings == "" {
		plan.Embeddings = EmbeddingsOpenAI
	}
	if plan.Generator == "" {
		plan.Generator = GeneratorLangchain
	}

	switch plan.Embeddings {
	case EmbeddingsOpenAI, EmbeddingsOllama:
	default:
		return ProviderPlan{}, &ProviderConfigError{
			Code:  ProviderConfigErrorUnknownEmbeddings,
			Value: string(plan.Embeddings),
			Cause: fmt.Errorf("EMBEDDINGS_PROVIDER must be openai or ollama"),
		}
	}

	switch plan.Generator {
	case GeneratorLangchain, GeneratorOpenAI:
	default:
		return ProviderPlan{}, &ProviderConfigError{
			Code:  ProviderConfigErrorUnknownGenerator,
			Value: string(plan.Generator),
			Cause: fmt.Errorf("GENERATOR_BACKEND must be langchain or openai-rest"),
		}
	}

	switch plan.Cache {
	case "":
		if haveRedis {
			plan.Cache, plan.CacheSource = EmbedCacheRedis, "redis_default"
		} else {
			plan.Cache, plan.CacheSource = EmbedCacheMemory, "memory_default"
		}
	case EmbedCacheRedis:
		if !haveRedis {
			return ProviderPlan{}, &ProviderConfigError{
				Code:  ProviderConfigErrorCacheNeedsRedis,
				Value: string(plan.Cache),
				Cause: fmt.Errorf("EMBED_CACHE=redis but REDIS_ADDR is unset"),
			}
		}
		plan.CacheSource = "explicit"
	case EmbedCacheMemory, EmbedCacheOff:
		plan.CacheSource = "explicit"
	default:
		return ProviderPlan{}, &ProviderConfigError{
			Code:  ProviderConfigErrorUnknownCache,
			Value: string(plan.Cache),
			Cause: fmt.Errorf("EMBED_CACHE must be redis, memory or off"),
		}
	}
	return plan, nil
}
