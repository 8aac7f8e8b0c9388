package app

import (
	"strings"
	"time"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
)

type Config struct {
	Port            string
	ServiceName     string
	Environment     string
	Version         string
	ShutdownTimeout time.Duration

	DocumentsDir     string
	WebhookSecret    string
	WebhookTolerance time.Duration

	CORSOrigins  []string
	RedisChannel string

	EmbeddingsProvider EmbeddingsProvider
	GeneratorBackend   GeneratorBackend
	EmbedCache         EmbedCacheMode
	EmbedCacheTTL      time.Duration
	EmbedCacheSize     int

	AutoMigrate bool
	RunWorker   bool
}

func LoadConfig() Config {
	origins := envutil.CSV("EXTRA_CORS_ORIGINS")
	if fe := strings.TrimSpace(envutil.String("FRONTEND_URL", "")); fe != "" {
		origins = append([]string{fe}, origins...)
	}
	return Config{
		Port:            envutil.String("PORT", "8080"),
		ServiceName:     envutil.String("OTEL_SERVICE_NAME", "starciti-sales-agent"),
		Environment:     envutil.String("APP_ENV", "development"),
		Version:         envutil.String("APP_VERSION", ""),
		ShutdownTimeout: envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),

		DocumentsDir:     envutil.String("DOCUMENTS_DIR", "./generated"),
		WebhookSecret:    envutil.String("WEBHOOK_SECRET", ""),
		WebhookTolerance: envutil.Seconds("WEBHOOK_TOLERANCE_SECONDS", 30*time.Minute),

		CORSOrigins:  origins,
		RedisChannel: envutil.String("REDIS_CHANNEL", "starciti:events"),

		EmbeddingsProvider: EmbeddingsProvider(strings.ToLower(envutil.String("EMBEDDINGS_PROVIDER", string(EmbeddingsOpenAI)))),
		GeneratorBackend:   GeneratorBackend(strings.ToLower(envutil.String("GENERATOR_BACKEND", string(GeneratorLangchain)))),
		EmbedCache:         EmbedCacheMode(strings.ToLower(envutil.String("EMBED_CACHE", ""))),
		EmbedCacheTTL:      envutil.Seconds("EMBED_CACHE_TTL_SECONDS", 24*time.Hour),
		EmbedCacheSize:     envutil.Int("EMBED_CACHE_SIZE", 512),

		AutoMigrate: envutil.Bool("DB_AUTO_MIGRATE", true),
		RunWorker:   envutil.Bool("RUN_WORKER", true),
	}
}
