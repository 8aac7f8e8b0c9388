package retrieval

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
)

//go:embed retrieval.yaml
var defaultConfigYAML []byte

type Config struct {
	TopK                int     `yaml:"top_k"`
	MinSimilarity       float64 `yaml:"min_similarity"`
	EmbedTimeoutSeconds int     `yaml:"embed_timeout_seconds"`

	Fallback struct {
		Score float64  `yaml:"score"`
		Ships []string `yaml:"ships"`
	} `yaml:"fallback"`

	Hybrid struct {
		Boost float64 `yaml:"boost"`
	} `yaml:"hybrid"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"cache"`
}

func (c Config) EmbedTimeout() time.Duration {
	if c.EmbedTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// DefaultConfig parses the embedded retrieval.yaml.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("retrieval: embedded config: %v", err))
	}
	return cfg
}

// LoadConfig layers RETRIEVAL_CONFIG_PATH and then env overrides on top of the
// embedded defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("RETRIEVAL_CONFIG_PATH")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read retrieval config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse retrieval config %q: %w", path, err)
		}
	}
	if ships := envutil.CSV("RETRIEVAL_FALLBACK_SHIPS"); len(ships) > 0 {
		cfg.Fallback.Ships = ships
	}
	cfg.TopK = envutil.Int("RETRIEVAL_TOP_K", cfg.TopK)
	cfg.MinSimilarity = envutil.Float("RETRIEVAL_MIN_SIMILARITY", cfg.MinSimilarity)
	cfg.EmbedTimeoutSeconds = envutil.Int("RETRIEVAL_EMBED_TIMEOUT_SECONDS", cfg.EmbedTimeoutSeconds)
	cfg.Cache.TTLSeconds = envutil.Int("RETRIEVAL_CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	if c.TopK <= 0 {
		c.TopK = 8
	}
	if c.Fallback.Score == 0 {
		c.Fallback.Score = 0.7
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 512
	}
	return c
}
