// Package llm adapts langchaingo chat models and embedders to the narrow
// interfaces the sales flow uses.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

type Config struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaHost      string
	EmbedModel      string
	MaxTokens       int
	Temperature     float64
}

func ConfigFromEnv() Config {
	provider := strings.ToLower(envutil.String("LLM_PROVIDER", ProviderAnthropic))
	cfg := Config{
		Provider:        provider,
		AnthropicAPIKey: envutil.String("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    envutil.String("OPENAI_API_KEY", ""),
		OllamaHost:      envutil.String("OLLAMA_HOST", "http://localhost:11434"),
		EmbedModel:      envutil.String("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		MaxTokens:       envutil.Int("LLM_MAX_TOKENS", 2048),
		Temperature:     envutil.Float("LLM_TEMPERATURE", 0.7),
	}
	switch provider {
	case ProviderOpenAI:
		cfg.Model = envutil.String("OPENAI_MODEL", "gpt-4o-mini")
	case ProviderOllama:
		cfg.Model = envutil.String("OLLAMA_MODEL", "llama3.1")
	default:
		cfg.Model = envutil.String("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
	}
	return cfg
}

// Turn is one prior message. Role is "user" or "assistant".
type Turn struct {
	Role    string
	Content string
}

// Model generates chat replies through a langchaingo model.
type Model struct {
	llm       llms.Model
	provider  string
	modelName string
	maxTokens int
	temp      float64
	log       *logger.Logger
}

func NewModel(log *logger.Logger, cfg Config) (*Model, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
		}
		model, err = anthropic.New(anthropic.WithToken(cfg.AnthropicAPIKey), anthropic.WithModel(cfg.Model))
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY")
		}
		model, err = openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.Model))
	case ProviderOllama:
		model, err = ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.OllamaHost))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}
	return Wrap(log, model, cfg), nil
}

// Wrap builds a Model around an existing langchaingo model.
func Wrap(log *logger.Logger, model llms.Model, cfg Config) *Model {
	if log == nil {
		log = logger.Nop()
	}
	return &Model{
		llm:       model,
		provider:  cfg.Provider,
		modelName: cfg.Model,
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temperature,
		log:       log.With("client", "LLMModel", "provider", cfg.Provider),
	}
}

func (m *Model) Name() string { return m.modelName }

// Generate sends system followed by turns and returns the first choice.
func (m *Model) Generate(ctx context.Context, system string, turns []Turn) (string, error) {
	msgs := make([]llms.MessageContent, 0, len(turns)+1)
	if s := strings.TrimSpace(system); s != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, s))
	}
	for _, t := range turns {
		role := llms.ChatMessageTypeHuman
		if t.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, t.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(m.temp)}
	if m.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(m.maxTokens))
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		observability.Current().ObserveLLMRequest(m.provider, "generate", "error", time.Since(start))
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		observability.Current().ObserveLLMRequest(m.provider, "generate", "empty", time.Since(start))
		return "", fmt.Errorf("generate: no response choices")
	}
	observability.Current().ObserveLLMRequest(m.provider, "generate", "ok", time.Since(start))
	m.log.Debug("generation complete", "model", m.modelName, "duration_ms", time.Since(start).Milliseconds())
	return resp.Choices[0].Content, nil
}
