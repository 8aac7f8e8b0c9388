package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder wraps a langchaingo embedder with count validation.
type Embedder struct {
	model     embeddings.Embedder
	modelName string
}

// NewEmbedder builds an embedder for the ollama or openai provider.
func NewEmbedder(cfg Config) (*Embedder, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case ProviderOllama:
		llm, err := ollama.New(ollama.WithModel(cfg.EmbedModel), ollama.WithServerURL(cfg.OllamaHost))
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		client = llm
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY")
		}
		llm, err := openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithEmbeddingModel(cfg.EmbedModel))
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
	return WrapEmbedder(client, cfg.EmbedModel)
}

func WrapEmbedder(client embeddings.EmbedderClient, modelName string) (*Embedder, error) {
	model, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{model: model, modelName: modelName}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := e.model.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedModel() string { return e.modelName }
