package services

import (
	"context"
	"fmt"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/llm"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/openai"
)

// ChatModel is the langchaingo-backed model behind the default generator.
type ChatModel interface {
	Generate(ctx context.Context, system string, turns []llm.Turn) (string, error)
}

type llmGenerator struct {
	model ChatModel
}

// NewLLMGenerator adapts a langchaingo model to consultant.Generator.
func NewLLMGenerator(model ChatModel) (consultant.Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("llm generator: model is required")
	}
	return &llmGenerator{model: model}, nil
}

func (g *llmGenerator) Generate(ctx context.Context, messages []consultant.Message, system string) (string, error) {
	turns := make([]llm.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, llm.Turn{Role: m.Role, Content: m.Content})
	}
	return g.model.Generate(ctx, system, turns)
}

type openAIGenerator struct {
	client openai.Client
}

// NewOpenAIGenerator adapts the REST chat-completions client.
func NewOpenAIGenerator(client openai.Client) (consultant.Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("openai generator: client is required")
	}
	return &openAIGenerator{client: client}, nil
}

func (g *openAIGenerator) Generate(ctx context.Context, messages []consultant.Message, system string) (string, error) {
	msgs := make([]openai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return g.client.Chat(ctx, system, msgs)
}
