package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	got  []llms.MessageContent
	opts llms.CallOptions
	resp *llms.ContentResponse
	err  error
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerateMapsRoles(t *testing.T) {
	fm := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Consider the Freelancer."}}}}
	m := Wrap(nil, fm, Config{Provider: ProviderAnthropic, Model: "test", MaxTokens: 512, Temperature: 0.5})

	reply, err := m.Generate(context.Background(), "system prompt", []Turn{
		{Role: "user", Content: "I haul cargo"},
		{Role: "assistant", Content: "How many crew?"},
		{Role: "user", Content: "Two"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Consider the Freelancer.", reply)

	require.Len(t, fm.got, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, fm.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fm.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, fm.got[2].Role)
	assert.Equal(t, 512, fm.opts.MaxTokens)
	assert.InDelta(t, 0.5, fm.opts.Temperature, 1e-9)
}

func TestGenerateErrors(t *testing.T) {
	m := Wrap(nil, &fakeModel{err: errors.New("overloaded")}, Config{Provider: ProviderOpenAI})
	_, err := m.Generate(context.Background(), "", []Turn{{Role: "user", Content: "hi"}})
	assert.ErrorContains(t, err, "overloaded")

	m = Wrap(nil, &fakeModel{resp: &llms.ContentResponse{}}, Config{Provider: ProviderOpenAI})
	_, err = m.Generate(context.Background(), "", []Turn{{Role: "user", Content: "hi"}})
	assert.ErrorContains(t, err, "no response choices")
}

func TestNewModelRejectsMissingKeys(t *testing.T) {
	_, err := NewModel(nil, Config{Provider: ProviderAnthropic})
	assert.Error(t, err)
	_, err = NewModel(nil, Config{Provider: "bard"})
	assert.Error(t, err)
}

type fakeEmbedClient struct{ dim int }

func (f fakeEmbedClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func TestEmbedderBatches(t *testing.T) {
	e, err := WrapEmbedder(fakeEmbedClient{dim: 3}, "fake")
	require.NoError(t, err)
	vecs, err := e.Embed(context.Background(), []string{"cargo hauler", "light fighter"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, "fake", e.EmbedModel())

	empty, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
