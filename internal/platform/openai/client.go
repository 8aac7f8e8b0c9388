package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/ctxutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/httpx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const provider = "openai"

// ChatMessage is one entry of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// Chat returns the first choice's text for messages under system.
	Chat(ctx context.Context, system string, messages []ChatMessage) (string, error)
	EmbedModel() string
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	EmbedModel  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:      envutil.String("OPENAI_API_KEY", ""),
		BaseURL:     envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:       envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		EmbedModel:  envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		Temperature: envutil.Float("OPENAI_TEMPERATURE", 0.7),
		MaxTokens:   envutil.Int("OPENAI_MAX_TOKENS", 2048),
		Timeout:     envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 60*time.Second),
		MaxRetries:  envutil.Int("OPENAI_MAX_RETRIES", 4),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("client", "OpenAIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func (c *client) EmbedModel() string { return c.cfg.EmbedModel }

// -------------------- Embeddings --------------------

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i, s := range inputs {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "/v1/embeddings", embeddingsRequest{Model: c.cfg.EmbedModel, Input: clean}, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for pos, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = pos
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[idx] = vec
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai embeddings missing index %d: requested=%d returned=%d model=%s", i, len(clean), len(resp.Data), c.cfg.EmbedModel)
		}
	}
	return out, nil
}

// -------------------- Chat completions --------------------

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func (c *client) Chat(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	all := make([]ChatMessage, 0, len(messages)+1)
	if s := strings.TrimSpace(system); s != "" {
		all = append(all, ChatMessage{Role: "system", Content: s})
	}
	all = append(all, messages...)

	temp := c.cfg.Temperature
	req := chatRequest{Model: c.cfg.Model, Messages: all, Temperature: &temp, MaxTokens: c.cfg.MaxTokens}

	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// -------------------- HTTP / retry --------------------

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 2000 {
		body = body[:2000] + "..."
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := time.Second
	start := time.Now()

	for attempt := 0; ; attempt++ {
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			c.observe(path, "ok", start)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode %s: %w", path, uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.cfg.MaxRetries {
			c.observe(path, statusOf(resp), start)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if sErr := httpx.SleepContext(ctx, sleepFor); sErr != nil {
			c.observe(path, "canceled", start)
			return sErr
		}
		backoff *= 2
	}
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) observe(path, status string, start time.Time) {
	observability.Current().ObserveLLMRequest(provider, path, status, time.Since(start))
}

func statusOf(resp *http.Response) string {
	if resp == nil {
		return "error"
	}
	return fmt.Sprintf("%d", resp.StatusCode)
}
