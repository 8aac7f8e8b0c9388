package sendgrid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/ctxutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/httpx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type Client interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	FromEmail  string
	FromName   string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:     envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:    envutil.String("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		FromEmail:  envutil.String("SENDGRID_FROM_EMAIL", ""),
		FromName:   envutil.String("SENDGRID_FROM_NAME", "StarCiti Sales Agent"),
		Timeout:    envutil.Seconds("SENDGRID_TIMEOUT_SECONDS", 30*time.Second),
		MaxRetries: envutil.Int("SENDGRID_MAX_RETRIES", 3),
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
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("client", "SendGridClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Message is one transactional email. From defaults to the configured sender.
type Message struct {
	From        *Address
	To          []Address
	Subject     string
	Text        string
	HTML        string
	Categories  []string
	Attachments []Attachment
}

type SendResult struct {
	StatusCode int
	MessageID  string
}

type wireRequest struct {
	Personalizations []wirePersonalization `json:"personalizations"`
	From             Address               `json:"from"`
	Subject          string                `json:"subject"`
	Content          []wireContent         `json:"content"`
	Categories       []string              `json:"categories,omitempty"`
	Attachments      []wireAttachment      `json:"attachments,omitempty"`
}

type wirePersonalization struct {
	To []Address `json:"to"`
}

type wireContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type wireAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

// buildRequest validates msg and converts it to the mail send body.
func (c *client) buildRequest(msg Message) (*wireRequest, error) {
	from := Address{Email: c.cfg.FromEmail, Name: c.cfg.FromName}
	if msg.From != nil && strings.TrimSpace(msg.From.Email) != "" {
		from = Address{Email: strings.TrimSpace(msg.From.Email), Name: strings.TrimSpace(msg.From.Name)}
	}
	to := make([]Address, 0, len(msg.To))
	for _, a := range msg.To {
		if e := strings.TrimSpace(a.Email); e != "" {
			to = append(to, Address{Email: e, Name: strings.TrimSpace(a.Name)})
		}
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("sendgrid: recipient required")
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return nil, fmt.Errorf("sendgrid: subject required")
	}

	var content []wireContent
	if t := strings.TrimSpace(msg.Text); t != "" {
		content = append(content, wireContent{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(msg.HTML); h != "" {
		content = append(content, wireContent{Type: "text/html", Value: h})
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("sendgrid: text or html body required")
	}

	atts := make([]wireAttachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		name := strings.TrimSpace(a.Filename)
		if name == "" || len(a.Content) == 0 {
			return nil, fmt.Errorf("sendgrid: attachment %q missing name or content", name)
		}
		atts = append(atts, wireAttachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.MIMEType,
			Filename:    name,
			Disposition: "attachment",
		})
	}

	return &wireRequest{
		Personalizations: []wirePersonalization{{To: to}},
		From:             from,
		Subject:          subject,
		Content:          content,
		Categories:       msg.Categories,
		Attachments:      atts,
	}, nil
}

func (c *client) Send(ctx context.Context, msg Message) (*SendResult, error) {
	body, err := c.buildRequest(msg)
	if err != nil {
		return nil, err
	}
	ctx = ctxutil.Default(ctx)
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return &SendResult{
				StatusCode: resp.StatusCode,
				MessageID:  strings.TrimSpace(resp.Header.Get("X-Message-Id")),
			}, nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.cfg.MaxRetries {
			return nil, err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("SendGrid request retrying", "attempt", attempt+1, "sleep", sleepFor.String(), "error", err.Error())
		if err := httpx.SleepContext(ctx, sleepFor); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal([]byte(e.Body), &parsed) == nil && len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
		return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, parsed.Errors[0].Message)
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, body *wireRequest) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v3/mail/send", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}
