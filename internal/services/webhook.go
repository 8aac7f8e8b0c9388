package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/analysis"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const (
	WebhookStatusProcessed = "processed"
	WebhookStatusIgnored   = "ignored"
)

type PostCallProcessor interface {
	Process(ctx context.Context, payload analysis.PostCallPayload) (*analysis.Result, error)
}

type WebhookConfig struct {
	// Secret enables signature checks when non-empty.
	Secret string
	// Tolerance bounds the age of a timestamped signature. Zero disables it.
	Tolerance time.Duration
}

type WebhookResult struct {
	Status string           `json:"status"`
	Reason string           `json:"reason,omitempty"`
	Result *analysis.Result `json:"result,omitempty"`
}

type WebhookService interface {
	HandlePostCall(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
}

type webhookService struct {
	log       *logger.Logger
	processor PostCallProcessor
	cfg       WebhookConfig
	now       func() time.Time
}

func NewWebhookService(baseLog *logger.Logger, processor PostCallProcessor, cfg WebhookConfig) WebhookService {
	return &webhookService{
		log:       baseLog.With("service", "WebhookService"),
		processor: processor,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *webhookService) HandlePostCall(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if s.cfg.Secret != "" {
		if err := VerifySignature(s.cfg.Secret, body, signature, s.cfg.Tolerance, s.now()); err != nil {
			s.log.Warn("webhook signature rejected", "error", err)
			return nil, err
		}
	}
	var payload analysis.PostCallPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid webhook payload: %v", pkgerrors.ErrInvalidArgument, err)
	}
	if payload.Type != analysis.EventPostCallTranscription {
		s.log.Info("ignoring webhook", "type", payload.Type)
		return &WebhookResult{Status: WebhookStatusIgnored, Reason: "not a transcription webhook"}, nil
	}
	if s.processor == nil {
		return nil, fmt.Errorf("post-call analysis not configured")
	}
	res, err := s.processor.Process(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Status: WebhookStatusProcessed, Result: res}, nil
}

// VerifySignature checks an HMAC-SHA256 hex signature. The header is either
// "t=<unix>,v0=<hex>", signed over "<unix>.<body>", or a bare hex digest of
// body.
func VerifySignature(secret string, body []byte, header string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: missing signature", pkgerrors.ErrUnauthorized)
	}
	if !strings.Contains(header, "=") {
		if !hmacEqual(secret, body, header) {
			return fmt.Errorf("%w: invalid signature", pkgerrors.ErrUnauthorized)
		}
		return nil
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v0":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed signature header", pkgerrors.ErrUnauthorized)
	}
	if tolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: malformed signature timestamp", pkgerrors.ErrUnauthorized)
		}
		if age := now.Sub(time.Unix(unix, 0)); age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: signature timestamp outside tolerance", pkgerrors.ErrUnauthorized)
		}
	}
	signed := make([]byte, 0, len(ts)+1+len(body))
	signed = append(signed, ts...)
	signed = append(signed, '.')
	signed = append(signed, body...)
	for _, sig := range sigs {
		if hmacEqual(secret, signed, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid signature", pkgerrors.ErrUnauthorized)
}

// Sign returns the bare hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacEqual(secret string, payload []byte, sigHex string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(sigHex))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), got)
}
