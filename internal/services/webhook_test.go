package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/analysis"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type fakePostCall struct {
	calls   int
	payload analysis.PostCallPayload
}

func (f *fakePostCall) Process(_ context.Context, p analysis.PostCallPayload) (*analysis.Result, error) {
	f.calls++
	f.payload = p
	return &analysis.Result{}, nil
}

const testSecret = "wsec_test"

func TestVerifySignatureBareHex(t *testing.T) {
	body := []byte(`{"type":"post_call_transcription"}`)
	now := time.Now()
	if err := VerifySignature(testSecret, body, Sign(testSecret, body), 0, now); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature(testSecret, body, Sign("other", body), 0, now); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("wrong secret: want ErrUnauthorized got %v", err)
	}
	if err := VerifySignature(testSecret, body, "not-hex", 0, now); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("garbage: want ErrUnauthorized got %v", err)
	}
	if err := VerifySignature(testSecret, body, "", 0, now); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("missing: want ErrUnauthorized got %v", err)
	}
}

func TestVerifySignatureTimestamped(t *testing.T) {
	body := []byte(`{"type":"post_call_transcription"}`)
	now := time.Unix(1_900_000_000, 0)
	ts := fmt.Sprint(now.Unix())
	sig := Sign(testSecret, []byte(ts+"."+string(body)))
	header := "t=" + ts + ",v0=" + sig

	if err := VerifySignature(testSecret, body, header, 30*time.Minute, now); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
	if err := VerifySignature(testSecret, body, header, 30*time.Minute, now.Add(time.Hour)); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("stale header: want ErrUnauthorized got %v", err)
	}
	if err := VerifySignature(testSecret, body, header, 0, now.Add(time.Hour)); err != nil {
		t.Fatalf("tolerance disabled: %v", err)
	}
	if err := VerifySignature(testSecret, []byte(`{"tampered":true}`), header, 0, now); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("tampered body: want ErrUnauthorized got %v", err)
	}
	if err := VerifySignature(testSecret, body, "v0="+sig, 0, now); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("missing t: want ErrUnauthorized got %v", err)
	}
}

func TestHandlePostCall(t *testing.T) {
	proc := &fakePostCall{}
	svc := NewWebhookService(logger.Nop(), proc, WebhookConfig{Secret: testSecret})
	body := []byte(`{"type":"post_call_transcription","data":{"conversation_id":"call_1","transcript":[]}}`)

	res, err := svc.HandlePostCall(context.Background(), body, Sign(testSecret, body))
	if err != nil {
		t.Fatalf("HandlePostCall: %v", err)
	}
	if res.Status != WebhookStatusProcessed {
		t.Fatalf("status: want=%q got=%q", WebhookStatusProcessed, res.Status)
	}
	if proc.calls != 1 {
		t.Fatalf("process calls: want=1 got=%d", proc.calls)
	}

	if _, err := svc.HandlePostCall(context.Background(), body, "deadbeef"); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("bad signature: want ErrUnauthorized got %v", err)
	}
	if proc.calls != 1 {
		t.Fatalf("rejected webhook must not be processed")
	}
}

func TestHandlePostCallIgnoresOtherTypes(t *testing.T) {
	proc := &fakePostCall{}
	svc := NewWebhookService(logger.Nop(), proc, WebhookConfig{})

	res, err := svc.HandlePostCall(context.Background(), []byte(`{"type":"call_initiation_failure"}`), "")
	if err != nil {
		t.Fatalf("HandlePostCall: %v", err)
	}
	if res.Status != WebhookStatusIgnored || proc.calls != 0 {
		t.Fatalf("want ignored without processing, got status=%q calls=%d", res.Status, proc.calls)
	}

	if _, err := svc.HandlePostCall(context.Background(), []byte(`{not json`), ""); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("malformed: want ErrInvalidArgument got %v", err)
	}
}
