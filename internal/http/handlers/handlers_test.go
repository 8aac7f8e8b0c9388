package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type fakeConversations struct {
	services.ConversationService

	startIn    services.StartConversationInput
	completeIn services.CompleteConversationInput
	msgText    string
	msgForce   bool
	turnErr    error
	docs       map[documents.Kind][]byte
	deleted    uuid.UUID
}

func (f *fakeConversations) Start(_ context.Context, in services.StartConversationInput) (*domainagg.ConversationSnapshot, error) {
	f.startIn = in
	return &domainagg.ConversationSnapshot{Conversation: &types.Conversation{ID: uuid.New(), Status: "active"}}, nil
}

func (f *fakeConversations) Get(_ context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error) {
	return nil, fmt.Errorf("get %s: %w", id, pkgerrors.ErrNotFound)
}

func (f *fakeConversations) SendMessage(_ context.Context, id uuid.UUID, text string, force bool) (*consultant.TurnResult, error) {
	if f.turnErr != nil {
		return nil, f.turnErr
	}
	f.msgText, f.msgForce = text, force
	return &consultant.TurnResult{ConversationID: id, Reply: "Welcome aboard, Citizen."}, nil
}

func (f *fakeConversations) Recommendations(_ context.Context, _ uuid.UUID) ([]*types.RecommendationRecord, error) {
	return []*types.RecommendationRecord{{DisplayName: "Cutlass Black"}, {DisplayName: "Freelancer"}}, nil
}

func (f *fakeConversations) Complete(_ context.Context, in services.CompleteConversationInput) (*domainagg.ConversationSnapshot, error) {
	f.completeIn = in
	return &domainagg.ConversationSnapshot{Conversation: &types.Conversation{ID: in.ConversationID, Status: "completed"}}, nil
}

func (f *fakeConversations) Document(_ context.Context, _ uuid.UUID, kind documents.Kind) ([]byte, error) {
	b, ok := f.docs[kind]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return b, nil
}

func (f *fakeConversations) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return nil
}

type fakeJobs struct {
	services.JobService

	resend bool
	err    error
}

func (f *fakeJobs) RequestConversationDocuments(_ context.Context, id uuid.UUID) (*types.JobRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.JobRun{ID: uuid.New(), JobType: "conversation_documents", EntityID: &id, Status: "queued"}, nil
}

func (f *fakeJobs) RequestConversationEmail(_ context.Context, id uuid.UUID, resend bool) (*types.JobRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.resend = resend
	return &types.JobRun{ID: uuid.New(), JobType: "conversation_email", EntityID: &id, Status: "queued"}, nil
}

func (f *fakeJobs) GetByID(_ dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	return nil, pkgerrors.ErrNotFound
}

type fakeCatalog struct {
	services.CatalogService

	in services.ShipSearchInput
}

func (f *fakeCatalog) Search(_ context.Context, in services.ShipSearchInput) (*services.ShipSearchOutput, error) {
	f.in = in
	return &services.ShipSearchOutput{Query: in.Query}, nil
}

func (f *fakeCatalog) GetBySlug(_ context.Context, slug string) (*types.CatalogItem, error) {
	if slug == "cutlass-black" {
		return &types.CatalogItem{Name: "Cutlass Black", Slug: slug}, nil
	}
	return nil, pkgerrors.ErrNotFound
}

type fakeWebhooks struct {
	body []byte
	sig  string
	err  error
}

func (f *fakeWebhooks) HandlePostCall(_ context.Context, body []byte, sig string) (*services.WebhookResult, error) {
	f.body, f.sig = body, sig
	if f.err != nil {
		return nil, f.err
	}
	return &services.WebhookResult{Status: "processed"}, nil
}

type harness struct {
	conv     *fakeConversations
	jobs     *fakeJobs
	catalog  *fakeCatalog
	webhooks *fakeWebhooks
	r        *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		conv:     &fakeConversations{docs: map[documents.Kind][]byte{}},
		jobs:     &fakeJobs{},
		catalog:  &fakeCatalog{},
		webhooks: &fakeWebhooks{},
		r:        gin.New(),
	}
	ch := NewConversationHandler(h.conv, h.jobs)
	sh := NewShipHandler(h.catalog)
	jh := NewJobHandler(h.jobs)
	wh := NewWebhookHandler(h.webhooks)
	hh := NewHealthHandler(nil)

	h.r.GET("/healthcheck", hh.HealthCheck)
	h.r.GET("/metrics", hh.Metrics)
	h.r.POST("/api/conversations", ch.Start)
	h.r.GET("/api/conversations/:id", ch.Get)
	h.r.DELETE("/api/conversations/:id", ch.Delete)
	h.r.POST("/api/conversations/:id/messages", ch.SendMessage)
	h.r.GET("/api/conversations/:id/recommendations", ch.Recommendations)
	h.r.POST("/api/conversations/:id/complete", ch.Complete)
	h.r.POST("/api/conversations/:id/documents", ch.GenerateDocuments)
	h.r.GET("/api/conversations/:id/documents/:kind", ch.DownloadDocument)
	h.r.POST("/api/conversations/:id/email", ch.SendEmail)
	h.r.GET("/api/ships/search", sh.Search)
	h.r.GET("/api/ships/:slug", sh.Get)
	h.r.GET("/api/jobs/:id", jh.GetJob)
	h.r.POST("/api/webhooks/post-call", wh.PostCall)
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

func TestHealthAndMetricsDisabled(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartConversation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/conversations", `{"user_name":"Ana","user_email":"ana@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ana", h.conv.startIn.UserName)
	assert.Equal(t, "ana@example.com", h.conv.startIn.UserEmail)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)

	// body is optional
	rec = h.do(http.MethodPost, "/api/conversations", "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/api/conversations", `{"user_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationIDValidation(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{
		"/api/conversations/not-a-uuid",
		"/api/conversations/" + uuid.Nil.String(),
	} {
		rec := h.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_conversation_id", errorCode(t, rec))
	}
}

func TestGetConversationNotFound(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/conversations/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	path := "/api/conversations/" + id.String() + "/messages"

	rec := h.do(http.MethodPost, path, `{"message":"I haul cargo","force_recommendations":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I haul cargo", h.conv.msgText)
	assert.True(t, h.conv.msgForce)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Welcome aboard, Citizen.", out["message"])
	assert.Equal(t, id.String(), out["conversation_id"])

	rec = h.do(http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, path, fmt.Sprintf(`{"message":%q}`, strings.Repeat("a", 5001)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("turn: %w", pkgerrors.ErrGenerationFailed), http.StatusBadGateway, "generation_failed"},
		{fmt.Errorf("turn: %w", pkgerrors.ErrConflict), http.StatusConflict, "conflict"},
		{domainagg.NewError(domainagg.CodeValidation, "turn", "conversation is completed", nil), http.StatusBadRequest, "invalid_argument"},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		h := newHarness(t)
		h.conv.turnErr = tc.err
		rec := h.do(http.MethodPost, "/api/conversations/"+uuid.NewString()+"/messages", `{"message":"hi"}`)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.code, errorCode(t, rec))
		if tc.status == http.StatusInternalServerError {
			assert.NotContains(t, rec.Body.String(), "connection refused")
		}
	}
}

func TestRecommendations(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/conversations/"+uuid.NewString()+"/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Total int `json:"total"`
		Ships []struct {
			Name string `json:"ship_name"`
		} `json:"recommended_ships"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Total)
	assert.Len(t, out.Ships, 2)
}

func TestCompleteRequiresEmail(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	path := "/api/conversations/" + id.String() + "/complete"

	rec := h.do(http.MethodPost, path, `{"name":"Ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, path, `{"email":"ana@example.com","name":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, h.conv.completeIn.ConversationID)
	assert.Equal(t, "ana@example.com", h.conv.completeIn.Email)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestGenerateDocumentsAndEmailAreAccepted(t *testing.T) {
	h := newHarness(t)
	id := uuid.NewString()

	rec := h.do(http.MethodPost, "/api/conversations/"+id+"/documents", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job_type":"conversation_documents"`)

	rec = h.do(http.MethodPost, "/api/conversations/"+id+"/email", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, h.jobs.resend)

	rec = h.do(http.MethodPost, "/api/conversations/"+id+"/email", `{"resend":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, h.jobs.resend)

	h.jobs.err = fmt.Errorf("already sent: %w", pkgerrors.ErrConflict)
	rec = h.do(http.MethodPost, "/api/conversations/"+id+"/email", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDownloadDocument(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.conv.docs[documents.KindTranscript] = []byte("[00:00] USER: hi\n")

	rec := h.do(http.MethodGet, "/api/conversations/"+id.String()+"/documents/transcript", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="`+id.String()[:8]+`-transcript.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "[00:00] USER: hi\n", rec.Body.String())

	rec = h.do(http.MethodGet, "/api/conversations/"+id.String()+"/documents/fleet-guide", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/conversations/"+id.String()+"/documents/brochure", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteConversation(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	rec := h.do(http.MethodDelete, "/api/conversations/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, h.conv.deleted)
}

func TestShipSearchParsesQuery(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/ships/search?q=cargo+hauler&top_k=3&budget_max=150&cargo_min=40&crew_max=4&role=Freight&boost=mining&boost=salvage", "")
	require.Equal(t, http.StatusOK, rec.Code)

	in := h.catalog.in
	assert.Equal(t, "cargo hauler", in.Query)
	assert.Equal(t, 3, in.TopK)
	require.NotNil(t, in.Filters.PriceMax)
	assert.Equal(t, 150.0, *in.Filters.PriceMax)
	require.NotNil(t, in.Filters.CargoMin)
	assert.Equal(t, 40, *in.Filters.CargoMin)
	require.NotNil(t, in.Filters.CrewMax)
	assert.Equal(t, 4, *in.Filters.CrewMax)
	require.NotNil(t, in.Filters.Role)
	assert.Equal(t, "Freight", *in.Filters.Role)
	assert.Nil(t, in.Filters.Manufacturer)
	assert.Nil(t, in.Filters.PriceMin)
	assert.Equal(t, []string{"mining", "salvage"}, in.Boost)
}

func TestShipSearchRejectsBadNumbers(t *testing.T) {
	h := newHarness(t)

	for _, qs := range []string{"top_k=many", "budget_max=-5", "cargo_min=1.5", "budget_max=NaN", "budget_min=nan", "budget_max=Inf", "budget_max=%2BInf"} {
		rec := h.do(http.MethodGet, "/api/ships/search?q=cargo&"+qs, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, qs)
		assert.Equal(t, "invalid_query", errorCode(t, rec))
	}
}

func TestGetShip(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/ships/cutlass-black", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cutlass Black")

	rec = h.do(http.MethodGet, "/api/ships/idris-p", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookSignatureHeaders(t *testing.T) {
	h := newHarness(t)
	body := `{"type":"post_call_transcription"}`

	rec := h.do(http.MethodPost, "/api/webhooks/post-call", body, "ElevenLabs-Signature", "t=1,v0=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t=1,v0=abc", h.webhooks.sig)
	assert.JSONEq(t, body, string(h.webhooks.body))

	rec = h.do(http.MethodPost, "/api/webhooks/post-call", body, "X-ElevenLabs-Signature", "deadbeef")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deadbeef", h.webhooks.sig)

	h.webhooks.err = fmt.Errorf("bad signature: %w", pkgerrors.ErrUnauthorized)
	rec = h.do(http.MethodPost, "/api/webhooks/post-call", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.webhooks.sig)
}
