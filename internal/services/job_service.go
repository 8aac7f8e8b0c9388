package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/ctxutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const (
	JobTypeConversationDocuments = "conversation_documents"
	JobTypeConversationEmail     = "conversation_email"

	EntityTypeConversation = "conversation"
)

// ConversationLoader is the read side of the conversation store.
type ConversationLoader interface {
	Load(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error)
}

type JobService interface {
	Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)

	// EnsureConversationDocuments satisfies consultant.DocumentTrigger.
	EnsureConversationDocuments(ctx context.Context, conversationID uuid.UUID) error
	// RequestConversationDocuments returns the queued or running documents job
	// for the conversation, enqueuing one when there is none.
	RequestConversationDocuments(ctx context.Context, conversationID uuid.UUID) (*types.JobRun, error)
	// RequestConversationEmail enqueues delivery. When the documents are not
	// rendered yet it requests them instead; that job sends the email.
	RequestConversationEmail(ctx context.Context, conversationID uuid.UUID, resend bool) (*types.JobRun, error)

	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
}

// JobNotifier is told about jobs created at request time. The worker reports
// the rest of a job's lifecycle through the same implementation.
type JobNotifier interface {
	JobCreated(job *types.JobRun)
}

type jobService struct {
	log           *logger.Logger
	repo          repos.JobRunRepo
	conversations ConversationLoader
	notify        JobNotifier
	emailDisabled bool
}

type JobServiceOption func(*jobService)

// WithoutEmail makes email requests fail with ErrConflict. Used when no mail
// provider is configured and the email pipeline is not registered.
func WithoutEmail() JobServiceOption {
	return func(s *jobService) { s.emailDisabled = true }
}

func NewJobService(baseLog *logger.Logger, repo repos.JobRunRepo, conversations ConversationLoader, notify JobNotifier, opts ...JobServiceOption) JobService {
	s := &jobService{
		log:           baseLog.With("service", "JobService"),
		repo:          repo,
		conversations: conversations,
		notify:        notify,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *jobService) Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if jobType == "" {
		return nil, fmt.Errorf("%w: missing job_type", pkgerrors.ErrInvalidArgument)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:         uuid.New(),
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     types.JobStatusQueued,
		Stage:      "queued",
		Message:    "Queued",
		Payload:    datatypes.JSON(b),
		Result:     datatypes.JSON([]byte(`{}`)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.log.Info("job enqueued", "job_id", job.ID, "job_type", jobType, "entity_id", entityID)
	if s.notify != nil {
		s.notify.JobCreated(job)
	}
	return job, nil
}

func (s *jobService) EnsureConversationDocuments(ctx context.Context, conversationID uuid.UUID) error {
	_, err := s.RequestConversationDocuments(ctx, conversationID)
	return err
}

func (s *jobService) RequestConversationDocuments(ctx context.Context, conversationID uuid.UUID) (*types.JobRun, error) {
	snap, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !snap.Conversation.IsCompleted() {
		return nil, fmt.Errorf("%w: conversation is not completed", pkgerrors.ErrInvalidArgument)
	}
	if len(snap.Recommendations) == 0 {
		return nil, fmt.Errorf("%w: conversation has no recommendations", pkgerrors.ErrInvalidArgument)
	}
	return s.ensure(ctx, JobTypeConversationDocuments, conversationID, nil)
}

func (s *jobService) RequestConversationEmail(ctx context.Context, conversationID uuid.UUID, resend bool) (*types.JobRun, error) {
	if s.emailDisabled {
		return nil, fmt.Errorf("%w: email delivery is not configured", pkgerrors.ErrConflict)
	}
	snap, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conv := snap.Conversation
	if conv.ContactEmail == nil || *conv.ContactEmail == "" {
		return nil, fmt.Errorf("%w: conversation has no contact email", pkgerrors.ErrInvalidArgument)
	}
	if conv.EmailSent && !resend {
		return nil, fmt.Errorf("%w: email already sent", pkgerrors.ErrConflict)
	}
	if conv.TranscriptDocPath == "" || conv.FleetGuideDocPath == "" {
		return s.RequestConversationDocuments(ctx, conversationID)
	}
	return s.ensure(ctx, JobTypeConversationEmail, conversationID, map[string]any{"resend": resend})
}

// ensure enqueues jobType for the conversation unless one is already queued
// or running.
func (s *jobService) ensure(ctx context.Context, jobType string, conversationID uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	dbc := dbctx.From(ctx)
	existing, err := s.repo.FindRunnableForEntity(dbc, EntityTypeConversation, conversationID, jobType)
	if err != nil {
		return nil, fmt.Errorf("find runnable %s: %w", jobType, err)
	}
	if existing != nil {
		s.log.Debug("job already pending", "job_id", existing.ID, "job_type", jobType, "conversation_id", conversationID)
		return existing, nil
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["conversation_id"] = conversationID.String()
	entityID := conversationID
	return s.Enqueue(dbc, jobType, EntityTypeConversation, &entityID, payload)
}

func (s *jobService) load(ctx context.Context, conversationID uuid.UUID) (*domainagg.ConversationSnapshot, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing conversation_id", pkgerrors.ErrInvalidArgument)
	}
	snap, err := s.conversations.Load(ctx, conversationID)
	if err != nil {
		return nil, consultant.TranslateStoreError(err)
	}
	return snap, nil
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing job_id", pkgerrors.ErrInvalidArgument)
	}
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s", pkgerrors.ErrNotFound, jobID)
	}
	return job, nil
}

func (s *jobService) GetLatestForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	job, err := s.repo.GetLatestByEntity(dbc, entityType, entityID, jobType)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: no %s job for %s", pkgerrors.ErrNotFound, jobType, entityID)
	}
	return job, nil
}
