package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

const maxContactNameRunes = 120

// TurnProcessor runs one user message through the consultant.
type TurnProcessor interface {
	ProcessMessage(ctx context.Context, conversationID uuid.UUID, text string, forceRecommendations bool) (*consultant.TurnResult, error)
}

type StartConversationInput struct {
	UserName  string
	UserEmail string
}

type CompleteConversationInput struct {
	ConversationID uuid.UUID
	Email          string
	Name           string
}

type ConversationService interface {
	Start(ctx context.Context, in StartConversationInput) (*domainagg.ConversationSnapshot, error)
	Get(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error)
	Recommendations(ctx context.Context, id uuid.UUID) ([]*types.RecommendationRecord, error)
	SendMessage(ctx context.Context, id uuid.UUID, text string, forceRecommendations bool) (*consultant.TurnResult, error)
	Complete(ctx context.Context, in CompleteConversationInput) (*domainagg.ConversationSnapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Document(ctx context.Context, id uuid.UUID, kind documents.Kind) ([]byte, error)
}

type ConversationServiceDeps struct {
	Log       *logger.Logger
	Store     consultant.Store
	Turns     TurnProcessor
	Documents consultant.DocumentTrigger
	Files     DocumentReader
	Events    consultant.EventPublisher
	Now       func() time.Time
}

type conversationService struct {
	deps ConversationServiceDeps
	log  *logger.Logger
}

func NewConversationService(deps ConversationServiceDeps) (ConversationService, error) {
	if deps.Store == nil || deps.Turns == nil {
		return nil, fmt.Errorf("conversation service: store and turn processor are required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &conversationService{deps: deps, log: deps.Log.With("service", "ConversationService")}, nil
}

func (s *conversationService) Start(ctx context.Context, in StartConversationInput) (*domainagg.ConversationSnapshot, error) {
	name, err := normalizeName(in.UserName)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.UserEmail)
	if email != "" {
		if email, err = NormalizeEmail(email); err != nil {
			return nil, err
		}
	}
	snap, err := s.deps.Store.Create(ctx, domainagg.CreateConversationInput{
		ContactName:  name,
		ContactEmail: email,
		StartedAt:    s.deps.Now(),
	})
	if err != nil {
		return nil, consultant.TranslateStoreError(err)
	}
	s.log.Info("conversation started", "conversation_id", snap.Conversation.ID, "contact_name", name)
	return snap, nil
}

func (s *conversationService) Get(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: missing conversation_id", pkgerrors.ErrInvalidArgument)
	}
	snap, err := s.deps.Store.Load(ctx, id)
	if err != nil {
		return nil, consultant.TranslateStoreError(err)
	}
	return snap, nil
}

func (s *conversationService) Recommendations(ctx context.Context, id uuid.UUID) ([]*types.RecommendationRecord, error) {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap.Recommendations, nil
}

func (s *conversationService) SendMessage(ctx context.Context, id uuid.UUID, text string, forceRecommendations bool) (*consultant.TurnResult, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: missing conversation_id", pkgerrors.ErrInvalidArgument)
	}
	return s.deps.Turns.ProcessMessage(ctx, id, text, forceRecommendations)
}

// Complete stores the contact and closes the conversation. A conversation
// that is already completed keeps its completion time; the contact is still
// updated. Documents are requested when the ledger is non-empty.
func (s *conversationService) Complete(ctx context.Context, in CompleteConversationInput) (*domainagg.ConversationSnapshot, error) {
	if in.ConversationID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing conversation_id", pkgerrors.ErrInvalidArgument)
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	snap, err := s.deps.Store.Complete(ctx, domainagg.CompleteInput{
		ConversationID: in.ConversationID,
		ContactEmail:   email,
		ContactName:    name,
		EventAt:        s.deps.Now(),
	})
	if err != nil {
		return nil, consultant.TranslateStoreError(err)
	}
	s.publish(ctx, realtime.NewConversationEvent(in.ConversationID, realtime.EventConversationCompleted, map[string]any{"source": "api"}))
	if len(snap.Recommendations) > 0 && s.deps.Documents != nil {
		if err := s.deps.Documents.EnsureConversationDocuments(ctx, in.ConversationID); err != nil {
			s.log.Warn("document trigger failed", "conversation_id", in.ConversationID, "error", err)
		}
	}
	return snap, nil
}

func (s *conversationService) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: missing conversation_id", pkgerrors.ErrInvalidArgument)
	}
	if err := s.deps.Store.Delete(ctx, id); err != nil {
		return consultant.TranslateStoreError(err)
	}
	s.log.Info("conversation deleted", "conversation_id", id)
	return nil
}

func (s *conversationService) Document(ctx context.Context, id uuid.UUID, kind documents.Kind) ([]byte, error) {
	if s.deps.Files == nil {
		return nil, fmt.Errorf("%w: document store not configured", pkgerrors.ErrNotFound)
	}
	snap, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	path := snap.Conversation.TranscriptDocPath
	if kind == documents.KindFleetGuide {
		path = snap.Conversation.FleetGuideDocPath
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s has not been generated", pkgerrors.ErrNotFound, kind)
	}
	return s.deps.Files.Read(path)
}

func (s *conversationService) publish(ctx context.Context, ev realtime.Event) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish event failed", "event", ev.Type, "error", err)
	}
}

// NormalizeEmail returns the bare lower-cased address.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: email is required", pkgerrors.ErrInvalidArgument)
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || !strings.Contains(addr.Address, ".") {
		return "", fmt.Errorf("%w: invalid email address", pkgerrors.ErrInvalidArgument)
	}
	return strings.ToLower(addr.Address), nil
}

func normalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if len([]rune(name)) > maxContactNameRunes {
		return "", fmt.Errorf("%w: name exceeds %d characters", pkgerrors.ErrInvalidArgument, maxContactNameRunes)
	}
	return name, nil
}
