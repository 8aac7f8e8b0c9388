package consultant

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/retrieval"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

// Message is one chat message handed to a Generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the assistant reply for messages under system.
type Generator interface {
	Generate(ctx context.Context, messages []Message, system string) (string, error)
}

// Store is the persistence the consultant needs. ConversationAggregate
// satisfies it.
type Store interface {
	Create(ctx context.Context, in domainagg.CreateConversationInput) (*domainagg.ConversationSnapshot, error)
	Load(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error)
	CommitTurn(ctx context.Context, in domainagg.CommitTurnInput) (*domainagg.ConversationSnapshot, error)
	ReplaceRecommendations(ctx context.Context, in domainagg.ReplaceRecommendationsInput) (*domainagg.ConversationSnapshot, error)
	Complete(ctx context.Context, in domainagg.CompleteInput) (*domainagg.ConversationSnapshot, error)
	SetContact(ctx context.Context, in domainagg.SetContactInput) (*domainagg.ConversationSnapshot, error)
	MarkDocuments(ctx context.Context, in domainagg.MarkDocumentsInput) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Retriever is the slice of the retrieval engine a turn uses.
type Retriever interface {
	Retrieve(ctx context.Context, in retrieval.RetrieveInput) ([]retrieval.SearchResult, bool)
}

// DocumentTrigger schedules summary documents for a completed conversation.
// Implementations must be idempotent.
type DocumentTrigger interface {
	EnsureConversationDocuments(ctx context.Context, conversationID uuid.UUID) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}
