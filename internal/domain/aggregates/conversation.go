package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/domain/sales"
)

// ConversationAggregate owns every write to a conversation, its transcript and
// its recommendation ledger. Each write opens and commits its own
// transaction; listing belongs to the table repos.
//
// Write failures are *aggregates.Error with CodeValidation, CodeNotFound,
// CodeConflict, CodeInvariantViolation, CodeRetryable or CodeInternal.
type ConversationAggregate interface {
	Create(ctx context.Context, in CreateConversationInput) (*ConversationSnapshot, error)
	Load(ctx context.Context, id uuid.UUID) (*ConversationSnapshot, error)

	// CommitTurn appends a user/assistant pair and any accepted recommendations
	// in one transaction. It fails with CodeConflict when the stored counts no
	// longer match the snapshot the turn was computed from.
	CommitTurn(ctx context.Context, in CommitTurnInput) (*ConversationSnapshot, error)

	// ReplaceRecommendations overwrites the whole ledger. It is the only
	// mutation of existing records.
	ReplaceRecommendations(ctx context.Context, in ReplaceRecommendationsInput) (*ConversationSnapshot, error)

	Complete(ctx context.Context, in CompleteInput) (*ConversationSnapshot, error)
	SetContact(ctx context.Context, in SetContactInput) (*ConversationSnapshot, error)
	MarkDocuments(ctx context.Context, in MarkDocumentsInput) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// ImportCallTranscript finds the conversation for a voice call (creating it
	// when absent) and stores its transcript if none has been stored yet.
	ImportCallTranscript(ctx context.Context, in ImportCallTranscriptInput) (*ConversationSnapshot, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// ConversationSnapshot is a consistent read of a conversation with its
// transcript in seq order and its ledger in priority order.
type ConversationSnapshot struct {
	Conversation    *sales.Conversation           `json:"conversation"`
	Transcript      []*sales.TranscriptTurn       `json:"transcript"`
	Recommendations []*sales.RecommendationRecord `json:"recommended_items"`
}

type CreateConversationInput struct {
	ContactName  string
	ContactEmail string
	StartedAt    time.Time
}

type TurnInput struct {
	Role    string
	Content string
	At      time.Time
}

type RecommendationInput struct {
	ItemID       *uuid.UUID
	DisplayName  string
	Manufacturer string
	Role         string
	Slug         string
	Priority     int
	Reason       string
}

type ProfileUpdate struct {
	BudgetUSD *float64
	Playstyle string
}

type CommitTurnInput struct {
	ConversationID    uuid.UUID
	ExpectedTurnCount int
	ExpectedRecCount  int
	Turns             []TurnInput
	Recommendations   []RecommendationInput
	Profile           *ProfileUpdate
	MarkCompleted     bool
	EventAt           time.Time
}

type ReplaceRecommendationsInput struct {
	ConversationID  uuid.UUID
	Recommendations []RecommendationInput
	EventAt         time.Time
}

type CompleteInput struct {
	ConversationID uuid.UUID
	ContactEmail   string
	ContactName    string
	EventAt        time.Time
}

type ImportCallTranscriptInput struct {
	ExternalCallID string
	Turns          []TurnInput
	EventAt        time.Time
}

type SetContactInput struct {
	ConversationID uuid.UUID
	ContactEmail   string
	ContactName    string
}

type MarkDocumentsInput struct {
	ConversationID    uuid.UUID
	TranscriptDocPath string
	FleetGuideDocPath string
}
