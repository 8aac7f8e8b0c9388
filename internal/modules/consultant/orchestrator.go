package consultant

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/retrieval"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

const (
	MaxMessageRunes = 5000

	turnTopK          = 8
	turnMinSimilarity = 0.5

	recommendationSourceDialogue = "dialogue"
)

type OrchestratorDeps struct {
	Log       *logger.Logger
	Store     Store
	Retriever Retriever
	Generator Generator
	Ledger    *Ledger
	Locks     *TurnLocks
	Metrics   *observability.Metrics

	// Optional.
	Documents DocumentTrigger
	Events    EventPublisher

	// GenerationTimeout defaults to GENERATION_TIMEOUT_SECONDS, then 60s.
	GenerationTimeout time.Duration
	Now               func() time.Time
}

// TurnResult is what a caller sees after one processed message.
type TurnResult struct {
	ConversationID     uuid.UUID                     `json:"conversation_id"`
	Reply              string                        `json:"message"`
	Phase              Phase                         `json:"phase"`
	HasRecommendations bool                          `json:"has_recommendations"`
	IsComplete         bool                          `json:"is_complete"`
	RecommendedItems   []*types.RecommendationRecord `json:"recommended_ships"`
	RetrievalDegraded  bool                          `json:"retrieval_degraded,omitempty"`
}

type Orchestrator struct {
	deps OrchestratorDeps
	log  *logger.Logger
}

func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Generator == nil || deps.Retriever == nil {
		return nil, fmt.Errorf("consultant: store, generator and retriever are required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Ledger == nil {
		deps.Ledger = NewLedger(deps.Store, nil)
	}
	if deps.Locks == nil {
		deps.Locks = NewTurnLocks()
	}
	if deps.GenerationTimeout <= 0 {
		deps.GenerationTimeout = envutil.Seconds("GENERATION_TIMEOUT_SECONDS", 60*time.Second)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{deps: deps, log: deps.Log.With("service", "DialogueOrchestrator")}, nil
}

// ProcessMessage runs one user turn end to end. Turns on the same
// conversation are serialised. When generation fails nothing is persisted and
// the error wraps pkgerrors.ErrGenerationFailed.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID uuid.UUID, text string, forceRecommendations bool) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", pkgerrors.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return nil, fmt.Errorf("%w: message exceeds %d characters", pkgerrors.ErrInvalidArgument, MaxMessageRunes)
	}

	ctx, span := observability.StartSpan(ctx, "consultant.process_message",
		attribute.String("conversation.id", conversationID.String()),
		attribute.Bool("consultant.force_recommendations", forceRecommendations),
	)
	defer span.End()

	unlock, err := o.deps.Locks.Lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := o.deps.Store.Load(ctx, conversationID)
	if err != nil {
		return nil, TranslateStoreError(err)
	}

	phase := ClassifyPhase(len(snap.Transcript)+1, len(snap.Recommendations) > 0, text)
	span.SetAttributes(attribute.String("consultant.phase", string(phase)))

	var (
		candidates []*types.CatalogItem
		degraded   bool
	)
	if phase.WantsRetrieval() || forceRecommendations {
		var results []retrieval.SearchResult
		results, degraded = o.deps.Retriever.Retrieve(ctx, retrieval.RetrieveInput{
			LatestUserText: text,
			Transcript:     snap.Transcript,
			TopK:           turnTopK,
			MinSimilarity:  retrieval.Threshold(turnMinSimilarity),
		})
		candidates = retrieval.Items(results)
	}

	reply, err := o.generate(ctx, BuildMessages(snap.Transcript, text, candidates, phase), SystemPrompt(phase))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		o.deps.Metrics.IncTurn(string(phase), "generation_failed")
		o.log.Warn("generation failed", "conversation_id", conversationID, "phase", phase, "error", err)
		return nil, err
	}

	var accepted []*types.RecommendationRecord
	if phase == PhaseRecommendation && len(candidates) > 0 {
		accepted = o.deps.Ledger.Accept(len(snap.Recommendations), candidates, reply)
	}

	now := o.deps.Now().UTC()
	updated, err := o.deps.Store.CommitTurn(ctx, domainagg.CommitTurnInput{
		ConversationID:    conversationID,
		ExpectedTurnCount: snap.Conversation.TurnCount,
		ExpectedRecCount:  snap.Conversation.RecCount,
		Turns: []domainagg.TurnInput{
			{Role: types.RoleUser, Content: text, At: now},
			{Role: types.RoleAssistant, Content: reply, At: now},
		},
		Recommendations: ToInputs(accepted),
		Profile:         profileFrom(snap.Transcript, text),
		MarkCompleted:   phase == PhaseCompletion,
		EventAt:         now,
	})
	if err != nil {
		o.deps.Metrics.IncTurn(string(phase), "commit_failed")
		return nil, TranslateStoreError(err)
	}
	o.deps.Metrics.IncTurn(string(phase), "ok")
	o.deps.Metrics.AddRecommendations(recommendationSourceDialogue, len(accepted))

	res := &TurnResult{
		ConversationID:     conversationID,
		Reply:              reply,
		Phase:              phase,
		HasRecommendations: len(updated.Recommendations) > 0,
		IsComplete:         updated.Conversation.IsCompleted(),
		RecommendedItems:   updated.Recommendations,
		RetrievalDegraded:  degraded,
	}
	o.afterCommit(ctx, res, len(accepted))
	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, messages []Message, system string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deps.GenerationTimeout)
	defer cancel()
	reply, err := o.deps.Generator.Generate(ctx, messages, system)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrGenerationFailed, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", pkgerrors.ErrGenerationFailed)
	}
	return reply, nil
}

// afterCommit publishes events and fires the document trigger. Failures are
// logged; the turn is already durable.
func (o *Orchestrator) afterCommit(ctx context.Context, res *TurnResult, accepted int) {
	o.publish(ctx, realtime.NewConversationEvent(res.ConversationID, realtime.EventConversationTurn, map[string]any{
		"phase":               res.Phase,
		"accepted":            accepted,
		"has_recommendations": res.HasRecommendations,
	}))
	if res.Phase != PhaseCompletion || !res.IsComplete {
		return
	}
	o.publish(ctx, realtime.NewConversationEvent(res.ConversationID, realtime.EventConversationCompleted, nil))
	if !res.HasRecommendations || o.deps.Documents == nil {
		return
	}
	if err := o.deps.Documents.EnsureConversationDocuments(ctx, res.ConversationID); err != nil {
		o.log.Warn("document trigger failed", "conversation_id", res.ConversationID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev realtime.Event) {
	if o.deps.Events == nil {
		return
	}
	if err := o.deps.Events.Publish(ctx, ev); err != nil {
		o.log.Warn("publish event failed", "event", ev.Type, "error", err)
	}
}

// profileFrom derives the stored budget and playstyle from the dialogue so
// far. Nil when neither is known.
func profileFrom(transcript []*types.TranscriptTurn, text string) *domainagg.ProfileUpdate {
	filters := retrieval.NewConstraintExtractor().Extract(retrieval.DialogueText(transcript, text))
	playstyle := retrieval.PrimaryPlaystyle(retrieval.ExtractInterests(text))
	if filters.PriceMax == nil && playstyle == "" {
		return nil
	}
	return &domainagg.ProfileUpdate{BudgetUSD: filters.PriceMax, Playstyle: playstyle}
}
