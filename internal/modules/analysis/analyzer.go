package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

const recommendationSourcePostCall = "post_call"

// Store is the persistence a post-call import needs.
type Store interface {
	ImportCallTranscript(ctx context.Context, in domainagg.ImportCallTranscriptInput) (*domainagg.ConversationSnapshot, error)
	Complete(ctx context.Context, in domainagg.CompleteInput) (*domainagg.ConversationSnapshot, error)
}

type CatalogNames interface {
	ListNames(dbc dbctx.Context) ([]*types.CatalogItem, error)
}

type AnalyzerDeps struct {
	Log     *logger.Logger
	Store   Store
	Catalog CatalogNames
	Ledger  *consultant.Ledger
	Metrics *observability.Metrics

	Documents consultant.DocumentTrigger
	Events    consultant.EventPublisher
	Now       func() time.Time
}

// Result summarises one processed call.
type Result struct {
	ConversationID  uuid.UUID                     `json:"conversation_id"`
	TurnsImported   int                           `json:"turns_imported"`
	Recommendations []*types.RecommendationRecord `json:"recommended_ships"`
	Placeholders    int                           `json:"placeholders"`
	Completed       bool                          `json:"completed"`
}

type Analyzer struct {
	deps AnalyzerDeps
	log  *logger.Logger
}

func NewAnalyzer(deps AnalyzerDeps) (*Analyzer, error) {
	if deps.Store == nil || deps.Catalog == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("analysis: store, catalog and ledger are required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Analyzer{deps: deps, log: deps.Log.With("service", "PostCallAnalyzer")}, nil
}

// Process imports a finished voice call. The conversation is found by its
// external call id or created. The ledger is rebuilt from the ship names
// spoken in the call, extended with data-collection names the catalog does not
// know. Redelivery of the same call rewrites the same ledger.
func (a *Analyzer) Process(ctx context.Context, payload PostCallPayload) (*Result, error) {
	callID := strings.TrimSpace(payload.Data.ConversationID)
	if callID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", pkgerrors.ErrInvalidArgument)
	}
	ctx, span := observability.StartSpan(ctx, "analysis.post_call", attribute.String("call.id", callID))
	defer span.End()

	now := a.deps.Now().UTC()
	startedAt := payload.StartedAt()
	if startedAt.IsZero() {
		startedAt = now
	}
	turns := payload.Data.Turns(startedAt)

	snap, err := a.deps.Store.ImportCallTranscript(ctx, domainagg.ImportCallTranscriptInput{
		ExternalCallID: callID,
		Turns:          turns,
		EventAt:        startedAt,
	})
	if err != nil {
		span.RecordError(err)
		return nil, consultant.TranslateStoreError(err)
	}
	convID := snap.Conversation.ID
	log := a.log.With("conversation_id", convID, "call_id", callID)

	catalog, err := a.deps.Catalog.ListNames(dbctx.From(ctx))
	if err != nil {
		return nil, fmt.Errorf("load catalog names: %w", err)
	}

	analysis := payload.Data.Analysis
	mentioned := mentionRecords(FindMentions(transcriptText(turns), catalog))
	placeholders := Placeholders(analysis.ShipNames(), namesOf(mentioned, catalog), analysis.Playstyle())
	records := append(mentioned, placeholders...)

	res := &Result{ConversationID: convID, TurnsImported: len(turns)}
	if len(records) > 0 {
		updated, err := a.deps.Ledger.Replace(ctx, convID, records)
		if err != nil {
			return nil, err
		}
		res.Recommendations = updated.Recommendations
		for _, r := range updated.Recommendations {
			if r.IsPlaceholder() {
				res.Placeholders++
			}
		}
		a.deps.Metrics.AddRecommendations(recommendationSourcePostCall, len(updated.Recommendations))
		a.publish(ctx, realtime.NewConversationEvent(convID, realtime.EventRecommendationsReplaced, map[string]any{
			"count":  len(updated.Recommendations),
			"source": recommendationSourcePostCall,
		}))
	} else {
		res.Recommendations = snap.Recommendations
	}

	completed, err := a.deps.Store.Complete(ctx, domainagg.CompleteInput{
		ConversationID: convID,
		ContactEmail:   analysis.ContactEmail(),
		ContactName:    analysis.ContactName(),
		EventAt:        now,
	})
	if err != nil {
		return nil, consultant.TranslateStoreError(err)
	}
	res.Completed = completed.Conversation.IsCompleted()
	log.Info("post-call analysis stored", "turns", len(turns), "recommendations", len(res.Recommendations), "placeholders", res.Placeholders)

	a.publish(ctx, realtime.NewConversationEvent(convID, realtime.EventConversationCompleted, map[string]any{"source": "voice_call"}))
	if len(res.Recommendations) > 0 && a.deps.Documents != nil {
		if err := a.deps.Documents.EnsureConversationDocuments(ctx, convID); err != nil {
			log.Warn("document trigger failed", "error", err)
		}
	}
	return res, nil
}

func (a *Analyzer) publish(ctx context.Context, ev realtime.Event) {
	if a.deps.Events == nil {
		return
	}
	if err := a.deps.Events.Publish(ctx, ev); err != nil {
		a.log.Warn("publish event failed", "event", ev.Type, "error", err)
	}
}

func transcriptText(turns []domainagg.TurnInput) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// namesOf returns the catalog plus stand-ins for already mentioned records, so
// placeholder generation skips both.
func namesOf(mentioned []*types.RecommendationRecord, catalog []*types.CatalogItem) []*types.CatalogItem {
	out := make([]*types.CatalogItem, 0, len(catalog)+len(mentioned))
	out = append(out, catalog...)
	for _, r := range mentioned {
		out = append(out, &types.CatalogItem{Name: r.DisplayName})
	}
	return out
}
