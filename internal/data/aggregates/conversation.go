package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

const conversationTable = "conversation"

type ConversationAggregateDeps struct {
	Base BaseDeps

	Conversations   repos.ConversationRepo
	Transcript      repos.TranscriptTurnRepo
	Recommendations repos.RecommendationRepo
}

type conversationAggregate struct {
	deps ConversationAggregateDeps
}

func NewConversationAggregate(deps ConversationAggregateDeps) domainagg.ConversationAggregate {
	deps.Base = deps.Base.withDefaults()
	return &conversationAggregate{deps: deps}
}

func (a *conversationAggregate) configured(op string) error {
	if a.deps.Conversations == nil || a.deps.Transcript == nil || a.deps.Recommendations == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "conversation aggregate repos not configured", nil)
	}
	return nil
}

func (a *conversationAggregate) Create(ctx context.Context, in domainagg.CreateConversationInput) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.Create"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	startedAt := eventTime(in.StartedAt)
	conv := &types.Conversation{
		ID:             uuid.New(),
		Status:         types.ConversationStatusActive,
		ContactName:    optionalString(in.ContactName),
		ContactEmail:   optionalString(in.ContactEmail),
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
		Metadata:       datatypes.JSON([]byte("{}")),
	}
	var out *domainagg.ConversationSnapshot
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Conversations.Create(dbc, conv); err != nil {
			return err
		}
		out = &domainagg.ConversationSnapshot{
			Conversation:    conv,
			Transcript:      []*types.TranscriptTurn{},
			Recommendations: []*types.RecommendationRecord{},
		}
		return nil
	})
	return out, err
}

func (a *conversationAggregate) Load(ctx context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.Load"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	dbc := dbctx.From(ctx)
	conv, err := a.deps.Conversations.GetByID(dbc, id)
	if err != nil {
		return nil, MapError(op, err)
	}
	if conv == nil {
		return nil, notFound(op, id)
	}
	snap, err := a.snapshotOf(dbc, conv)
	if err != nil {
		return nil, MapError(op, err)
	}
	return snap, nil
}

func (a *conversationAggregate) CommitTurn(ctx context.Context, in domainagg.CommitTurnInput) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.CommitTurn"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if in.ConversationID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	if len(in.Turns) == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "at least one turn is required", nil)
	}
	for i, t := range in.Turns {
		if err := validateTurn(t); err != nil {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("turn %d: %v", i, err), nil)
		}
	}
	at := eventTime(in.EventAt)

	var out *domainagg.ConversationSnapshot
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		conv, err := a.deps.Conversations.LockByID(dbc, in.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return notFound(op, in.ConversationID)
		}
		if err := RequireCountMatch("turn_count", conv.TurnCount, in.ExpectedTurnCount); err != nil {
			return err
		}
		if err := RequireCountMatch("rec_count", conv.RecCount, in.ExpectedRecCount); err != nil {
			return err
		}

		turns := buildTurns(conv.ID, conv.TurnCount, in.Turns, at)
		if _, err := a.deps.Transcript.Create(dbc, turns); err != nil {
			return err
		}

		recs := buildRecommendations(conv.ID, conv.RecCount, in.Recommendations, at)
		if _, err := a.deps.Recommendations.Create(dbc, recs); err != nil {
			return err
		}

		updates := map[string]any{
			"turn_count":       conv.TurnCount + len(turns),
			"rec_count":        conv.RecCount + len(recs),
			"last_activity_at": activityTime(conv, at),
			"updated_at":       at,
		}
		if in.Profile != nil {
			if in.Profile.BudgetUSD != nil {
				updates["user_budget_usd"] = *in.Profile.BudgetUSD
			}
			if p := strings.TrimSpace(in.Profile.Playstyle); p != "" {
				updates["user_playstyle"] = p
			}
		}
		if in.MarkCompleted && conv.CompletedAt == nil {
			updates["status"] = types.ConversationStatusCompleted
			updates["completed_at"] = at
		}
		ok, err := a.deps.Base.CASGuard.UpdateByCounts(dbc, conversationTable, conv.ID, conv.TurnCount, conv.RecCount, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "conversation changed while committing turn"); err != nil {
			return err
		}

		out, err = a.reload(dbc, op, conv.ID)
		return err
	})
	return out, err
}

func (a *conversationAggregate) ReplaceRecommendations(ctx context.Context, in domainagg.ReplaceRecommendationsInput) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.ReplaceRecommendations"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if in.ConversationID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	at := eventTime(in.EventAt)

	var out *domainagg.ConversationSnapshot
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		conv, err := a.deps.Conversations.LockByID(dbc, in.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return notFound(op, in.ConversationID)
		}
		if _, err := a.deps.Recommendations.DeleteByConversation(dbc, conv.ID); err != nil {
			return err
		}
		// Replacement renumbers from 1 regardless of the priorities passed in.
		inputs := make([]domainagg.RecommendationInput, len(in.Recommendations))
		copy(inputs, in.Recommendations)
		for i := range inputs {
			inputs[i].Priority = 0
		}
		recs := buildRecommendations(conv.ID, 0, inputs, at)
		if _, err := a.deps.Recommendations.Create(dbc, recs); err != nil {
			return err
		}
		if err := a.deps.Conversations.UpdateFields(dbc, conv.ID, map[string]any{
			"rec_count":        len(recs),
			"last_activity_at": activityTime(conv, at),
			"updated_at":       at,
		}); err != nil {
			return err
		}
		out, err = a.reload(dbc, op, conv.ID)
		return err
	})
	return out, err
}

func (a *conversationAggregate) Complete(ctx context.Context, in domainagg.CompleteInput) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.Complete"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if in.ConversationID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	at := eventTime(in.EventAt)

	var out *domainagg.ConversationSnapshot
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		conv, err := a.deps.Conversations.LockByID(dbc, in.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return notFound(op, in.ConversationID)
		}
		updates := contactUpdates(in.ContactEmail, in.ContactName)
		if conv.CompletedAt == nil {
			updates["status"] = types.ConversationStatusCompleted
			updates["completed_at"] = at
			updates["last_activity_at"] = activityTime(conv, at)
		}
		if len(updates) > 0 {
			updates["updated_at"] = at
			if err := a.deps.Conversations.UpdateFields(dbc, conv.ID, updates); err != nil {
				return err
			}
		}
		out, err = a.reload(dbc, op, conv.ID)
		return err
	})
	return out, err
}

func (a *conversationAggregate) SetContact(ctx context.Context, in domainagg.SetContactInput) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.SetContact"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if in.ConversationID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	updates := contactUpdates(in.ContactEmail, in.ContactName)
	if len(updates) == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "contact email or name is required", nil)
	}

	var out *domainagg.ConversationSnapshot
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		conv, err := a.deps.Conversations.LockByID(dbc, in.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return notFound(op, in.ConversationID)
		}
		if err := a.deps.Conversations.UpdateFields(dbc, conv.ID, updates); err != nil {
			return err
		}
		out, err = a.reload(dbc, op, conv.ID)
		return err
	})
	return out, err
}

func (a *conversationAggregate) MarkDocuments(ctx context.Context, in domainagg.MarkDocumentsInput) error {
	const op = "Sales.Conversation.MarkDocuments"
	if err := a.configured(op); err != nil {
		return err
	}
	if in.ConversationID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	updates := map[string]any{}
	if p := strings.TrimSpace(in.TranscriptDocPath); p != "" {
		updates["transcript_doc_path"] = p
	}
	if p := strings.TrimSpace(in.FleetGuideDocPath); p != "" {
		updates["fleet_guide_doc_path"] = p
	}
	if len(updates) == 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "no document paths", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, conversationTable, in.ConversationID, []string{types.ConversationStatusCompleted}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return PreconditionError(op, "conversation is missing or not completed")
		}
		return nil
	})
}

func (a *conversationAggregate) MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "Sales.Conversation.MarkEmailSent"
	if err := a.configured(op); err != nil {
		return err
	}
	if id == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	sentAt := eventTime(at)
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		conv, err := a.deps.Conversations.LockByID(dbc, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return notFound(op, id)
		}
		return a.deps.Conversations.UpdateFields(dbc, id, map[string]any{
			"email_sent":    true,
			"email_sent_at": sentAt,
		})
	})
}

func (a *conversationAggregate) ImportCallTranscript(ctx context.Context, in domainagg.ImportCallTranscriptInput) (*domainagg.ConversationSnapshot, error) {
	const op = "Sales.Conversation.ImportCallTranscript"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	callID := strings.TrimSpace(in.ExternalCallID)
	if callID == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing external_call_id", nil)
	}
	turnsIn := make([]domainagg.TurnInput, 0, len(in.Turns))
	for _, t := range in.Turns {
		if validateTurn(t) == nil {
			turnsIn = append(turnsIn, t)
		}
	}
	at := eventTime(in.EventAt)

	var out *domainagg.ConversationSnapshot
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		existing, err := a.deps.Conversations.GetByExternalCallID(dbc, callID)
		if err != nil {
			return err
		}
		var conv *types.Conversation
		if existing == nil {
			meta, _ := json.Marshal(map[string]any{"source": "voice_call"})
			conv = &types.Conversation{
				ID:             uuid.New(),
				Status:         types.ConversationStatusActive,
				ExternalCallID: &callID,
				StartedAt:      at,
				LastActivityAt: at,
				Metadata:       datatypes.JSON(meta),
			}
			if err := a.deps.Conversations.Create(dbc, conv); err != nil {
				return err
			}
		} else {
			conv, err = a.deps.Conversations.LockByID(dbc, existing.ID)
			if err != nil {
				return err
			}
			if conv == nil {
				return notFound(op, existing.ID)
			}
		}

		// A redelivered webhook must not append the call transcript twice.
		if conv.TurnCount == 0 && len(turnsIn) > 0 {
			turns := buildTurns(conv.ID, 0, turnsIn, at)
			if _, err := a.deps.Transcript.Create(dbc, turns); err != nil {
				return err
			}
			if err := a.deps.Conversations.UpdateFields(dbc, conv.ID, map[string]any{
				"turn_count":       len(turns),
				"last_activity_at": activityTime(conv, at),
			}); err != nil {
				return err
			}
		}
		out, err = a.reload(dbc, op, conv.ID)
		return err
	})
	return out, err
}

func (a *conversationAggregate) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "Sales.Conversation.Delete"
	if err := a.configured(op); err != nil {
		return err
	}
	if id == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing conversation_id", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		conv, err := a.deps.Conversations.LockByID(dbc, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return notFound(op, id)
		}
		if err := a.deps.Transcript.DeleteByConversation(dbc, id); err != nil {
			return err
		}
		if _, err := a.deps.Recommendations.DeleteByConversation(dbc, id); err != nil {
			return err
		}
		return a.deps.Conversations.SoftDelete(dbc, id)
	})
}

func (a *conversationAggregate) reload(dbc dbctx.Context, op string, id uuid.UUID) (*domainagg.ConversationSnapshot, error) {
	conv, err := a.deps.Conversations.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, notFound(op, id)
	}
	return a.snapshotOf(dbc, conv)
}

func (a *conversationAggregate) snapshotOf(dbc dbctx.Context, conv *types.Conversation) (*domainagg.ConversationSnapshot, error) {
	turns, err := a.deps.Transcript.ListByConversation(dbc, conv.ID)
	if err != nil {
		return nil, err
	}
	recs, err := a.deps.Recommendations.ListByConversation(dbc, conv.ID)
	if err != nil {
		return nil, err
	}
	return &domainagg.ConversationSnapshot{
		Conversation:    conv,
		Transcript:      turns,
		Recommendations: recs,
	}, nil
}

func buildTurns(convID uuid.UUID, existing int, in []domainagg.TurnInput, at time.Time) []*types.TranscriptTurn {
	out := make([]*types.TranscriptTurn, 0, len(in))
	for i, t := range in {
		created := at
		if !t.At.IsZero() {
			created = t.At.UTC()
		}
		out = append(out, &types.TranscriptTurn{
			ID:             uuid.New(),
			ConversationID: convID,
			Seq:            existing + i + 1,
			Role:           t.Role,
			Content:        t.Content,
			CreatedAt:      created,
		})
	}
	return out
}

// buildRecommendations truncates the batch so the ledger never exceeds
// types.MaxRecommendations. Missing priorities continue after existing.
func buildRecommendations(convID uuid.UUID, existing int, in []domainagg.RecommendationInput, at time.Time) []*types.RecommendationRecord {
	room := types.MaxRecommendations - existing
	if room <= 0 || len(in) == 0 {
		return []*types.RecommendationRecord{}
	}
	if len(in) > room {
		in = in[:room]
	}
	out := make([]*types.RecommendationRecord, 0, len(in))
	for i, r := range in {
		priority := r.Priority
		if priority <= 0 {
			priority = existing + i + 1
		}
		var itemID *uuid.UUID
		if r.ItemID != nil && *r.ItemID != uuid.Nil {
			id := *r.ItemID
			itemID = &id
		}
		out = append(out, &types.RecommendationRecord{
			ID:             uuid.New(),
			ConversationID: convID,
			ItemID:         itemID,
			DisplayName:    strings.TrimSpace(r.DisplayName),
			Manufacturer:   r.Manufacturer,
			Role:           r.Role,
			Slug:           r.Slug,
			Priority:       priority,
			Reason:         r.Reason,
			CreatedAt:      at,
		})
	}
	return out
}

func validateTurn(t domainagg.TurnInput) error {
	switch t.Role {
	case types.RoleUser, types.RoleAssistant:
	default:
		return fmt.Errorf("invalid role %q", t.Role)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("empty content")
	}
	return nil
}

func contactUpdates(email, name string) map[string]any {
	updates := map[string]any{}
	if v := strings.TrimSpace(email); v != "" {
		updates["contact_email"] = v
	}
	if v := strings.TrimSpace(name); v != "" {
		updates["contact_name"] = v
	}
	return updates
}

func activityTime(conv *types.Conversation, at time.Time) time.Time {
	if at.Before(conv.StartedAt) {
		return conv.StartedAt
	}
	return at
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func notFound(op string, id uuid.UUID) error {
	return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("conversation not found: %s", id), nil)
}

func PreconditionError(op, msg string) error {
	return domainagg.NewError(domainagg.CodePreconditionFailed, op, msg, nil)
}
