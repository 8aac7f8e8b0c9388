package conversation_documents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	jobrt "github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/runtime"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	convID, ok := jc.PayloadUUID("conversation_id")
	if !ok || convID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing conversation_id"))
		return nil
	}

	jc.Progress("load", 10, "Loading conversation")
	snap, err := p.store.Load(jc.Ctx, convID)
	if err != nil {
		err = consultant.TranslateStoreError(err)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			jc.Succeed("done", map[string]any{"conversation_id": convID.String(), "skipped": true, "reason": "conversation not found"})
			return nil
		}
		jc.Fail("load", err)
		return nil
	}
	if !snap.Conversation.IsCompleted() || len(snap.Recommendations) == 0 {
		jc.Succeed("done", map[string]any{"conversation_id": convID.String(), "skipped": true, "reason": "nothing to render"})
		return nil
	}

	jc.Progress("render", 40, "Rendering transcript and fleet guide")
	arts, err := p.builder.Build(jc.Ctx, snap)
	if err != nil {
		jc.Fail("render", err)
		return nil
	}

	jc.Progress("persist", 80, "Saving document locations")
	if err := p.store.MarkDocuments(jc.Ctx, domainagg.MarkDocumentsInput{
		ConversationID:    convID,
		TranscriptDocPath: arts.TranscriptPath,
		FleetGuideDocPath: arts.FleetGuidePath,
	}); err != nil {
		jc.Fail("persist", consultant.TranslateStoreError(err))
		return nil
	}
	p.publish(jc, realtime.NewConversationEvent(convID, realtime.EventDocumentsReady, map[string]any{
		"documents": []string{"transcript", "fleet-guide"},
	}))

	result := map[string]any{
		"conversation_id": convID.String(),
		"ships":           len(snap.Recommendations),
	}
	conv := snap.Conversation
	if p.email != nil && conv.ContactEmail != nil && *conv.ContactEmail != "" && !conv.EmailSent {
		job, err := p.email.RequestConversationEmail(jc.Ctx, convID, false)
		if err != nil {
			p.log.Warn("email enqueue failed", "conversation_id", convID, "error", err)
		} else if job != nil {
			result["email_job_id"] = job.ID.String()
		}
	}
	jc.Succeed("done", result)
	return nil
}

func (p *Pipeline) publish(jc *jobrt.Context, ev realtime.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(jc.Ctx, ev); err != nil {
		p.log.Warn("publish event failed", "event", ev.Type, "error", err)
	}
}
