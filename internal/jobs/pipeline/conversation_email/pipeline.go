package conversation_email

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

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
	resend, _ := jc.Payload()["resend"].(bool)

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
	conv := snap.Conversation
	if conv.EmailSent && !resend {
		jc.Succeed("done", map[string]any{"conversation_id": convID.String(), "skipped": true, "reason": "already sent"})
		return nil
	}
	if conv.ContactEmail == nil || *conv.ContactEmail == "" {
		jc.Succeed("done", map[string]any{"conversation_id": convID.String(), "skipped": true, "reason": "no contact email"})
		return nil
	}
	if conv.TranscriptDocPath == "" || conv.FleetGuideDocPath == "" {
		// Retried by the worker once the documents job has stored the paths.
		jc.Fail("documents", fmt.Errorf("documents not rendered yet"))
		return nil
	}

	jc.Progress("send", 50, "Sending fleet recommendations")
	res, err := p.email.SendFleetEmail(jc.Ctx, snap)
	if err != nil {
		jc.Fail("send", err)
		return nil
	}

	sentAt := p.now().UTC()
	if err := p.store.MarkEmailSent(jc.Ctx, convID, sentAt); err != nil {
		// The email is out; a retry would send it twice.
		p.log.Error("mark email sent failed", "conversation_id", convID, "error", err)
	}
	if p.events != nil {
		ev := realtime.NewConversationEvent(convID, realtime.EventEmailSent, map[string]any{"sent_at": sentAt})
		if err := p.events.Publish(jc.Ctx, ev); err != nil {
			p.log.Warn("publish event failed", "event", ev.Type, "error", err)
		}
	}
	jc.Succeed("done", map[string]any{
		"conversation_id": convID.String(),
		"status_code":     res.StatusCode,
		"message_id":      res.MessageID,
		"ships":           len(snap.Recommendations),
	})
	return nil
}
