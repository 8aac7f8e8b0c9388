package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

// JobsChannel carries events for jobs that are not scoped to a conversation.
const JobsChannel = "jobs"

const notifyTimeout = 2 * time.Second

// EventJobNotifier publishes job lifecycle events on the realtime bus. It
// satisfies both JobNotifier and the worker's runtime.Notifier.
type EventJobNotifier struct {
	log    *logger.Logger
	events consultant.EventPublisher
}

func NewJobNotifier(baseLog *logger.Logger, events consultant.EventPublisher) *EventJobNotifier {
	return &EventJobNotifier{
		log:    baseLog.With("component", "JobNotifier"),
		events: events,
	}
}

func (n *EventJobNotifier) JobCreated(job *types.JobRun) {
	n.publish(job, realtime.EventJobCreated, map[string]any{"job": job})
}

func (n *EventJobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	n.publish(job, realtime.EventJobProgress, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *EventJobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	n.publish(job, realtime.EventJobFailed, map[string]any{
		"stage":    stage,
		"error":    errorMessage,
		"attempts": job.Attempts,
	})
}

func (n *EventJobNotifier) JobDone(job *types.JobRun) {
	n.publish(job, realtime.EventJobDone, map[string]any{"job": job})
}

func (n *EventJobNotifier) publish(job *types.JobRun, typ realtime.EventType, data map[string]any) {
	if n == nil || n.events == nil || job == nil {
		return
	}
	data["job_id"] = job.ID
	data["job_type"] = job.JobType
	ev := realtime.Event{Channel: jobChannel(job), Type: typ, Data: data, At: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := n.events.Publish(ctx, ev); err != nil {
		n.log.Warn("publish job event failed", "job_id", job.ID, "event", typ, "error", err)
	}
}

func jobChannel(job *types.JobRun) string {
	if job.EntityType == EntityTypeConversation && job.EntityID != nil && *job.EntityID != uuid.Nil {
		return realtime.ConversationChannel(*job.EntityID)
	}
	return JobsChannel
}
