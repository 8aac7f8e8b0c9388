package runtime

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
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/ctxutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

// Notifier receives lifecycle changes of a running job. Implementations must
// not block.
type Notifier interface {
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
}

/*
Context is the handle a handler gets for one claimed job_run.

Handlers never write job_run directly. Progress, Fail and Succeed are the only
lifecycle writes, and all of them leave a canceled row untouched.
*/
type Context struct {
	Ctx    context.Context
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Notify Notifier

	payload map[string]any
	done    bool
}

// NewContext decodes the payload eagerly. A malformed payload reads as empty;
// handlers validate the fields they need.
func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, notify Notifier) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		Ctx:    ctx,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return err
	}
	if m != nil {
		c.payload = m
	}
	return nil
}

// applyTraceData carries the enqueuing request's ids into the job's logs.
func (c *Context) applyTraceData() {
	td := &ctxutil.TraceData{
		TraceID:        c.PayloadString("trace_id"),
		RequestID:      c.PayloadString("request_id"),
		ConversationID: c.PayloadString("conversation_id"),
	}
	if *td == (ctxutil.TraceData{}) {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// PayloadUUID falls back to the job's EntityID when key is absent, so
// entity-scoped jobs need not repeat their id in the payload.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	if s := c.PayloadString(key); s != "" {
		id, err := uuid.Parse(s)
		if err != nil || id == uuid.Nil {
			return uuid.Nil, false
		}
		return id, true
	}
	if c.Job != nil && c.Job.EntityID != nil && *c.Job.EntityID != uuid.Nil {
		return *c.Job.EntityID, true
	}
	return uuid.Nil, false
}

// Finished reports whether Fail or Succeed already ran on this context.
func (c *Context) Finished() bool { return c != nil && c.done }

func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	if !c.write(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		if c.Notify != nil {
			c.Notify.JobProgress(c.Job, stage, pct, msg)
		}
	}
}

/*
Fail records a failed attempt. The worker's claim query retries failed rows
after the retry delay until attempts run out, so failed is terminal only once
the job has exhausted them.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	c.done = true
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if !c.write(map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
		if c.Notify != nil {
			c.Notify.JobFailed(c.Job, stage, msg)
		}
	}
}

// Succeed stores result as JSON and marks the run done.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	c.done = true
	now := time.Now().UTC()
	res := datatypes.JSON([]byte("{}"))
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	if !c.write(map[string]interface{}{
		"status":       types.JobStatusSucceeded,
		"stage":        finalStage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = types.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		if c.Notify != nil {
			c.Notify.JobDone(c.Job)
		}
	}
}

// write reports false when the row is canceled or the update failed.
func (c *Context) write(updates map[string]interface{}) bool {
	if c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return true
	}
	ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.From(c.Ctx), c.Job.ID, []string{types.JobStatusCanceled}, updates)
	return err == nil && ok
}
