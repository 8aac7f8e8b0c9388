package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	repotest "github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos/testutil"
	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/runtime"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

type funcHandler struct {
	typ string
	run func(jc *runtime.Context) error
}

func (h funcHandler) Type() string                  { return h.typ }
func (h funcHandler) Run(jc *runtime.Context) error { return h.run(jc) }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) JobProgress(_ *types.JobRun, stage string, _ int, _ string) {
	n.add("progress:" + stage)
}
func (n *recordingNotifier) JobFailed(_ *types.JobRun, stage string, _ string) { n.add("failed:" + stage) }
func (n *recordingNotifier) JobDone(*types.JobRun)                             { n.add("done") }

type harness struct {
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   *recordingNotifier
	worker   *Worker
}

func newHarness(t *testing.T, handlers ...runtime.Handler) *harness {
	t.Helper()
	db := repotest.SQLite(t)
	log := repotest.Logger(t)
	h := &harness{
		repo:     repos.NewJobRunRepo(db, log),
		registry: runtime.NewRegistry(),
		notify:   &recordingNotifier{},
	}
	for _, hd := range handlers {
		require.NoError(t, h.registry.Register(hd))
	}
	h.worker = NewWorker(log, h.repo, h.registry, h.notify, Config{Concurrency: 1, PollInterval: 10 * time.Millisecond})
	return h
}

func (h *harness) enqueue(t *testing.T, jobType string, payload map[string]any) *types.JobRun {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	now := time.Now().UTC()
	job := &types.JobRun{
		JobType:   jobType,
		Status:    types.JobStatusQueued,
		Stage:     "queued",
		Payload:   datatypes.JSON(raw),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = h.repo.Create(dbctx.From(context.Background()), []*types.JobRun{job})
	require.NoError(t, err)
	return job
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *types.JobRun {
	t.Helper()
	job, err := h.repo.GetByID(dbctx.From(context.Background()), id)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestRunOnceSucceeds(t *testing.T) {
	h := newHarness(t, funcHandler{typ: "echo", run: func(jc *runtime.Context) error {
		jc.Progress("work", 50, "halfway")
		jc.Succeed("done", map[string]any{"echo": jc.PayloadString("text")})
		return nil
	}})
	job := h.enqueue(t, "echo", map[string]any{"text": "hello"})

	ran, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	got := h.reload(t, job.ID)
	assert.Equal(t, types.JobStatusSucceeded, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 1, got.Attempts)
	assert.JSONEq(t, `{"echo":"hello"}`, string(got.Result))
	assert.Equal(t, []string{"progress:work", "done"}, h.notify.events)

	ran, err = h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "queue should be empty")
}

func TestRunOnceImplicitSuccess(t *testing.T) {
	h := newHarness(t, funcHandler{typ: "noop", run: func(*runtime.Context) error { return nil }})
	job := h.enqueue(t, "noop", nil)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusSucceeded, h.reload(t, job.ID).Status)
}

func TestRunOnceRecordsHandlerError(t *testing.T) {
	h := newHarness(t, funcHandler{typ: "boom", run: func(*runtime.Context) error {
		return errors.New("upstream unavailable")
	}})
	job := h.enqueue(t, "boom", nil)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)

	got := h.reload(t, job.ID)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "run", got.Stage)
	assert.Equal(t, "upstream unavailable", got.Error)
	assert.NotNil(t, got.LastErrorAt)

	// Not due again until the retry delay has passed.
	ran, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRunOnceRecoversPanic(t *testing.T) {
	h := newHarness(t, funcHandler{typ: "panics", run: func(*runtime.Context) error {
		panic("nil map")
	}})
	job := h.enqueue(t, "panics", nil)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)

	got := h.reload(t, job.ID)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "panic", got.Stage)
	assert.Contains(t, got.Error, "nil map")
}

func TestRunOnceMissingHandler(t *testing.T) {
	h := newHarness(t)
	job := h.enqueue(t, "unknown", nil)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)

	got := h.reload(t, job.ID)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "dispatch", got.Stage)
	assert.Contains(t, got.Error, "job_type=unknown")
}

func TestCanceledJobIsNotOverwritten(t *testing.T) {
	var repo repos.JobRunRepo
	h := newHarness(t, funcHandler{typ: "slow", run: func(jc *runtime.Context) error {
		if err := repo.UpdateFields(dbctx.From(jc.Ctx), jc.Job.ID, map[string]interface{}{"status": types.JobStatusCanceled}); err != nil {
			return err
		}
		jc.Succeed("done", nil)
		return nil
	}})
	repo = h.repo
	job := h.enqueue(t, "slow", nil)

	_, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCanceled, h.reload(t, job.ID).Status)
	assert.NotContains(t, h.notify.events, "done")
}

func TestStartDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	h := newHarness(t, funcHandler{typ: "count", run: func(*runtime.Context) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}})
	for i := 0; i < 3; i++ {
		h.enqueue(t, "count", map[string]any{"i": i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.worker.Start(ctx)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 3
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	h.worker.Wait()
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := runtime.NewRegistry()
	h := funcHandler{typ: "x", run: func(*runtime.Context) error { return nil }}
	require.NoError(t, r.Register(h))
	assert.Error(t, r.Register(h))
	assert.Error(t, r.Register(nil))
	assert.Equal(t, []string{"x"}, r.Types())
}
