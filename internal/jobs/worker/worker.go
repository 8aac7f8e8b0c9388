package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/runtime"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:       envutil.Int("WORKER_CONCURRENCY", 2),
		PollInterval:      envutil.Seconds("WORKER_POLL_SECONDS", time.Second),
		HeartbeatInterval: envutil.Seconds("WORKER_HEARTBEAT_SECONDS", 15*time.Second),
		MaxAttempts:       envutil.Int("WORKER_MAX_ATTEMPTS", 5),
		RetryDelay:        envutil.Seconds("WORKER_RETRY_DELAY_SECONDS", 30*time.Second),
		StaleRunning:      envutil.Seconds("WORKER_STALE_RUNNING_SECONDS", 30*time.Minute),
	}
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	return c
}

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   runtime.Notifier
	metrics  *observability.Metrics
	cfg      Config
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify runtime.Notifier, cfg Config) *Worker {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		metrics:  observability.Current(),
		cfg:      cfg.normalized(),
	}
}

// Start launches the pool and returns immediately. Loops stop when ctx ends;
// Wait blocks until they have.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and runs at most one job, reporting whether one was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.From(ctx), w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(ctx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	start := time.Now()
	jc := runtime.NewContext(ctx, job, w.repo, w.notify)
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		w.metrics.ObserveJob(job.JobType, types.JobStatusFailed, time.Since(start))
		return
	}

	stopBeat := w.heartbeat(ctx, job)
	defer stopBeat()

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil && !jc.Finished() {
			jc.Fail("run", runErr)
		}
	}()
	if !jc.Finished() {
		jc.Succeed("done", nil)
	}

	log.Info("Job finished", "status", job.Status, "duration_ms", time.Since(start).Milliseconds())
	w.metrics.ObserveJob(job.JobType, job.Status, time.Since(start))
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.From(ctx), job.ID); err != nil {
					w.log.Warn("job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
