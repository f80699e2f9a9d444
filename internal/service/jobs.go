package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

var (
	// ErrQueueFull is returned when the ingest queue cannot take more jobs.
	ErrQueueFull = errors.New("ingest queue full")
	// ErrRunnerClosed is returned when enqueueing after Close.
	ErrRunnerClosed = errors.New("runner closed")
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Ingest(ctx context.Context, paths []string) IngestResult
}

// TaskTracker is the subset of the tracker the runner drives.
type TaskTracker interface {
	tasks.Tracker
	CreateReingest(id string) (tasks.Task, error)
}

type job struct {
	taskID string
	paths  []string
}

// Runner executes ingestion jobs in the background and owns every status
// transition of the tasks it runs.
type Runner struct {
	ingester Ingester
	tracker  TaskTracker
	logger   *slog.Logger

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRunner creates a runner with room for queueSize waiting jobs.
func NewRunner(ingester Ingester, tracker TaskTracker, queueSize int, logger *slog.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ingester: ingester,
		tracker:  tracker,
		logger:   logger,
		queue:    make(chan job, queueSize),
	}
}

// Start launches the worker. Jobs run with ctx. Once ctx is cancelled the job
// in flight fails and jobs still queued are marked FAILED by Close without
// running; their files stay on disk.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for j := range r.queue {
			r.run(ctx, j)
		}
	}()
}

// EnqueueIngest hands a targeted ingestion of paths to the worker. The task
// must already exist in the tracker. On failure the task is marked FAILED.
func (r *Runner) EnqueueIngest(taskID string, paths []string) error {
	return r.enqueue(job{taskID: taskID, paths: paths})
}

// EnqueueReingest registers a re-ingest task and queues a batch ingestion.
// It returns the new task id.
func (r *Runner) EnqueueReingest() (string, error) {
	id := uuid.NewString()
	if _, err := r.tracker.CreateReingest(id); err != nil {
		return "", err
	}
	if err := r.enqueue(job{taskID: id}); err != nil {
		return id, err
	}
	return id, nil
}

func (r *Runner) enqueue(j job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var err error
	if r.closed {
		err = ErrRunnerClosed
	} else {
		select {
		case r.queue <- j:
			r.logger.Info("ingest job queued", "task_id", j.taskID, "files", len(j.paths))
			return nil
		default:
			err = ErrQueueFull
		}
	}
	r.markFailed(j.taskID, err)
	return err
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("ingest job panicked", "task_id", j.taskID, "panic", rec, "stack", string(debug.Stack()))
			r.markFailed(j.taskID, fmt.Errorf("internal panic: %v", rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		r.logger.Warn("ingest job cancelled before start", "task_id", j.taskID, "error", err)
		r.markFailed(j.taskID, fmt.Errorf("ingestion cancelled: %w", err))
		return
	}
	if err := r.tracker.MarkAll(j.taskID, tasks.StatusInProgress); err != nil {
		r.logger.Warn("cannot start ingest job", "task_id", j.taskID, "error", err)
		return
	}
	r.logger.Info("ingest job started", "task_id", j.taskID, "files", len(j.paths))

	result := r.ingester.Ingest(ctx, j.paths)
	if result.Failed() {
		r.logger.Error("ingest job failed", "task_id", j.taskID, "error", result.Error)
		r.mark(j.taskID, tasks.StatusFailed, tasks.WithError(result.Error))
		return
	}

	r.logger.Info("ingest job completed", "task_id", j.taskID, "message", result.Message, "chunks", result.ChunksIngested, "errors", len(result.Errors))
	r.mark(j.taskID, tasks.StatusCompleted, tasks.WithMessage(result.Message), tasks.WithChunks(result.ChunksIngested))
}

func (r *Runner) markFailed(taskID string, err error) {
	r.mark(taskID, tasks.StatusFailed, tasks.WithError(err.Error()))
}

func (r *Runner) mark(taskID string, status tasks.Status, opts ...tasks.MarkOption) {
	if err := r.tracker.MarkAll(taskID, status, opts...); err != nil {
		r.logger.Warn("failed to update task status", "task_id", taskID, "status", status, "error", err)
	}
}
