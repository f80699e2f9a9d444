package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

// gatedIngester blocks every run until release is closed.
type gatedIngester struct {
	release chan struct{}
	result  IngestResult
	panics  bool

	mu    sync.Mutex
	calls [][]string
}

func newGatedIngester(result IngestResult) *gatedIngester {
	return &gatedIngester{release: make(chan struct{}), result: result}
}

func (g *gatedIngester) Ingest(_ context.Context, paths []string) IngestResult {
	g.mu.Lock()
	g.calls = append(g.calls, paths)
	g.mu.Unlock()
	<-g.release
	if g.panics {
		panic("loader exploded")
	}
	return g.result
}

func waitForStatus(t *testing.T, tr *tasks.MemoryTracker, id string, want tasks.Status) tasks.Task {
	t.Helper()
	var task tasks.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = tr.Get(id)
		return err == nil && task.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return task
}

func TestRunner_UploadScenario(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	ing := newGatedIngester(IngestResult{Message: MsgIngestSuccess, ChunksIngested: 7})
	r := NewRunner(ing, tr, 4, nil)
	r.Start(context.Background())
	defer r.Close()

	_, err := tr.Create("task-1", []string{"a.txt", "b.pdf"})
	require.NoError(t, err)
	require.NoError(t, r.EnqueueIngest("task-1", []string{"/src/a_1.txt", "/src/b_2.pdf"}))

	task, err := tr.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusInProgress, task.Status)
	for _, f := range task.Files {
		assert.Contains(t, []tasks.Status{tasks.StatusPending, tasks.StatusInProgress}, f.Status)
	}

	close(ing.release)
	task = waitForStatus(t, tr, "task-1", tasks.StatusCompleted)
	for _, f := range task.Files {
		assert.Equal(t, tasks.StatusCompleted, f.Status)
	}
	assert.Equal(t, MsgIngestSuccess, task.Message)
	assert.Equal(t, 7, task.ChunksIngested)
	assert.Equal(t, [][]string{{"/src/a_1.txt", "/src/b_2.pdf"}}, ing.calls)
}

func TestRunner_ErrorResultFailsTask(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	ing := newGatedIngester(IngestResult{Error: "An error occurred during ingestion: boom"})
	close(ing.release)
	r := NewRunner(ing, tr, 4, nil)
	r.Start(context.Background())
	defer r.Close()

	_, err := tr.Create("t", []string{"a.txt"})
	require.NoError(t, err)
	require.NoError(t, r.EnqueueIngest("t", []string{"a.txt"}))

	task := waitForStatus(t, tr, "t", tasks.StatusFailed)
	assert.Equal(t, "An error occurred during ingestion: boom", task.Error)
	assert.Equal(t, tasks.StatusFailed, task.Files[0].Status)
}

func TestRunner_PanicFailsTask(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	ing := newGatedIngester(IngestResult{})
	ing.panics = true
	close(ing.release)
	r := NewRunner(ing, tr, 4, nil)
	r.Start(context.Background())

	_, err := tr.Create("t", []string{"a.txt"})
	require.NoError(t, err)
	require.NoError(t, r.EnqueueIngest("t", nil))

	task := waitForStatus(t, tr, "t", tasks.StatusFailed)
	assert.Contains(t, task.Error, "loader exploded")

	// The worker survives the panic.
	_, err = tr.Create("t2", nil)
	require.NoError(t, err)
	require.NoError(t, r.EnqueueIngest("t2", nil))
	waitForStatus(t, tr, "t2", tasks.StatusFailed)
	r.Close()
}

func TestRunner_CancelledContextFailsQueuedJobs(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	ing := newGatedIngester(IngestResult{Message: MsgIngestSuccess})
	r := NewRunner(ing, tr, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Start(ctx)

	_, err := tr.Create("task-1", []string{"a.txt"})
	require.NoError(t, err)
	require.NoError(t, r.EnqueueIngest("task-1", []string{"/src/a_1.txt"}))
	r.Close()

	task, err := tr.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "ingestion cancelled")
	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Empty(t, ing.calls)
}

func TestRunner_QueueFull(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	ing := newGatedIngester(IngestResult{Message: MsgIngestSuccess})
	r := NewRunner(ing, tr, 1, nil)

	for _, id := range []string{"a", "b"} {
		_, err := tr.Create(id, []string{id})
		require.NoError(t, err)
	}
	// Worker not started: the single slot fills up.
	require.NoError(t, r.EnqueueIngest("a", nil))
	err := r.EnqueueIngest("b", nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	task, err := tr.Get("b")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusFailed, task.Status)

	close(ing.release)
	r.Start(context.Background())
	r.Close()
	waitForStatus(t, tr, "a", tasks.StatusCompleted)
}

func TestRunner_Reingest(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	ing := newGatedIngester(IngestResult{Message: MsgNoNewDocuments})
	close(ing.release)
	r := NewRunner(ing, tr, 4, nil)
	r.Start(context.Background())
	defer r.Close()

	id, err := r.EnqueueReingest()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	task := waitForStatus(t, tr, id, tasks.StatusCompleted)
	assert.Equal(t, tasks.KindReingest, task.Kind)
	assert.Empty(t, task.Files)
	assert.Equal(t, MsgNoNewDocuments, task.Message)
	require.Len(t, ing.calls, 1)
	assert.Nil(t, ing.calls[0])
}

func TestRunner_EnqueueAfterClose(t *testing.T) {
	tr := tasks.NewMemoryTracker()
	r := NewRunner(newGatedIngester(IngestResult{}), tr, 1, nil)
	r.Start(context.Background())
	r.Close()
	r.Close()

	_, err := tr.Create("t", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.EnqueueIngest("t", nil), ErrRunnerClosed)

	task, err := tr.Get("t")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusFailed, task.Status)
}
