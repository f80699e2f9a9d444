// Package tasks tracks the progress of background ingestion runs.
package tasks

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Status is the state of a task or one of its files.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether s is COMPLETED or FAILED.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses along PENDING -> IN_PROGRESS -> terminal. Unknown
// statuses rank -1.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// Task kinds.
const (
	KindUpload   = "upload"
	KindReingest = "reingest"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskExists   = errors.New("task already exists")
	// ErrTerminal is returned when marking a task that already finished.
	ErrTerminal = errors.New("task already finished")
	// ErrInvalidTransition is returned for unknown statuses and moves back
	// to an earlier status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// FileProgress is the status of one uploaded file.
type FileProgress struct {
	Filename string `json:"filename"`
	Status   Status `json:"status"`
}

// Task is a snapshot of one background ingestion run.
type Task struct {
	ID             string         `json:"task_id"`
	Kind           string         `json:"kind"`
	Status         Status         `json:"status"`
	Files          []FileProgress `json:"files"`
	Message        string         `json:"message,omitempty"`
	Error          string         `json:"error,omitempty"`
	ChunksIngested int            `json:"chunks_ingested"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (t *Task) clone() Task {
	c := *t
	c.Files = slices.Clone(t.Files)
	if c.Files == nil {
		c.Files = []FileProgress{}
	}
	return c
}

// MarkOption attaches outcome details to a status change.
type MarkOption func(*Task)

// WithMessage sets the outcome message.
func WithMessage(msg string) MarkOption {
	return func(t *Task) { t.Message = msg }
}

// WithError sets the failure description.
func WithError(err string) MarkOption {
	return func(t *Task) { t.Error = err }
}

// WithChunks sets the number of chunks written.
func WithChunks(n int) MarkOption {
	return func(t *Task) { t.ChunksIngested = n }
}

// Tracker records task state. Implementations must be safe for concurrent use.
type Tracker interface {
	Create(id string, filenames []string) (Task, error)
	MarkAll(id string, status Status, opts ...MarkOption) error
	Get(id string) (Task, error)
}

// MemoryTracker keeps tasks in memory. Tasks are never evicted and are lost
// on restart.
type MemoryTracker struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

var _ Tracker = (*MemoryTracker)(nil)

// NewMemoryTracker returns an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{tasks: make(map[string]*Task), now: time.Now}
}

// Create registers an upload task. The task starts IN_PROGRESS with every
// file PENDING.
func (m *MemoryTracker) Create(id string, filenames []string) (Task, error) {
	return m.create(id, KindUpload, filenames)
}

// CreateReingest registers a re-ingest task with no files.
func (m *MemoryTracker) CreateReingest(id string) (Task, error) {
	return m.create(id, KindReingest, nil)
}

func (m *MemoryTracker) create(id, kind string, filenames []string) (Task, error) {
	files := make([]FileProgress, len(filenames))
	for i, name := range filenames {
		files[i] = FileProgress{Filename: name, Status: StatusPending}
	}
	now := m.now()
	task := &Task{
		ID:        id,
		Kind:      kind,
		Status:    StatusInProgress,
		Files:     files,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskExists, id)
	}
	m.tasks[id] = task
	return task.clone(), nil
}

// MarkAll sets the task status and the status of every file. Statuses only
// move forward; terminal statuses are final.
func (m *MemoryTracker) MarkAll(id string, status Status, opts ...MarkOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, task.Status)
	}
	if status.rank() < task.Status.rank() {
		return fmt.Errorf("%w: %s from %s to %q", ErrInvalidTransition, id, task.Status, status)
	}

	task.Status = status
	for i := range task.Files {
		task.Files[i].Status = status
	}
	for _, opt := range opts {
		opt(task)
	}
	task.UpdatedAt = m.now()
	return nil
}

// Get returns a copy of the task.
func (m *MemoryTracker) Get(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task.clone(), nil
}

// List returns copies of all tasks, most recent first.
func (m *MemoryTracker) List() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, task.clone())
	}
	slices.SortFunc(out, func(a, b Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}
