package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/privategpt-go/internal/client"
	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

const pollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the task status
type tickMsg time.Time

type taskUpdateMsg struct {
	task *tasks.Task
	err  error
}

// progressModel is the bubbletea model for ingestion progress.
type progressModel struct {
	client   *client.Client
	taskID   string
	task     *tasks.Task
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(c *client.Client, taskID string) progressModel {
	return progressModel{
		client: c,
		taskID: taskID,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchTask(),
		m.progress.Init(),
	)
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchTask()

	case taskUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch task status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.task = msg.task
		switch m.task.Status {
		case tasks.StatusCompleted:
			m.done = true
			return m, tea.Quit
		case tasks.StatusFailed:
			m.done = true
			m.err = taskError(m.task)
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if m.task == nil {
		return "Loading task status...\n"
	}

	done, total := fileCounts(m.task)
	var pct float64
	if total > 0 {
		pct = float64(done) / float64(total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.task.Status))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d files", done, total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nTask %s continues in background.\nUse 'privategpt status %s' to check status.\n",
			m.taskID, m.taskID)
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Ingestion failed: %s\n", m.err))
	}
	if m.task == nil {
		return m.theme.completedStyle().Render("✓ Completed\n")
	}
	return renderTaskResult(m.theme, m.task)
}

func renderTaskResult(theme Theme, t *tasks.Task) string {
	var b strings.Builder
	b.WriteString(theme.completedStyle().Render("✓ Completed") + "\n\n")
	fmt.Fprintf(&b, "  Files:           %d\n", len(t.Files))
	fmt.Fprintf(&b, "  Chunks ingested: %d\n", t.ChunksIngested)
	if t.Message != "" {
		fmt.Fprintf(&b, "  Result:          %s\n", t.Message)
	}
	return b.String()
}

// fetchTask runs as a command so Update never blocks on the network.
func (m progressModel) fetchTask() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		task, err := m.client.GetTask(ctx, m.taskID)
		return taskUpdateMsg{task: task, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fileCounts returns how many of the task's files reached a terminal
// status, and how many files it has.
func fileCounts(t *tasks.Task) (done, total int) {
	for _, f := range t.Files {
		if f.Status.Terminal() {
			done++
		}
	}
	return done, len(t.Files)
}

func taskError(t *tasks.Task) error {
	if t.Error != "" {
		return fmt.Errorf("%s", t.Error)
	}
	return fmt.Errorf("task failed with unknown error")
}

// RunTaskProgress runs the interactive progress UI for an ingestion task.
// Returns nil on success or Ctrl+C (background), error on task failure.
func RunTaskProgress(c *client.Client, taskID string) error {
	p := tea.NewProgram(newProgressModel(c, taskID))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
