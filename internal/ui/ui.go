package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/rsc/internal/tasks"
)

var _ Painter = (*Palette)(nil)

const (
	progressBuffer = 64
	maxBarWidth    = 60
	padding        = 2
)

// RunFunc starts a collection run that reports to sink.
type RunFunc func(ctx context.Context, sink tasks.ProgressSink) (*tasks.RunResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	title     string
	run       RunFunc
	sink      *tasks.ChannelSink
	bar       *tasks.ProgressBar
	last      tasks.ProgressUpdate
	progress  progress.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	finished  bool
	cancelled bool
	result    *tasks.RunResult
	err       error
}

// NewModel creates a model that runs fn when the program starts. title names the playlist being built.
func NewModel(ctx context.Context, title string, fn RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.ok

	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		title:    title,
		run:      fn,
		sink:     tasks.NewChannelSink(progressBuffer),
		bar:      &tasks.ProgressBar{},
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the run and begins consuming its progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-padding*2, maxBarWidth)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			m.last = update
			m.bar.Advance(update)
			return m, m.waitForProgress()

		case MsgProgressClosed:
			return m, nil

		case MsgRunComplete:
			outcome := msg.data.(runOutcome)
			m.result = outcome.result
			m.err = outcome.err
			m.finished = true
			m.sink.Done()
			if m.err == nil && m.result != nil {
				m.bar.Advance(tasks.ProgressUpdate{Stage: tasks.StageDone})
			}
			m.cancel()
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.quit):
		if m.finished {
			return m, tea.Quit
		}
		if !m.cancelled {
			m.cancelled = true
			m.cancel()
		}
	}
	return m, nil
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		result, err := m.run(m.ctx, m.sink)
		return runCompleteMsg(result, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.sink.Updates()
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return progressClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

// Result returns the outcome once the program has exited.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Cancelled reports whether the user asked to stop the run.
func (m *Model) Cancelled() bool {
	return m.cancelled
}

// View renders the run state.
func (m *Model) View() string {
	pad := strings.Repeat(" ", padding)

	var b strings.Builder
	b.WriteString(pad + styles.title.Render(fmt.Sprintf("Building %q", m.title)) + "\n")

	if m.finished {
		b.WriteString(pad + m.progress.ViewAs(m.bar.Value()) + "\n\n")
		b.WriteString(pad + m.renderResult() + "\n")
		return b.String()
	}

	stage := m.last.Stage
	label := stage.Label()
	if label == "" {
		label = "Starting..."
	}
	counter := ""
	if n := stage.Number(); n > 0 {
		counter = styles.As(fmt.Sprintf("Stage %d/%d ", n, tasks.NumStages), lipgloss.Color("#626262"))
	}

	b.WriteString(pad + m.spinner.View() + " " + counter + label + "\n")
	b.WriteString(pad + m.progress.ViewAs(m.bar.Value()) + "\n")
	if m.last.Message != "" {
		b.WriteString(pad + styles.help.Render(m.last.Message) + "\n")
	}
	if m.cancelled {
		b.WriteString(pad + styles.warn.Render("Cancelling...") + "\n")
	}
	b.WriteString("\n" + pad + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m *Model) renderResult() string {
	if m.err != nil {
		msg := styles.err.Render(fmt.Sprintf("Run failed: %v", m.err))
		if m.result != nil && m.result.RolledBack {
			msg += "\n" + strings.Repeat(" ", padding) + styles.warn.Render("The partial playlist was removed.")
		}
		return msg
	}

	if m.result == nil {
		return styles.err.Render("No result available")
	}

	if m.result.TracksWritten == 0 {
		return styles.warn.Render(fmt.Sprintf("No recent songs found. Created an empty %q.", m.title))
	}

	return styles.ok.Render(fmt.Sprintf(
		"✓ Added %d songs from %d playlists in %s",
		m.result.TracksWritten,
		m.result.PlaylistsAccepted,
		tasks.ReadableDuration(m.result.Elapsed()),
	))
}

// RunProgram runs a collection inside a full bubbletea program and returns its outcome.
func RunProgram(ctx context.Context, title string, fn RunFunc, out io.Writer) (*tasks.RunResult, error) {
	m := NewModel(ctx, title, fn)
	var opts []tea.ProgramOption
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	if _, err := tea.NewProgram(m, opts...).Run(); err != nil && !m.finished {
		m.cancel()
		return nil, fmt.Errorf("ui: %w", err)
	}
	return m.Result()
}
