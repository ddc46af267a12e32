package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"squeeze/internal/processor"
)

// Model shows batch progress. Each finished job is printed above the view
// through the render function, so the scrollback keeps one line per file.
type Model struct {
	updates   <-chan processor.ProgressUpdate
	render    func(processor.JobResult) string
	interrupt func()
	title     string
	started   time.Time

	total  int
	done   int
	counts [processor.StatusError + 1]int

	bar      progress.Model
	spin     spinner.Model
	quitting bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

func NewModel(title string, updates <-chan processor.ProgressUpdate, render func(processor.JobResult) string) Model {
	return Model{
		updates: updates,
		render:  render,
		title:   title,
		started: time.Now(),
		bar: progress.New(
			progress.WithSolidFill(string(ColorAccent)),
			progress.WithWidth(40),
		),
		spin: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorAccent)),
		),
	}
}

// WithInterrupt registers a function called when the user presses ctrl+c.
func (m Model) WithInterrupt(fn func()) Model {
	m.interrupt = fn
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenForUpdates(m.updates), m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		if msg.Result == nil {
			return m, listenForUpdates(m.updates)
		}
		m.done++
		m.counts[msg.Result.Status]++
		return m, tea.Sequence(tea.Println(m.render(*msg.Result)), listenForUpdates(m.updates))
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.interrupt != nil {
			m.interrupt()
		}
		return m, nil
	case tea.WindowSizeMsg:
		width := msg.Width - 10
		if width > 60 {
			width = 60
		}
		if width < 20 {
			width = 20
		}
		m.bar.Width = width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.done) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}
	elapsed := time.Since(m.started).Round(time.Second)

	lines := []string{
		m.spin.View() + " " + titleStyle.Render(m.title),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.done, m.total)) + dimStyle.Render(fmt.Sprintf(
			"  converted:%d copied:%d skipped:%d warnings:%d errors:%d",
			m.counts[processor.StatusConverted], m.counts[processor.StatusCopied], m.counts[processor.StatusSkipped],
			m.counts[processor.StatusWarning], m.counts[processor.StatusError])),
		m.bar.ViewAs(ratio),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorInk)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
