package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"merchbatch/internal/api"
	"merchbatch/internal/ipc"
	"merchbatch/internal/jobstatus"
)

const watchErrorRows = 5

// watchClient is the subset of the IPC client the dashboard drives.
type watchClient interface {
	Status() (*ipc.StatusResponse, error)
	Pause() (*ipc.ControlResponse, error)
	Resume() (*ipc.ControlResponse, error)
	Stop() (*ipc.ControlResponse, error)
}

type watchStatusMsg struct {
	status *ipc.StatusResponse
	err    error
}

type watchTickMsg struct{}

type watchControlMsg struct {
	message string
	err     error
}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type watchModel struct {
	client       watchClient
	interval     time.Duration
	exitWhenDone bool

	status  *ipc.StatusResponse
	err     error
	message string

	spinner  spinner.Model
	progress progress.Model
	width    int
}

func newWatchModel(client watchClient, interval time.Duration, exitWhenDone bool) watchModel {
	if interval <= 0 {
		interval = time.Second
	}
	return watchModel{
		client:       client,
		interval:     interval,
		exitWhenDone: exitWhenDone,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.spinner.Tick)
}

func (m watchModel) fetch() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.Status()
		return watchStatusMsg{status: status, err: err}
	}
}

func (m watchModel) control(fn func() (*ipc.ControlResponse, error)) tea.Cmd {
	return func() tea.Msg {
		resp, err := fn()
		if err != nil {
			return watchControlMsg{err: err}
		}
		return watchControlMsg{message: resp.Message}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "p":
			return m, m.control(m.client.Pause)
		case "r":
			return m, m.control(m.client.Resume)
		case "s":
			return m, m.control(m.client.Stop)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, min(msg.Width-8, 80))
		return m, nil
	case watchStatusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		if m.exitWhenDone && m.finished() {
			return m, tea.Quit
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return watchTickMsg{} })
	case watchTickMsg:
		return m, m.fetch()
	case watchControlMsg:
		if msg.err != nil {
			m.message = watchErrorStyle.Render(msg.err.Error())
		} else {
			m.message = watchOKStyle.Render(msg.message)
		}
		return m, m.fetch()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// finished reports whether the most recent run has reached a terminal state.
func (m watchModel) finished() bool {
	if m.status == nil || m.status.Job.RunID == "" {
		return false
	}
	state, ok := jobstatus.ParseState(m.status.Job.Status)
	return ok && state.Terminal()
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("merchbatch"))
	b.WriteString("\n\n")

	switch {
	case m.err != nil && m.status == nil:
		b.WriteString(watchErrorStyle.Render("daemon unavailable: " + m.err.Error()))
		b.WriteString("\n")
	case m.status == nil:
		b.WriteString(m.spinner.View() + " connecting...\n")
	default:
		b.WriteString(watchPanelStyle.Render(m.jobView(m.status.Job)))
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(watchErrorStyle.Render("refresh failed: " + m.err.Error()))
			b.WriteString("\n")
		}
	}

	if m.message != "" {
		b.WriteString(m.message)
		b.WriteString("\n")
	}
	b.WriteString(watchMutedStyle.Render("p pause • r resume • s stop • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m watchModel) jobView(job api.StatusResponse) string {
	var b strings.Builder
	state := stateTitle(job.Status)
	if parsed, ok := jobstatus.ParseState(job.Status); ok && parsed == jobstatus.StateRunning {
		state = m.spinner.View() + " " + state
	}
	fmt.Fprintf(&b, "%s  %s\n", watchStateStyle(job.Status).Render(state), watchMutedStyle.Render(runCaption(job)))
	b.WriteString(m.progress.ViewAs(job.Progress))
	fmt.Fprintf(&b, "\n%d/%d processed  %s  %s\n",
		job.Current, job.Total,
		watchOKStyle.Render(fmt.Sprintf("%d ok", job.Success)),
		failedStyle(job.Failed).Render(fmt.Sprintf("%d failed", job.Failed)),
	)
	if job.CurrentProduct != "" {
		fmt.Fprintf(&b, "Current: %s\n", job.CurrentProduct)
	}

	if len(job.Errors) > 0 {
		b.WriteString("\n")
		start := max(0, len(job.Errors)-watchErrorRows)
		if start > 0 {
			b.WriteString(watchMutedStyle.Render(fmt.Sprintf("(%d earlier errors)", start)))
			b.WriteString("\n")
		}
		for _, row := range errorRows(job.Errors[start:]) {
			fmt.Fprintf(&b, "%s %s: %s\n", watchErrorStyle.Render("#"+row[0]), row[1], row[2])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func runCaption(job api.StatusResponse) string {
	if job.RunID == "" {
		return "no run yet"
	}
	return fmt.Sprintf("run %s, %s mode", shortRunID(job.RunID), job.Mode)
}

func watchStateStyle(state string) lipgloss.Style {
	switch stateKind(state) {
	case statusOK:
		return watchOKStyle
	case statusWarn:
		return watchWarnStyle
	case statusError:
		return watchErrorStyle
	default:
		return watchMutedStyle
	}
}

func failedStyle(failed int) lipgloss.Style {
	if failed > 0 {
		return watchErrorStyle
	}
	return watchMutedStyle
}
