package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"multipresence/internal/app"
)

const (
	refreshInterval = time.Second
	rpcTimeout      = 2 * time.Second
)

// Controller defines the subset of app.App behaviour the TUI needs.
type Controller interface {
	Status() (app.DaemonStatus, error)
	StartDaemon() (*app.DaemonHandle, error)
	Presence(ctx context.Context, timeout time.Duration) (app.Report, error)
	SetMessage(ctx context.Context, msg string, timeout time.Duration) error
	Reconnect(ctx context.Context, timeout time.Duration) (string, error)
}

// Model represents the Bubble Tea state.
type Model struct {
	controller Controller

	list   list.Model
	input  textinput.Model
	typing bool

	daemonStatus app.DaemonStatus
	report       app.Report
	haveReport   bool
	statusMsg    string
	handle       *app.DaemonHandle

	err error

	width  int
	height int

	lastUpdated time.Time
}

// New constructs a TUI model with default styles.
func New(ctrl Controller) *Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	lst := list.New([]list.Item{}, delegate, 0, 0)
	lst.Title = "Top processes"
	lst.SetShowHelp(false)
	lst.SetShowStatusBar(false)
	lst.SetFilteringEnabled(false)
	lst.DisableQuitKeybindings()

	in := textinput.New()
	in.Placeholder = "Working on something cool"
	in.Prompt = "Custom message: "
	in.CharLimit = 128

	return &Model{
		controller: ctrl,
		list:       lst,
		input:      in,
		statusMsg:  "Checking daemon status…",
	}
}

// Run spins up the Bubble Tea program. A daemon started from the TUI
// lives in this process and stops when the TUI exits.
func Run(ctrl Controller) error {
	m := New(ctrl)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	if closeErr := m.handle.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(checkDaemonStatusCmd(m.controller), tickCmd())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.height > 16 {
			m.list.SetSize(msg.Width, msg.Height-16)
		}

	case tickMsg:
		return m, tea.Batch(checkDaemonStatusCmd(m.controller), tickCmd())

	case daemonStatusMsg:
		m.daemonStatus = msg.status
		if !msg.status.Running {
			m.statusMsg = "Daemon is not running. Press s to start it."
			m.haveReport = false
			m.list.SetItems(nil)
			return m, nil
		}
		if msg.status.PID > 0 {
			m.statusMsg = fmt.Sprintf("Daemon running (pid %d).", msg.status.PID)
		} else {
			m.statusMsg = "Daemon running."
		}
		return m, loadReportCmd(m.controller)

	case reportLoadedMsg:
		m.err = nil
		m.report = msg.report
		m.haveReport = true
		m.lastUpdated = time.Now()
		items := make([]list.Item, 0, len(msg.report.Processes))
		for _, p := range msg.report.Processes {
			items = append(items, processItem(p))
		}
		m.list.SetItems(items)

	case actionDoneMsg:
		m.err = nil
		m.statusMsg = msg.text
		return m, loadReportCmd(m.controller)

	case daemonStartedMsg:
		m.handle = msg.handle
		m.statusMsg = "Daemon started."
		return m, checkDaemonStatusCmd(m.controller)

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if m.typing {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, checkDaemonStatusCmd(m.controller)
		case "s":
			if !m.daemonStatus.Running && m.handle == nil {
				m.statusMsg = "Starting daemon…"
				return m, startDaemonCmd(m.controller)
			}
		case "c":
			if m.daemonStatus.Running {
				m.statusMsg = "Reconnecting…"
				return m, reconnectCmd(m.controller)
			}
		case "m":
			if m.daemonStatus.Running {
				m.typing = true
				m.input.SetValue(m.report.CustomMessage)
				m.input.CursorEnd()
				return m, m.input.Focus()
			}
		case "x":
			if m.daemonStatus.Running {
				return m, setMessageCmd(m.controller, "")
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.typing = false
		m.input.Blur()
		return m, setMessageCmd(m.controller, m.input.Value())
	case tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	daemonStyle := badStyle
	if m.daemonStatus.Running {
		daemonStyle = okStyle
	}
	b.WriteString(daemonStyle.Render(m.statusMsg))
	b.WriteByte('\n')

	if m.haveReport {
		connStyle := badStyle
		if m.report.Connected {
			connStyle = okStyle
		}
		b.WriteString(labelStyle.Render("Discord: "))
		b.WriteString(connStyle.Render(m.report.StatusMessage))
		b.WriteByte('\n')
		if m.report.FilterFallback {
			b.WriteString(badStyle.Render("Word filter failed to compile; nothing is being redacted."))
			b.WriteByte('\n')
		}
		b.WriteString(boxStyle.Render(m.presenceView()))
		b.WriteByte('\n')
		b.WriteString(boxStyle.Render(m.previewView()))
		b.WriteByte('\n')
		if len(m.list.Items()) > 0 {
			b.WriteString(m.list.View())
			b.WriteByte('\n')
		}
	}

	if m.err != nil {
		b.WriteString(badStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteByte('\n')
	}

	if m.typing {
		b.WriteString(m.input.View())
		b.WriteByte('\n')
		b.WriteString(helpStyle.Render("enter send • esc cancel"))
		return b.String()
	}

	help := "Commands: q quit • r refresh • c reconnect • m message • x clear message • s start daemon"
	if !m.lastUpdated.IsZero() {
		help += fmt.Sprintf(" • last update %s", m.lastUpdated.Format(time.Kitchen))
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m *Model) presenceView() string {
	r := m.report
	lines := []string{
		labelStyle.Render("Details: ") + valueOrDash(r.Details),
		labelStyle.Render("State:   ") + valueOrDash(r.State),
	}
	if r.CustomMessage != "" {
		lines = append(lines, labelStyle.Render("Message: ")+r.CustomMessage)
	}
	if !r.LastPublish.IsZero() {
		lines = append(lines, labelStyle.Render("Sent:    ")+humanize.Time(r.LastPublish))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) previewView() string {
	r := m.report
	if !r.HasSnapshot {
		return "No activity data available"
	}
	lines := []string{
		fmt.Sprintf("CPU Usage: %.1f%%", r.CPUUsage),
		fmt.Sprintf("Memory Usage: %.1f%% (%s / %s)", r.MemoryUsagePct, humanize.IBytes(r.MemoryUsed), humanize.IBytes(r.MemoryTotal)),
		fmt.Sprintf("Process Count: %s", humanize.Comma(int64(r.ProcessCount))),
		fmt.Sprintf("Current Time: %s", r.Timestamp.Format("2006-01-02 15:04:05")),
	}
	if r.Uptime > 0 {
		lines = append(lines, fmt.Sprintf("Uptime: %s", (time.Duration(r.Uptime)*time.Second).String()))
	}
	if r.HasActiveWindow {
		lines = append(lines, "Active Window: "+r.ActiveWindow)
	}
	return strings.Join(lines, "\n")
}

// processItem adapts a redacted process row to the bubbles list.
type processItem app.ReportProcess

func (p processItem) Title() string {
	return fmt.Sprintf("%s - %.1f%% CPU", valueOrDash(p.Name), p.CPUUsage)
}

func (p processItem) Description() string { return "" }

func (p processItem) FilterValue() string { return p.Name }

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

type tickMsg time.Time

type daemonStatusMsg struct {
	status app.DaemonStatus
}

type reportLoadedMsg struct {
	report app.Report
}

type actionDoneMsg struct {
	text string
}

type daemonStartedMsg struct {
	handle *app.DaemonHandle
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func checkDaemonStatusCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		status, err := ctrl.Status()
		if err != nil {
			return errMsg{err}
		}
		return daemonStatusMsg{status: status}
	}
}

func loadReportCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		report, err := ctrl.Presence(context.Background(), rpcTimeout)
		if err != nil {
			return errMsg{err}
		}
		return reportLoadedMsg{report: report}
	}
}

func setMessageCmd(ctrl Controller, text string) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.SetMessage(context.Background(), text, rpcTimeout); err != nil {
			return errMsg{err}
		}
		if text == "" {
			return actionDoneMsg{text: "Custom message cleared."}
		}
		return actionDoneMsg{text: "Custom message updated."}
	}
}

func reconnectCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		line, err := ctrl.Reconnect(context.Background(), rpcTimeout)
		if err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{text: line}
	}
}

func startDaemonCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		handle, err := ctrl.StartDaemon()
		if err != nil {
			return errMsg{err}
		}
		// Give the daemon a moment to bind the socket.
		time.Sleep(300 * time.Millisecond)
		return daemonStartedMsg{handle: handle}
	}
}
