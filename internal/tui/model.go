// Package tui is the interactive surface. Which screen it shows is
// decided by the authorization gate: a grant prompt while access is
// undetermined, a settings pointer once denied, and the agenda only
// when access is granted.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"upcal/internal/core"
	"upcal/internal/session"
	"upcal/internal/util"
)

// KeyMap defines the keybindings for the TUI
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Grant   key.Binding
	New     key.Binding
	Delete  key.Binding
	Refresh key.Binding
	Submit  key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	Grant: key.NewBinding(
		key.WithKeys("g", "enter"),
		key.WithHelp("g", "grant access"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new event"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type screen int

const (
	screenPrompt screen = iota
	screenDenied
	screenAgenda
	screenForm
)

// Form field order
const (
	fieldTitle = iota
	fieldDate
	fieldStart
	fieldEnd
	fieldNotes
	fieldCount
)

// Messages
type opDoneMsg struct{}

type accessDoneMsg struct {
	state core.AuthStatus
}

// Model is the Bubble Tea model. The session manager is driven either
// from Update or from exactly one in-flight command; while busy is set
// every manager-touching key is ignored, so the manager keeps its
// single logical owner.
type Model struct {
	mgr         *session.Manager
	settingsURL string

	// Snapshot of manager state, refreshed after every operation.
	events  []core.Event
	lastErr string

	screen      screen
	busy        bool
	selectedIdx int
	keys        KeyMap

	width         int
	height        int
	listView      viewport.Model
	viewportReady bool

	inputs  []textinput.Model
	focused int
	formErr string
}

// NewModel builds the TUI over a session manager. settingsURL is shown
// on the denied screen (the provider's own permission surface).
func NewModel(mgr *session.Manager, settingsURL string) Model {
	m := Model{
		mgr:         mgr,
		settingsURL: settingsURL,
		keys:        DefaultKeyMap,
	}

	switch mgr.Gate().CheckStatus(context.Background()) {
	case core.AuthGranted:
		m.screen = screenAgenda
		m.busy = true
	case core.AuthDenied:
		m.screen = screenDenied
	default:
		m.screen = screenPrompt
	}

	return m
}

func (m Model) Init() tea.Cmd {
	if m.screen == screenAgenda {
		return m.fetchCmd()
	}
	return nil
}

// Commands

func (m Model) fetchCmd() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		mgr.Fetch(context.Background())
		return opDoneMsg{}
	}
}

func (m Model) requestAccessCmd() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		return accessDoneMsg{state: mgr.RequestAccess(context.Background())}
	}
}

func (m Model) deleteCmd(ev core.Event) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		mgr.Delete(context.Background(), ev)
		return opDoneMsg{}
	}
}

func (m Model) createCmd(title string, start, end time.Time, notes string) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		mgr.Create(context.Background(), title, start, end, notes)
		return opDoneMsg{}
	}
}

// snapshot re-reads the manager's state after an operation completed.
func (m *Model) snapshot() {
	m.events = m.mgr.Events()
	m.lastErr = m.mgr.LastError()
	if m.selectedIdx >= len(m.events) {
		m.selectedIdx = len(m.events) - 1
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
	m.updateListContent()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil

	case opDoneMsg:
		m.busy = false
		m.snapshot()
		return m, nil

	case accessDoneMsg:
		m.busy = false
		switch msg.state {
		case core.AuthGranted:
			// The manager already fetched on grant
			m.screen = screenAgenda
			m.snapshot()
		case core.AuthDenied:
			m.screen = screenDenied
		default:
			m.lastErr = m.mgr.LastError()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && m.screen != screenForm {
		return m, tea.Quit
	}

	switch m.screen {
	case screenPrompt:
		if m.busy {
			return m, nil
		}
		if key.Matches(msg, m.keys.Grant) {
			m.busy = true
			return m, m.requestAccessCmd()
		}

	case screenDenied:
		// No retry binding: access can only come back through the
		// provider's settings surface.
		return m, nil

	case screenAgenda:
		if m.busy {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateListContent()
			}
		case key.Matches(msg, m.keys.Down):
			if m.selectedIdx < len(m.events)-1 {
				m.selectedIdx++
				m.updateListContent()
			}
		case key.Matches(msg, m.keys.Refresh):
			m.busy = true
			return m, m.fetchCmd()
		case key.Matches(msg, m.keys.Delete):
			if len(m.events) > 0 {
				m.busy = true
				return m, m.deleteCmd(m.events[m.selectedIdx])
			}
		case key.Matches(msg, m.keys.New):
			m.openForm()
		}

	case screenForm:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.screen = screenAgenda
			m.formErr = ""
		case key.Matches(msg, m.keys.Submit):
			return m.submitForm()
		case msg.String() == "tab" || msg.String() == "shift+tab":
			if msg.String() == "tab" {
				m.focused = (m.focused + 1) % fieldCount
			} else {
				m.focused = (m.focused + fieldCount - 1) % fieldCount
			}
			for i := range m.inputs {
				if i == m.focused {
					m.inputs[i].Focus()
				} else {
					m.inputs[i].Blur()
				}
			}
		default:
			var cmd tea.Cmd
			m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

// openForm prepares the create form with a one-hour slot starting at
// the next full hour.
func (m *Model) openForm() {
	next := time.Now().Truncate(time.Hour).Add(time.Hour)

	m.inputs = make([]textinput.Model, fieldCount)
	placeholders := []string{"Team sync", next.Format("2006-01-02"), next.Format("15:04"), next.Add(time.Hour).Format("15:04"), ""}

	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 200
		m.inputs[i] = ti
	}
	m.inputs[fieldDate].SetValue(next.Format("2006-01-02"))
	m.inputs[fieldStart].SetValue(next.Format("15:04"))
	m.inputs[fieldEnd].SetValue(next.Add(time.Hour).Format("15:04"))

	m.focused = fieldTitle
	m.inputs[fieldTitle].Focus()
	m.formErr = ""
	m.screen = screenForm
}

// submitForm validates the inputs. The form layer is where the
// non-empty-title and end-after-start rules live; the session manager
// below does not re-check them.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.inputs[fieldTitle].Value())
	if title == "" {
		m.formErr = "title must not be empty"
		return m, nil
	}

	day, err := time.ParseInLocation("2006-01-02", m.inputs[fieldDate].Value(), time.Local)
	if err != nil {
		m.formErr = "date must be YYYY-MM-DD"
		return m, nil
	}
	startClock, err := time.Parse("15:04", m.inputs[fieldStart].Value())
	if err != nil {
		m.formErr = "start must be HH:MM"
		return m, nil
	}
	endClock, err := time.Parse("15:04", m.inputs[fieldEnd].Value())
	if err != nil {
		m.formErr = "end must be HH:MM"
		return m, nil
	}

	start := day.Add(time.Duration(startClock.Hour())*time.Hour + time.Duration(startClock.Minute())*time.Minute)
	end := day.Add(time.Duration(endClock.Hour())*time.Hour + time.Duration(endClock.Minute())*time.Minute)
	if !end.After(start) {
		m.formErr = "end must be after start"
		return m, nil
	}

	m.screen = screenAgenda
	m.formErr = ""
	m.busy = true
	return m, m.createCmd(title, start, end, m.inputs[fieldNotes].Value())
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch m.screen {
	case screenPrompt:
		content = m.renderPrompt()
	case screenDenied:
		content = m.renderDenied()
	case screenForm:
		content = m.renderForm()
	default:
		content = m.renderAgenda()
	}

	header := HeaderStyle.Render("📅 upcal")
	help := m.renderHelp()

	parts := []string{header, content}
	if m.lastErr != "" && m.screen != screenForm {
		parts = append(parts, ErrorBarStyle.Render("⚠ "+m.lastErr))
	}
	parts = append(parts, help)

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderPrompt() string {
	body := "upcal needs access to your calendar to show\nand manage your upcoming events."
	action := HelpKeyStyle.Render("g") + lipgloss.NewStyle().Foreground(mutedColor).Render(" grant access")
	if m.busy {
		action = lipgloss.NewStyle().Foreground(mutedColor).Render("waiting for your browser...")
	}
	return PromptBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body, "", action))
}

func (m Model) renderDenied() string {
	link := util.MakeHyperlink(m.settingsURL, m.settingsURL)
	body := "Calendar access was denied.\n\nTo use upcal, allow access in your provider's\nsettings and start it again:\n\n  " + link
	return DeniedBoxStyle.Render(body)
}

func (m Model) renderAgenda() string {
	if m.busy {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("Loading events...")
	}
	if !m.viewportReady {
		return ""
	}

	listPanel := ListPanelStyle.Render(m.listView.View())
	detailPanel := m.renderDetail()
	return lipgloss.JoinHorizontal(lipgloss.Top, listPanel, " ", detailPanel)
}

func (m *Model) resizeViewport() {
	listWidth := m.width * 45 / 100
	if listWidth < 30 {
		listWidth = 30
	}
	height := m.height - 8
	if height < 5 {
		height = 5
	}

	if !m.viewportReady {
		m.listView = viewport.New(listWidth, height)
		m.viewportReady = true
	} else {
		m.listView.Width = listWidth
		m.listView.Height = height
	}
	m.updateListContent()
}

// updateListContent rebuilds the agenda lines, grouping events under
// day headings.
func (m *Model) updateListContent() {
	if !m.viewportReady {
		return
	}

	if len(m.events) == 0 {
		m.listView.SetContent(NormalItemStyle.Render("No events in the next 30 days"))
		return
	}

	var lines []string
	lastDay := ""
	for i, ev := range m.events {
		day := ev.Start.Local().Format("Mon, Jan 2")
		if day != lastDay {
			if lastDay != "" {
				lines = append(lines, "")
			}
			lines = append(lines, DayHeadingStyle.Render(day))
			lastDay = day
		}
		lines = append(lines, m.renderListItem(ev, i == m.selectedIdx))
	}

	m.listView.SetContent(strings.Join(lines, "\n"))
}

func (m Model) renderListItem(ev core.Event, selected bool) string {
	timeStr := ev.Start.Local().Format("3:04 PM")
	if ev.IsAllDay {
		timeStr = "All day"
	}

	title := ev.Title
	if title == "" {
		title = "(untitled)"
	}
	maxTitle := m.listView.Width - 16
	if maxTitle < 10 {
		maxTitle = 10
	}
	title = ansi.Truncate(title, maxTitle, "…")

	line := TimeStyle.Render(timeStr) + " " + title
	if selected {
		return SelectedItemStyle.Render(line)
	}
	return NormalItemStyle.Render(line)
}

func (m Model) renderDetail() string {
	width := m.width - m.listView.Width - 10
	if width < 24 {
		width = 24
	}

	if len(m.events) == 0 || m.selectedIdx >= len(m.events) {
		return DetailPanelStyle.Width(width).Render(
			lipgloss.NewStyle().Foreground(mutedColor).Render("Nothing selected"))
	}

	ev := m.events[m.selectedIdx]
	title := ev.Title
	if title == "" {
		title = "(untitled)"
	}

	rows := []string{
		TitleStyle.Render(title),
		LabelStyle.Render("When") + ValueStyle.Render(formatEventTime(ev)),
		LabelStyle.Render("Calendar") + ValueStyle.Render(ev.Calendar.Name),
	}
	if ev.Notes != "" {
		rows = append(rows, LabelStyle.Render("Notes")+ValueStyle.Render(ansi.Truncate(ev.Notes, width*3, "…")))
	}
	if ev.InProgress(time.Now()) {
		rows = append(rows, "", lipgloss.NewStyle().Foreground(accentColor).Bold(true).Render("● in progress"))
	}

	return DetailPanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderForm() string {
	labels := []string{"Title", "Date", "Start", "End", "Notes"}
	var rows []string
	for i, in := range m.inputs {
		rows = append(rows, FormLabelStyle.Render(fmt.Sprintf("%-6s", labels[i]))+" "+in.View())
	}
	if m.formErr != "" {
		rows = append(rows, "", FormErrStyle.Render("✗ "+m.formErr))
	}
	return PromptBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderHelp() string {
	sep := lipgloss.NewStyle().Foreground(mutedColor).Render(" • ")
	item := func(k, desc string) string {
		return HelpKeyStyle.Render(k) + lipgloss.NewStyle().Foreground(mutedColor).Render(" "+desc)
	}

	var items []string
	switch m.screen {
	case screenPrompt:
		items = []string{item("g", "grant access"), item("q", "quit")}
	case screenDenied:
		items = []string{item("q", "quit")}
	case screenForm:
		items = []string{item("tab", "next field"), item("enter", "save"), item("esc", "cancel")}
	default:
		items = []string{
			item("↑/↓", "select"), item("n", "new"), item("d", "delete"),
			item("r", "refresh"), item("q", "quit"),
		}
	}

	return HelpStyle.Render(strings.Join(items, sep))
}

func formatEventTime(ev core.Event) string {
	localStart := ev.Start.Local()
	localEnd := ev.End.Local()

	if ev.IsAllDay {
		return localStart.Format("Mon, Jan 2") + " (all day)"
	}
	if localStart.Day() == localEnd.Day() {
		return fmt.Sprintf("%s, %s - %s", localStart.Format("Mon, Jan 2"), localStart.Format("3:04 PM"), localEnd.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s - %s", localStart.Format("Mon, Jan 2 3:04 PM"), localEnd.Format("Mon, Jan 2 3:04 PM"))
}
