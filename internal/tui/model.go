// Package tui is the interactive pool browser.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dromadaire/internal/aggregate"
	"dromadaire/internal/model"
	"dromadaire/internal/registry"
	"dromadaire/internal/session"
)

const maxNotices = 3

// Session is the part of session.Controller the browser drives.
type Session interface {
	SetSelection(ctx context.Context, ids []string) error
	Refresh(ctx context.Context)
	SetQuery(query string) session.View
	View() session.View
	Events() <-chan session.Event
}

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modePicker
)

type eventMsg session.Event

// selectionMsg reports the outcome of a selection change run off the update loop.
type selectionMsg struct {
	err error
}

type notice struct {
	text    string
	failure bool
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx     context.Context
	sess    Session
	styles  styles
	mode    mode
	table   table.Model
	input   textinput.Model
	spinner spinner.Model
	view    session.View
	notices []notice
	width   int
	height  int

	catalog []registry.Source
	cursor  int
	pending map[string]bool
}

// New builds the browser over sess. ctx bounds the fetches it schedules.
func New(ctx context.Context, sess Session) Model {
	input := textinput.New()
	input.Placeholder = "search pools, tokens, addresses"
	input.Prompt = "/ "
	input.CharLimit = 64

	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	m := Model{
		ctx:    ctx,
		sess:   sess,
		styles: newStyles(),
		table:  t,
		input:  input,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		catalog: registry.Catalog(),
	}
	m.refresh(sess.View())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.sess.Events()))
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.handleEvent(session.Event(msg))
		return m, waitForEvent(m.sess.Events())
	case selectionMsg:
		if msg.err != nil {
			m.pushNotice(notice{text: msg.err.Error(), failure: true})
		}
		m.refresh(m.sess.View())
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modePicker:
			return m.updatePicker(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m *Model) handleEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventNotice:
		m.pushNotice(notice{text: ev.Message})
	case session.EventFailure:
		m.pushNotice(notice{text: ev.Message, failure: true})
	}
	m.refresh(m.sess.View())
}

func (m *Model) pushNotice(n notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.table.Blur()
		return m, m.input.Focus()
	case "c":
		m.openPicker()
		return m, nil
	case "r":
		return m, m.refreshCmd()
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter", "esc":
		m.mode = modeBrowse
		m.input.Blur()
		m.table.Focus()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refresh(m.sess.SetQuery(m.input.Value()))
	return m, cmd
}

func (m *Model) openPicker() {
	m.mode = modePicker
	m.cursor = 0
	m.pending = make(map[string]bool, len(m.catalog))
	for _, src := range m.catalog {
		m.pending[src.ID] = m.view.Selection.Contains(src.ID)
	}
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = modeBrowse
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.catalog)-1 {
			m.cursor++
		}
	case " ", "space":
		id := m.catalog[m.cursor].ID
		m.pending[id] = !m.pending[id]
	case "enter":
		ids := make([]string, 0, len(m.catalog))
		for _, src := range m.catalog {
			if m.pending[src.ID] {
				ids = append(ids, src.ID)
			}
		}
		m.mode = modeBrowse
		return m, m.selectCmd(ids)
	}
	return m, nil
}

// selectCmd applies ids outside the update loop; opening handles dials RPC
// endpoints.
func (m Model) selectCmd(ids []string) tea.Cmd {
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		return selectionMsg{err: sess.SetSelection(ctx, ids)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		sess.Refresh(ctx)
		return nil
	}
}

func (m *Model) refresh(view session.View) {
	m.view = view
	rows := make([]table.Row, 0, len(view.Pools))
	for _, pool := range view.Pools {
		rows = append(rows, poolRow(pool))
	}
	m.table.SetRows(rows)
}

func poolRow(pool model.LiquidityPool) table.Row {
	return table.Row{
		pool.Label(),
		pool.Kind(),
		pool.TVLLabel(),
		pool.FeeLabel(),
		model.ShortAddress(pool.Address),
	}
}

func columns(width int) []table.Column {
	label := width - 12 - 14 - 8 - 16 - 10
	if label < 24 {
		label = 24
	}
	return []table.Column{
		{Title: "Pool", Width: label},
		{Title: "Type", Width: 12},
		{Title: "TVL", Width: 14},
		{Title: "Fee", Width: 8},
		{Title: "Address", Width: 16},
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("dromadaire"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	if m.mode == modeSearch || m.view.Query != "" {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.mode == modePicker {
		b.WriteString(m.pickerView())
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	for _, n := range m.notices {
		style := m.styles.notice
		if n.failure {
			style = m.styles.failure
		}
		b.WriteString(style.Render(n.text))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.help.Render(m.helpLine()))
	return b.String()
}

func (m Model) statusLine() string {
	agg := m.view.Aggregate
	chains := strings.Join(m.view.Selection.Names(), ", ")
	if chains == "" {
		chains = "none"
	}

	var state string
	switch agg.Status {
	case aggregate.StatusLoading:
		state = m.spinner.View() + " loading"
	case aggregate.StatusReady:
		state = fmt.Sprintf("%d of %d pools", len(m.view.Pools), len(agg.Pools))
	case aggregate.StatusError:
		state = m.styles.failure.Render(agg.Notice)
	default:
		state = aggregate.NoticeNoChains
	}
	return m.styles.status.Render(fmt.Sprintf("chains: %s | %s", chains, state))
}

func (m Model) pickerView() string {
	var b strings.Builder
	b.WriteString("Select chains\n\n")
	for i, src := range m.catalog {
		mark := "[ ]"
		if m.pending[src.ID] {
			mark = m.styles.selected.Render("[x]")
		}
		line := fmt.Sprintf("%s %s", mark, src.Name)
		if i == m.cursor {
			line = m.styles.cursor.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return m.styles.picker.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) helpLine() string {
	switch m.mode {
	case modeSearch:
		return "enter/esc: done"
	case modePicker:
		return "space: toggle | enter: apply | esc: cancel"
	default:
		return "/: search | c: chains | r: refresh | q: quit"
	}
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, sess Session) error {
	p := tea.NewProgram(New(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
