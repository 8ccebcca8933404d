package ui

import (
	"fmt"
	"strings"
	"time"

	dbservice "github.com/agnosto/board-collector/db/service"
	"github.com/agnosto/board-collector/service"
	"github.com/agnosto/board-collector/texts"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type resultMsg struct {
	result *service.CycleResult
	rates  *dbservice.Rates
}

type sourceErrMsg struct {
	err error
}

type sourceClosedMsg struct{}

// Source blocks until the next update is available and returns it as a
// message for the watch model.
type Source func() tea.Msg

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Help key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Help, k.Quit},
	}
}

var defaultKeyMap = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5c2e7"))
	newStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// WatchModel shows the most active threads of the latest cycle.
type WatchModel struct {
	board  string
	source Source
	keys   keyMap
	help   help.Model
	table  table.Model

	latest  *service.CycleResult
	rates   *dbservice.Rates
	cycles  int
	lastErr error
	quit    bool
	width   int
	height  int
}

func NewWatchModel(board string, source Source) *WatchModel {
	m := &WatchModel{
		board:  board,
		source: source,
		keys:   defaultKeyMap,
		help:   help.New(),
		height: 24,
	}
	m.updateTable()
	return m
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, tea.Cmd(m.source))
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.lastErr = nil
		if msg.rates != nil {
			m.rates = msg.rates
		}
		if msg.result != nil && (m.latest == nil || msg.result.ID != m.latest.ID) {
			m.latest = msg.result
			m.cycles++
			m.updateTable()
		}
		return m, tea.Cmd(m.source)
	case sourceErrMsg:
		m.lastErr = msg.err
		return m, tea.Cmd(m.source)
	case sourceClosedMsg:
		m.quit = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.updateTable()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quit = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.table.MoveUp(1)
		case key.Matches(msg, m.keys.Down):
			m.table.MoveDown(1)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

func (m *WatchModel) View() string {
	if m.quit {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("/%s/ activity", m.board)) + "\n\n")

	if m.latest == nil {
		sb.WriteString(dimStyle.Render("Waiting for the first cycle...") + "\n")
	} else {
		s := m.latest.Stats
		status := fmt.Sprintf("cycle %d at %s  threads %d  new threads %d  new replies %d  new posts %d",
			m.cycles, m.latest.StartedAt.Local().Format(time.TimeOnly),
			len(m.latest.CurrentThreads), s.NewThreads, s.NewReplies, s.NewPosts)
		if m.latest.NotModified {
			status += dimStyle.Render("  (not modified)")
		}
		sb.WriteString(status + "\n")
		sb.WriteString(fmt.Sprintf("images stored %d  reposts %d  texts scored %d\n",
			m.latest.StoredImages, m.latest.Reposts, m.latest.ScoredTexts))
	}
	if m.rates != nil {
		sb.WriteString(fmt.Sprintf("%.1f posts/min over %s\n", m.rates.PostsPerMinute, m.rates.Window))
	}
	if m.lastErr != nil {
		sb.WriteString(errStyle.Render("source: "+m.lastErr.Error()) + "\n")
	}

	sb.WriteString("\n" + m.table.View() + "\n")
	sb.WriteString("\n" + m.help.View(m.keys))
	return sb.String()
}

func (m *WatchModel) updateTable() {
	columns := []table.Column{
		{Title: "Thread", Width: 12},
		{Title: "New", Width: 6},
		{Title: "Replies", Width: 8},
		{Title: "Images", Width: 7},
		{Title: "Subject", Width: 40},
	}

	var rows []table.Row
	if m.latest != nil {
		isNew := make(map[int64]bool, len(m.latest.Stats.NewThreadIDs))
		for _, id := range m.latest.Stats.NewThreadIDs {
			isNew[id] = true
		}

		for _, t := range m.latest.ActiveThreads {
			no := fmt.Sprintf("%d", t.No)
			if isNew[t.No] {
				no = newStyle.Render(no)
			}
			rows = append(rows, table.Row{
				no,
				fmt.Sprintf("+%d", t.NewReplies),
				fmt.Sprintf("%d", t.Replies),
				fmt.Sprintf("%d", t.Images),
				subject(t.Subject, t.Comment, 40),
			})
		}
	}

	height := m.height - 10
	if height < 3 {
		height = 3
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("#cba6f7")).
		Bold(false)
	t.SetStyles(s)

	m.table = t
}

// subject falls back to the first line of the comment for untitled threads.
func subject(sub, com string, width int) string {
	text := texts.StripMarkup(sub)
	if text == "" {
		text, _, _ = strings.Cut(texts.StripMarkup(com), "\n")
	}
	r := []rune(text)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return text
}
