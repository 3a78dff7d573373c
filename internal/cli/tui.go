package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ammusto/tafarru3/pkg/session"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// SessionListModel - Interactive session selection
// =============================================================================

// SessionListModel is the bubbletea model for picking a saved session.
type SessionListModel struct {
	Sessions []session.Summary
	Cursor   int
	Selected *session.Summary
	Height   int
	Offset   int

	now time.Time
}

// NewSessionListModel creates a picker over list, most recent first.
func NewSessionListModel(list []session.Summary, now time.Time) SessionListModel {
	return SessionListModel{Sessions: list, Height: 15, now: now}
}

func (m SessionListModel) Init() tea.Cmd {
	return nil
}

func (m SessionListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Sessions)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Sessions) == 0 {
				return m, tea.Quit
			}
			s := m.Sessions[m.Cursor]
			m.Selected = &s
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m SessionListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Open Session"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ open  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Sessions))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		s := m.Sessions[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			s.Name,
			strconv.Itoa(s.Nodes),
			strconv.Itoa(s.Edges),
			relativeTime(s.SavedAt, m.now),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("", "Project", "People", "Links", "Saved").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == headerRow {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col == 1 {
				return StyleValue
			}
			return StyleDim
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Sessions))))

	return b.String()
}
