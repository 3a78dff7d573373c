package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ammusto/tafarru3/pkg/session"
)

// stdout receives command output. Tests swap it for a buffer.
var (
	defaultStdout io.Writer = os.Stdout
	stdout                  = defaultStdout
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorTeal  = lipgloss.Color("36")  // primary
	colorGreen = lipgloss.Color("35")  // success
	colorAmber = lipgloss.Color("220") // warnings
	colorRed   = lipgloss.Color("167") // errors
	colorBlue  = lipgloss.Color("75")  // commands
	colorWhite = lipgloss.Color("255") // values
	colorGray  = lipgloss.Color("245") // secondary text
	colorDim   = lipgloss.Color("240") // muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorTeal)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorAmber)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorAmber)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorTeal)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(14)
	styleHeader      = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleCached      = lipgloss.NewStyle().Foreground(colorGreen)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func writeLine(s string) { fmt.Fprintln(stdout, s) }

func printSuccess(format string, args ...any) {
	writeLine(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	writeLine(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	writeLine(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	writeLine(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented secondary line.
func printDetail(format string, args ...any) {
	writeLine("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints an output path line.
func printFile(path string) {
	writeLine("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	writeLine(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// printStats prints diagram counts on one line, e.g.
// "3 people · 2 links · cached".
func printStats(people, links int, tags ...string) {
	parts := []string{plural(people, "person", "people"), plural(links, "link", "links")}
	line := "  " + StyleDim.Render(strings.Join(parts, " · "))
	for _, tag := range tags {
		style := StyleDim
		if tag == "cached" {
			style = styleCached
		}
		line += StyleDim.Render(" · ") + style.Render(tag)
	}
	writeLine(line)
}

func printNextStep(description, cmd string) {
	writeLine(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() { writeLine("") }

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}

// =============================================================================
// Sessions
// =============================================================================

// headerRow is the row index lipgloss/table passes for the header.
const headerRow = -1

// sessionTable renders saved sessions, most recent first.
func sessionTable(list []session.Summary, now time.Time) string {
	rows := make([][]string, 0, len(list))
	for i, s := range list {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.Name,
			strconv.Itoa(s.Nodes),
			strconv.Itoa(s.Edges),
			relativeTime(s.SavedAt, now),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("#", "Project", "People", "Links", "Saved").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == headerRow {
				return styleHeader
			}
			if col == 1 {
				return StyleHighlight
			}
			return StyleDim
		})
	return t.Render()
}

func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Local().Format("Jan 2, 2006")
}
