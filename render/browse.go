package render

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cgdemo/graph"
)

type pane int

const (
	paneHotPaths pane = iota
	paneDeadCode
	paneCycles
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneHotPaths:
		return "Hot paths"
	case paneDeadCode:
		return "Dead code"
	case paneCycles:
		return "Cycles"
	}
	return ""
}

// browser is the bubbletea model behind Browse.
type browser struct {
	report *graph.Report
	pane   pane
	cursor [paneCount]int
	width  int
	height int

	active   lipgloss.Style
	inactive lipgloss.Style
	selected lipgloss.Style
	help     lipgloss.Style
}

func newBrowser(report *graph.Report) *browser {
	return &browser{
		report:   report,
		width:    80,
		height:   24,
		active:   lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("12")),
		inactive: lipgloss.NewStyle().Faint(true),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		help:     lipgloss.NewStyle().Faint(true),
	}
}

// Browse opens an interactive view of the hot paths, dead code and cycles
// in report. Tab switches panes, up/down move, q quits.
func Browse(report *graph.Report) error {
	_, err := tea.NewProgram(newBrowser(report), tea.WithAltScreen()).Run()
	return err
}

func (b *browser) Init() tea.Cmd { return nil }

func (b *browser) items() []string {
	switch b.pane {
	case paneHotPaths:
		out := make([]string, len(b.report.HotPaths))
		for i, hp := range b.report.HotPaths {
			out[i] = fmt.Sprintf("%.6f  %s", hp.Score, strings.Join(hp.Path, " -> "))
		}
		return out
	case paneDeadCode:
		return b.report.DeadCode
	case paneCycles:
		out := make([]string, len(b.report.Cycles))
		for i, c := range b.report.Cycles {
			out[i] = strings.Join(c, ", ")
		}
		return out
	}
	return nil
}

func (b *browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "tab", "right", "l":
			b.pane = (b.pane + 1) % paneCount
		case "shift+tab", "left", "h":
			b.pane = (b.pane + paneCount - 1) % paneCount
		case "down", "j":
			if b.cursor[b.pane] < len(b.items())-1 {
				b.cursor[b.pane]++
			}
		case "up", "k":
			if b.cursor[b.pane] > 0 {
				b.cursor[b.pane]--
			}
		}
	}
	return b, nil
}

// Selected returns the highlighted entry of the current pane.
func (b *browser) Selected() string {
	items := b.items()
	if len(items) == 0 {
		return ""
	}
	return items[b.cursor[b.pane]]
}

func (b *browser) View() string {
	var sb strings.Builder

	tabs := make([]string, 0, paneCount)
	for p := pane(0); p < paneCount; p++ {
		label := fmt.Sprintf(" %s ", p)
		if p == b.pane {
			tabs = append(tabs, b.active.Render(label))
		} else {
			tabs = append(tabs, b.inactive.Render(label))
		}
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	sb.WriteString("\n\n")

	items := b.items()
	if len(items) == 0 {
		sb.WriteString("  (none)\n")
	}

	// keep the cursor on screen
	visible := b.height - 5
	if visible < 1 {
		visible = 1
	}
	start := 0
	if b.cursor[b.pane] >= visible {
		start = b.cursor[b.pane] - visible + 1
	}
	line := lipgloss.NewStyle().MaxWidth(b.width)
	for i := start; i < len(items) && i < start+visible; i++ {
		if i == b.cursor[b.pane] {
			sb.WriteString(line.Render(b.selected.Render("> " + items[i])))
		} else {
			sb.WriteString(line.Render("  " + items[i]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(b.help.Render("tab: switch pane  up/down: move  q: quit"))
	return sb.String()
}
