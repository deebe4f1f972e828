// Package render draws analysis results for a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"cgdemo/graph"
)

// TerminalWidth returns the width of stdout, or 80 when stdout is not a
// terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	warn    lipgloss.Style
	line    lipgloss.Style
}

func newStyles(w io.Writer, width int) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Border(lipgloss.RoundedBorder()).Padding(0, 1),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).MarginTop(1),
		label:   r.NewStyle().Width(14),
		dim:     r.NewStyle().Faint(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("9")),
		line:    r.NewStyle().MaxWidth(width),
	}
}

// Report writes a summary of report sized to width columns.
func Report(w io.Writer, report *graph.Report, width int) {
	if width <= 0 {
		width = 80
	}
	s := newStyles(w, width)
	var b strings.Builder

	b.WriteString(s.title.Render("Call Graph Analysis"))
	b.WriteString("\n")

	row := func(label string, value any) {
		b.WriteString(s.line.Render(s.label.Render(label) + fmt.Sprint(value)))
		b.WriteString("\n")
	}
	row("Functions", report.Nodes)
	row("Calls", report.Edges)
	row("Components", report.Components)
	row("Entry points", strings.Join(report.EntryPoints, ", "))

	section := func(title string, n int) {
		b.WriteString(s.section.Render(fmt.Sprintf("%s (%d)", title, n)))
		b.WriteString("\n")
	}

	section("Dead code", len(report.DeadCode))
	for _, name := range report.DeadCode {
		b.WriteString(s.line.Render("  " + s.warn.Render(name)))
		b.WriteString("\n")
	}

	section("Cycles", len(report.Cycles))
	for _, c := range report.Cycles {
		chain := append(append([]string(nil), c...), c[0])
		b.WriteString(s.line.Render("  " + strings.Join(chain, " -> ")))
		b.WriteString("\n")
	}

	section("Hot paths", len(report.HotPaths))
	for i, hp := range report.HotPaths {
		b.WriteString(s.line.Render(fmt.Sprintf("  #%-2d %s  %s", i+1, s.dim.Render(fmt.Sprintf("%.6f", hp.Score)), strings.Join(hp.Path, " -> "))))
		b.WriteString("\n")
	}

	central := append([]graph.FunctionStats(nil), report.Functions...)
	sort.SliceStable(central, func(i, j int) bool { return central[i].Importance > central[j].Importance })
	if len(central) > 5 {
		central = central[:5]
	}
	section("Most central", len(central))
	for _, fs := range central {
		b.WriteString(s.line.Render(fmt.Sprintf("  %-24s betweenness %6.2f  pagerank %.4f", fs.Name, fs.Importance, fs.PageRank)))
		b.WriteString("\n")
	}

	if len(report.Clusters) > 0 {
		section("Clusters", len(report.Clusters))
		for i, c := range report.Clusters {
			b.WriteString(s.line.Render(fmt.Sprintf("  %d: %s", i, strings.Join(c, ", "))))
			b.WriteString("\n")
		}
	}

	io.WriteString(w, b.String())
}
