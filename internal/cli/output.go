package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// =============================================================================
// Printer
// =============================================================================

// printer writes command output. Colors are enabled per instance so that the
// decision made at startup (TTY, NO_COLOR, --no-color) holds regardless of
// the global state of the color package.
type printer struct {
	out io.Writer
	err io.Writer

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
	cyan   *color.Color
}

func newPrinter(stdout, stderr io.Writer, useColor bool) *printer {
	p := &printer{
		out:    stdout,
		err:    stderr,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
		cyan:   color.New(color.FgCyan, color.Bold),
	}
	for _, c := range []*color.Color{p.green, p.red, p.yellow, p.bold, p.cyan} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) println(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) success(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.green.Sprintf(format, args...))
}

func (p *printer) failure(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.red.Sprintf(format, args...))
}

func (p *printer) warn(format string, args ...interface{}) {
	fmt.Fprintln(p.err, p.yellow.Sprintf(format, args...))
}

func (p *printer) errorMessage(msg string) {
	fmt.Fprintln(p.err, p.red.Sprint(msg))
}

// =============================================================================
// Tables
// =============================================================================

type alignment int

const (
	alignLeft alignment = iota
	alignRight
)

type cell struct {
	text  string
	color *color.Color
}

type column struct {
	header string
	align  alignment
}

// table renders fixed-width tables. Widths are measured on the plain text
// and color is applied after padding, so colored cells stay aligned.
type table struct {
	title   string
	columns []column
	rows    [][]cell
}

func (t *table) addRow(cells ...cell) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = utf8.RuneCountInString(c.header)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if n := utf8.RuneCountInString(c.text); n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths
}

func pad(s string, width int, align alignment) string {
	gap := width - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}
	if align == alignRight {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func rule(left, fill, sep, right string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat(fill, w+2)
	}
	return left + strings.Join(parts, sep) + right
}

func (t *table) line(edge, sep string, widths []int, text func(i int) string) string {
	parts := make([]string, len(widths))
	for i := range widths {
		parts[i] = " " + text(i) + " "
	}
	return edge + strings.Join(parts, sep) + edge
}

func (t *table) renderRow(edge, sep string, widths []int, row []cell) string {
	return t.line(edge, sep, widths, func(i int) string {
		c := row[i]
		s := pad(c.text, widths[i], t.columns[i].align)
		if c.color != nil {
			return c.color.Sprint(s)
		}
		return s
	})
}

// renderBox writes the table with a heavy header and an optional centered
// title above it.
func (t *table) renderBox(w io.Writer, bold *color.Color) {
	widths := t.widths()
	total := utf8.RuneCountInString(rule("┏", "━", "┳", "┓", widths))

	if t.title != "" {
		title := t.title
		if n := utf8.RuneCountInString(title); n < total {
			title = strings.Repeat(" ", (total-n)/2) + title
		}
		fmt.Fprintln(w, title)
	}

	fmt.Fprintln(w, rule("┏", "━", "┳", "┓", widths))
	fmt.Fprintln(w, t.line("┃", "┃", widths, func(i int) string {
		return bold.Sprint(pad(t.columns[i].header, widths[i], t.columns[i].align))
	}))
	fmt.Fprintln(w, rule("┡", "━", "╇", "┩", widths))
	for _, row := range t.rows {
		fmt.Fprintln(w, t.renderRow("│", "│", widths, row))
	}
	fmt.Fprintln(w, rule("└", "─", "┴", "┘", widths))
}

// renderGrid writes the table as an ASCII grid with a rule between rows.
func (t *table) renderGrid(w io.Writer) {
	widths := t.widths()
	border := rule("+", "-", "+", "+", widths)

	fmt.Fprintln(w, border)
	fmt.Fprintln(w, t.line("|", "|", widths, func(i int) string {
		return pad(t.columns[i].header, widths[i], t.columns[i].align)
	}))
	fmt.Fprintln(w, rule("+", "=", "+", "+", widths))
	for _, row := range t.rows {
		fmt.Fprintln(w, t.renderRow("|", "|", widths, row))
		fmt.Fprintln(w, border)
	}
}

// =============================================================================
// Trees
// =============================================================================

type node struct {
	label    string
	color    *color.Color
	children []*node
}

func (n *node) add(label string, c *color.Color) *node {
	child := &node{label: label, color: c}
	n.children = append(n.children, child)
	return child
}

func (n *node) text() string {
	if n.color != nil {
		return n.color.Sprint(n.label)
	}
	return n.label
}

func (n *node) render(w io.Writer) {
	fmt.Fprintln(w, n.text())
	n.renderChildren(w, "")
}

func (n *node) renderChildren(w io.Writer, prefix string) {
	for i, child := range n.children {
		branch, indent := "├── ", "│   "
		if i == len(n.children)-1 {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintln(w, prefix+branch+child.text())
		child.renderChildren(w, prefix+indent)
	}
}

// =============================================================================
// Spinner
// =============================================================================

// progress is a spinner shown on stderr while a slow query runs.
type progress interface {
	Start()
	Stop()
}

type noProgress struct{}

func (noProgress) Start() {}
func (noProgress) Stop()  {}

func newProgress(w io.Writer, enabled bool, suffix string) progress {
	if !enabled {
		return noProgress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	return s
}
