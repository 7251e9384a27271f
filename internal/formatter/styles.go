package formatter

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title, OK, Error, Warn and Help style s with the default palette.
func Title(s string) string { return styles.title.Render(s) }
func OK(s string) string { return styles.ok.Render(s) }
func Error(s string) string { return styles.err.Render(s) }
func Warn(s string) string { return styles.warn.Render(s) }
func Help(s string) string { return styles.help.Render(s) }

// ConsoleReporter writes [ReportLine] to an operator console.
//
// Safe for concurrent use.
type ConsoleReporter struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

// NewConsoleReporter creates a reporter writing to w. styled enables colors.
func NewConsoleReporter(w io.Writer, styled bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, styled: styled}
}

// Report prints one line for a non-empty removal.
func (r *ConsoleReporter) Report(playlistName string, count int) {
	if count <= 0 {
		return
	}
	line := ReportLine(playlistName, count)
	if r.styled {
		line = Warn(line)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, line)
}
