package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/raphaelgruber/seedforge/internal/service"
)

// plainBarWidth is the width of the ASCII bar used when output is not a terminal.
const plainBarWidth = 50

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressReporter prints one progress line per completed task.
// It is driven from the engine's collecting goroutine only.
type progressReporter struct {
	out   io.Writer
	bar   *progress.Model // nil renders a plain ASCII bar
	theme Theme
	color bool
}

// newProgressReporter renders a styled bar when out is a terminal and a plain
// one otherwise.
func newProgressReporter(out io.Writer) *progressReporter {
	r := &progressReporter{out: out, theme: defaultTheme}

	f, ok := out.(*os.File)
	if !ok || !isTerminal(f) {
		return r
	}

	bar := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(barWidth(f)),
	)
	r.bar = &bar
	r.color = true
	return r
}

// TaskCompleted prints the progress line for p.
func (r *progressReporter) TaskCompleted(p service.Progress) {
	line := formatProgressLine(p, r.renderBar(p.Fraction))
	if r.color {
		line = r.theme.statusStyle().Render(line)
	}
	fmt.Fprintln(r.out, line)
}

// TaskFailed prints a short notice; details go to the log.
func (r *progressReporter) TaskFailed(index int, err error) {
	msg := fmt.Sprintf("Error processing item %d: %v", index, err)
	if r.color {
		msg = r.theme.errorStyle().Render(msg)
	}
	fmt.Fprintln(r.out, msg)
}

func (r *progressReporter) renderBar(fraction float64) string {
	if r.bar != nil {
		return r.bar.ViewAs(fraction)
	}
	return asciiBar(fraction, plainBarWidth)
}

// success renders a final message in the success style.
func (r *progressReporter) success(msg string) string {
	if r.color {
		return r.theme.completedStyle().Render(msg)
	}
	return msg
}

// hint renders a secondary message in the hint style.
func (r *progressReporter) hint(msg string) string {
	if r.color {
		return r.theme.hintStyle().Render(msg)
	}
	return msg
}

// failure renders a final message in the error style.
func (r *progressReporter) failure(msg string) string {
	if r.color {
		return r.theme.errorStyle().Render(msg)
	}
	return msg
}

// formatProgressLine renders "Item N of T processed - P% complete - ETA: HH:MM:SS <bar>".
func formatProgressLine(p service.Progress, bar string) string {
	return fmt.Sprintf("Item %d of %d processed - %.2f%% complete - ETA: %s %s",
		p.Completed, p.Total, p.Fraction*100, formatClock(p.ETA), bar)
}

// formatClock renders d as HH:MM:SS, truncating fractional seconds.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func asciiBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(float64(width) * fraction)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// barWidth fits the bar after the text part of the progress line.
func barWidth(f *os.File) int {
	const (
		textWidth = 72
		minWidth  = 10
		maxWidth  = 40
	)
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return maxWidth
	}
	return min(max(w-textWidth, minWidth), maxWidth)
}
