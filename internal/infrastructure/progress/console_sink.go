package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleConfig holds configuration for console output.
type ConsoleConfig struct {
	// Writer is the output destination. Default: os.Stdout
	Writer io.Writer

	// ProgressBarWidth is the width of the progress bar. Default: 30
	ProgressBarWidth int

	// UseColors enables colored output. Default: true
	UseColors bool

	// ShowItems prints one line per failed item. Default: true
	ShowItems bool
}

// DefaultConsoleConfig returns default configuration.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		Writer:           os.Stdout,
		ProgressBarWidth: 30,
		UseColors:        true,
		ShowItems:        true,
	}
}

// ConsoleSink prints process progress bars and module summaries. It writes
// one line per transition, so output stays readable when piped.
//
// Thread Safety: Safe for concurrent use.
type ConsoleSink struct {
	mu      sync.Mutex
	writer  io.Writer
	config  ConsoleConfig
	palette palette
}

type palette struct {
	bold, cyan, green, red, yellow, dim func(a ...any) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		bold:   mk(color.Bold),
		cyan:   mk(color.FgCyan),
		green:  mk(color.FgGreen),
		red:    mk(color.FgRed),
		yellow: mk(color.FgYellow),
		dim:    mk(color.Faint),
	}
}

// NewConsoleSink creates a console sink
func NewConsoleSink(config ConsoleConfig) *ConsoleSink {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ProgressBarWidth <= 0 {
		config.ProgressBarWidth = 30
	}
	return &ConsoleSink{writer: config.Writer, config: config, palette: newPalette(config.UseColors)}
}

// Notify implements Sink
func (c *ConsoleSink) Notify(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.palette
	switch e.Type {
	case EventModuleStarted:
		fmt.Fprintln(c.writer, p.bold("▶ "+string(e.Module)))
	case EventProcessStarted:
		fmt.Fprintf(c.writer, "  %s %s\n", p.cyan(e.Process.Name), e.Label)
	case EventItemTicked:
		if !e.Success && c.config.ShowItems {
			fmt.Fprintf(c.writer, "    %s %s\n", p.red("✗ "+e.Label), e.ErrorMsg)
		}
	case EventProcessCompleted:
		fmt.Fprintf(c.writer, "  %-24s %s %s\n", e.Process.Name, c.formatProgressBar(e.Process.Percent()), c.formatCounts(e.Process.Succeeded, e.Process.Failed))
	case EventModuleCompleted:
		total, succeeded, failed := e.Summary.Totals()
		status := p.green("✓ done")
		if !e.Success {
			status = p.red("✗ failed")
		}
		var elapsed time.Duration
		if e.Summary.CompletedAt != nil {
			elapsed = e.Summary.CompletedAt.Sub(e.Summary.StartedAt)
		}
		fmt.Fprintf(c.writer, "%s %s: %d items, %s in %s", status, e.Module, total, c.formatCounts(succeeded, failed), formatDuration(elapsed))
		if e.Message != "" {
			fmt.Fprintf(c.writer, " (%s)", e.Message)
		}
		fmt.Fprintln(c.writer)
	}
}

func (c *ConsoleSink) formatProgressBar(percent float64) string {
	width := c.config.ProgressBarWidth
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	empty := width - filled

	return fmt.Sprintf("[%s%s] %5.1f%%",
		c.palette.green(strings.Repeat("█", filled)),
		c.palette.dim(strings.Repeat("░", empty)),
		percent)
}

func (c *ConsoleSink) formatCounts(succeeded, failed int) string {
	failColor := c.palette.dim
	if failed > 0 {
		failColor = c.palette.yellow
	}
	return c.palette.green(fmt.Sprintf("%d ok", succeeded)) + ", " + failColor(fmt.Sprintf("%d failed", failed))
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
