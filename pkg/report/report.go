// Package report renders progress, the catalog and scan history for humans:
// terminal tables and a standalone HTML page.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
)

const (
	barLength = 20

	statusCollected = "collected"
	statusOpen      = "open"
	statusLocked    = "locked"
)

// Printer writes reports to a terminal.
type Printer struct {
	out io.Writer
	now func() time.Time
}

// NewPrinter creates a Printer writing to out. A nil clock selects time.Now.
func NewPrinter(out io.Writer, now func() time.Time) *Printer {
	if now == nil {
		now = time.Now
	}

	return &Printer{out: out, now: now}
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

// Progress prints the completion summary followed by one row per checkpoint.
func (pr *Printer) Progress(reg *registry.Registry, p progress.UserProgress) error {
	stats := progress.Summarize(p)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "ID", "Checkpoint", "Area", "Status", "Collected"})

	for _, cp := range reg.All() {
		status := checkpointStatus(cp, p)
		collected := ""

		if at, ok := p.CompletedAt(cp.ID); ok {
			collected = humanize.RelTime(at, pr.now(), "ago", "from now")
		}

		tbl.AppendRow(table.Row{cp.Order, cp.ID, cp.Name, cp.Area, colorStatus(status), collected})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d/%d", stats.Completed, stats.Total), ""})

	_, err := fmt.Fprintf(pr.out, "%s\n%s\n", ProgressBar(stats), tbl.Render())
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}

	if next, ok := progress.NextCheckpoint(reg, p); ok {
		_, err = fmt.Fprintf(pr.out, "Next: %s (%s)\n", next.Name, next.ID)
		if err != nil {
			return fmt.Errorf("write progress: %w", err)
		}
	}

	return nil
}

// Checkpoints prints the catalog.
func (pr *Printer) Checkpoints(checkpoints []registry.Checkpoint) error {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "ID", "Kind", "Name", "Area", "Requires"})

	for _, cp := range checkpoints {
		tbl.AppendRow(table.Row{cp.Order, cp.ID, cp.Kind, cp.Name, cp.Area, cp.UnlockRequirement})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d", len(checkpoints))})

	_, err := fmt.Fprintln(pr.out, tbl.Render())
	if err != nil {
		return fmt.Errorf("write checkpoints: %w", err)
	}

	return nil
}

// History prints scan attempts, newest first.
func (pr *Printer) History(entries []store.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(pr.out, "No scans yet.")
		if err != nil {
			return fmt.Errorf("write history: %w", err)
		}

		return nil
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"When", "Checkpoint", "Outcome", "Reason", "Format"})

	for _, e := range entries {
		tbl.AppendRow(table.Row{
			humanize.RelTime(e.Time(), pr.now(), "ago", "from now"),
			e.CheckpointID,
			colorOutcome(engine.Kind(e.Outcome), e.Outcome),
			e.Reason,
			e.Format,
		})
	}

	_, err := fmt.Fprintln(pr.out, tbl.Render())
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	return nil
}

// Outcome prints the result of a scan on one line plus the progress bar.
func (pr *Printer) Outcome(out engine.Outcome) error {
	text := colorOutcome(out.Kind, out.Message) + "\n"
	if out.HasProgress() {
		text += ProgressBar(out.Stats) + "\n"
	}

	_, err := io.WriteString(pr.out, text)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	return nil
}

// ProgressBar renders stats as a fixed-width bar with the percentage.
func ProgressBar(stats progress.Stats) string {
	filled := stats.Percentage * barLength / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)

	return fmt.Sprintf("[%s] %d%% (%d/%d) %s", bar, stats.Percentage, stats.Completed, stats.Total, stats.Phase)
}

func checkpointStatus(cp registry.Checkpoint, p progress.UserProgress) string {
	switch {
	case p.Has(cp.ID):
		return statusCollected
	case cp.IsGate() || p.GateCompleted:
		return statusOpen
	default:
		return statusLocked
	}
}

func colorStatus(status string) string {
	switch status {
	case statusCollected:
		return color.GreenString(status)
	case statusLocked:
		return color.HiBlackString(status)
	default:
		return color.YellowString(status)
	}
}

func colorOutcome(kind engine.Kind, text string) string {
	switch kind {
	case engine.KindAccepted:
		return color.GreenString(text)
	case engine.KindRejected:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
