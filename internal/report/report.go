// Package report renders one status line per finished job and the batch
// summary. Lines are written in the order results arrive.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"squeeze/internal/processor"
	"squeeze/internal/tui"
)

var (
	nameStyle      = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorInk)
	detailStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	convertedStyle = lipgloss.NewStyle().Foreground(tui.ColorSuccess)
	copiedStyle    = lipgloss.NewStyle().Foreground(tui.ColorAccent)
	skippedStyle   = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	warnStyle      = lipgloss.NewStyle().Foreground(tui.ColorWarn)
	errorStyle     = lipgloss.NewStyle().Foreground(tui.ColorError)
)

// Line renders res as a single line without a trailing newline.
func Line(res processor.JobResult) string {
	name := nameStyle.Render(res.Job.Name)

	switch res.Status {
	case processor.StatusConverted:
		if !res.Encoded {
			return fmt.Sprintf("%s %s -> %s %s",
				convertedStyle.Render("converted"), name, filepath.Base(res.Output),
				detailStyle.Render(FormatBytes(res.Size)))
		}
		return fmt.Sprintf("%s %s -> %s %s",
			convertedStyle.Render("converted"), name, filepath.Base(res.Output),
			detailStyle.Render(fmt.Sprintf("%s, %s of %s (%s), %d trials",
				res.Config, FormatBytes(res.Size), FormatBytes(res.Target),
				FormatPercent(res.Utilization()), res.Iterations)))

	case processor.StatusCopied:
		return fmt.Sprintf("%s %s %s",
			copiedStyle.Render("copied"), name,
			detailStyle.Render(fmt.Sprintf("verbatim, %s within %s", FormatBytes(res.Size), FormatBytes(res.Target))))

	case processor.StatusSkipped:
		return fmt.Sprintf("%s %s %s",
			skippedStyle.Render("skipped"), name,
			detailStyle.Render(fmt.Sprintf("unchanged since last run, %s", FormatBytes(res.Size))))

	case processor.StatusWarning:
		return fmt.Sprintf("%s %s: %s", warnStyle.Render("warning"), name, warningReason(res))

	case processor.StatusError:
		if processor.IsDecodeError(res) {
			return fmt.Sprintf("%s %s: unreadable image: %v", errorStyle.Render("error"), name, res.Err)
		}
		return fmt.Sprintf("%s %s: %v", errorStyle.Render("error"), name, res.Err)

	default:
		return fmt.Sprintf("%s %s", res.Status, name)
	}
}

func warningReason(res processor.JobResult) string {
	reason := "warning"
	if res.Err != nil {
		reason = res.Err.Error()
	}
	if !res.Encoded {
		return reason
	}
	smallest := fmt.Sprintf("%s is %s over a %s budget", res.Config, FormatBytes(res.Size), FormatBytes(res.Target))
	if res.Output != "" {
		return fmt.Sprintf("%s; %s, wrote %s anyway", reason, smallest, filepath.Base(res.Output))
	}
	return fmt.Sprintf("%s; %s, nothing written", reason, smallest)
}

// Stream writes one line per result until updates is closed.
func Stream(w io.Writer, updates <-chan processor.ProgressUpdate) {
	for update := range updates {
		if update.Result == nil {
			continue
		}
		fmt.Fprintln(w, Line(*update.Result))
	}
}

// SummaryRows describes a finished batch for tui.RenderSummary.
func SummaryRows(summary processor.Summary, elapsed time.Duration) []tui.SummaryRow {
	rows := []tui.SummaryRow{
		{Label: "Files", Value: fmt.Sprintf("%d", summary.Total)},
		{Label: "Converted", Value: fmt.Sprintf("%d", summary.Converted)},
		{Label: "Copied verbatim", Value: fmt.Sprintf("%d", summary.Copied)},
	}
	if summary.Skipped > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Skipped", Value: fmt.Sprintf("%d", summary.Skipped)})
	}
	rows = append(rows,
		tui.SummaryRow{Label: "Warnings", Value: fmt.Sprintf("%d", summary.Warnings)},
		tui.SummaryRow{Label: "Errors", Value: fmt.Sprintf("%d", summary.Errors)},
		tui.SummaryRow{Label: "Read", Value: FormatBytes(summary.BytesIn)},
		tui.SummaryRow{Label: "Written", Value: FormatBytes(summary.BytesOut)},
		tui.SummaryRow{Label: "Elapsed", Value: elapsed.Round(time.Millisecond).String()},
	)
	return rows
}
