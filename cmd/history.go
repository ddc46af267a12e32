package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"squeeze/internal/journal"
	"squeeze/internal/report"
	"squeeze/internal/tui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the batches recorded in the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJournal == "" {
			return fmt.Errorf("history needs --journal")
		}
		if _, err := os.Stat(flagJournal); err != nil {
			return err
		}

		j, err := journal.Open(cmd.Context(), flagJournal)
		if err != nil {
			return err
		}
		defer j.Close()

		runs, err := j.Runs(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stdout, historyDimStyle.Render("no runs recorded"))
			return nil
		}

		for _, run := range runs {
			state := run.Finished.Format("2006-01-02 15:04")
			if run.Finished.IsZero() {
				state = "unfinished"
			}
			fmt.Fprintf(os.Stdout, "%s %s %s\n",
				historyOpStyle.Render(fmt.Sprintf("%-7s", run.Operation)),
				historyValueStyle.Render(run.Started.Format("2006-01-02 15:04")),
				historyDimStyle.Render(run.ID))
			s := run.Summary
			detail := fmt.Sprintf("%d files: %d converted, %d copied, %d skipped, %d warnings, %d errors (%s)",
				s.Total, s.Converted, s.Copied, s.Skipped, s.Warnings, s.Errors, state)
			if run.Target > 0 {
				detail += fmt.Sprintf(", target %s, %s", report.FormatBytes(run.Target), run.Variant)
			}
			fmt.Fprintf(os.Stdout, "  %s\n", historyDimStyle.Render(detail))
		}
		return nil
	},
}

var (
	historyOpStyle    = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	historyValueStyle = lipgloss.NewStyle().Foreground(tui.ColorInk)
	historyDimStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
