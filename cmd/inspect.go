package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"squeeze/internal/codec"
	"squeeze/internal/processor"
	"squeeze/internal/report"
	"squeeze/internal/search"
	"squeeze/internal/tui"
	"squeeze/pkg/imgutil"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <picture>",
	Short: "Show every trial the search would make for one picture, without writing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		kind, err := imgutil.SniffFile(path)
		if err != nil {
			return fmt.Errorf("%s: not a picture: %w", path, err)
		}
		if kind == imgutil.KindUnknown {
			return fmt.Errorf("%s: not a picture", path)
		}

		cfg := pictureConfig(processor.OpPicture)
		cfg.InputDir = filepath.Dir(path)
		if err := cfg.Validate(); err != nil {
			return err
		}

		src, err := codec.Load(path)
		if err != nil {
			return err
		}
		target := cfg.TargetBytes()

		fmt.Fprintf(os.Stdout, "%s\n", inspectFileStyle.Render(src.Name))
		fmt.Fprintf(os.Stdout, "  %s %dx%d %s, %s\n",
			inspectBulletStyle.Render("-"), src.Width, src.Height, src.Kind, report.FormatBytes(src.Size))
		if src.Orientation > 1 {
			fmt.Fprintf(os.Stdout, "  %s %s\n", inspectBulletStyle.Render("-"), codec.OrientationName(src.Orientation))
		}
		fmt.Fprintf(os.Stdout, "  %s target %s, %s strategy, %s via %s\n",
			inspectBulletStyle.Render("-"), report.FormatBytes(target), cfg.Strategy, cfg.Format, cfg.Engine)

		if src.Size <= target {
			fmt.Fprintf(os.Stdout, "  %s\n", inspectFitStyle.Render("already within budget, would be copied verbatim"))
			return nil
		}

		prober, release := newProber(cfg, 1)
		defer release()

		params := cfg.SearchParams()
		params.OnProbe = func(p search.Probe) {
			verdict := inspectOverStyle.Render("over")
			if p.Fits {
				verdict = inspectFitStyle.Render("fits")
			}
			fmt.Fprintf(os.Stdout, "  %s %s %s %s %s %s\n",
				inspectPassStyle.Render(fmt.Sprintf("%-9s #%-2d", p.Pass, p.Index)),
				inspectValueStyle.Render(p.Trial.Config.String()),
				inspectDimStyle.Render(fmt.Sprintf("%dx%d", p.Trial.Width, p.Trial.Height)),
				inspectValueStyle.Render(report.FormatBytes(p.Trial.Size)),
				inspectDimStyle.Render(report.FormatPercent(p.Utilization)),
				verdict,
			)
		}

		outcome, err := search.Run(src, target, prober, params)
		if err != nil {
			return err
		}

		style := inspectFitStyle
		if outcome.OverBudget() {
			style = inspectOverStyle
		}
		if outcome.Trial == nil {
			fmt.Fprintf(os.Stdout, "%s\n", style.Render(fmt.Sprintf("%s after %d trials, nothing to write", outcome.Status, outcome.Iterations)))
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s\n", style.Render(fmt.Sprintf("%s: %s, %s (%s) after %d trials",
			outcome.Status, outcome.Trial.Config, report.FormatBytes(outcome.Trial.Size),
			report.FormatPercent(outcome.Trial.Utilization(target)), outcome.Iterations)))
		return nil
	},
}

var (
	inspectFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	inspectPassStyle   = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	inspectValueStyle  = lipgloss.NewStyle().Foreground(tui.ColorInk)
	inspectDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	inspectBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorDim)
	inspectFitStyle    = lipgloss.NewStyle().Foreground(tui.ColorSuccess)
	inspectOverStyle   = lipgloss.NewStyle().Foreground(tui.ColorWarn)
)

func init() {
	addSearchFlags(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}
