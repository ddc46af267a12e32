package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"squeeze/internal/codec"
	"squeeze/internal/codec/vips"
	"squeeze/internal/config"
	"squeeze/internal/external"
	"squeeze/internal/journal"
	"squeeze/internal/logging"
	"squeeze/internal/metrics"
	"squeeze/internal/processor"
	"squeeze/internal/report"
	"squeeze/internal/tui"
)

// runBatch validates cfg, runs the batch behind the progress view (or
// plain lines) and prints the summary.
func runBatch(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := cfg.Options()
	recorder := metrics.New(cfg.Operation)
	opts.Observer = recorder

	if cfg.Operation == processor.OpPicture {
		prober, release := newProber(cfg, opts.Workers)
		defer release()
		opts.Prober = prober
		opts.Search.OnProbe = recorder.ObserveProbe
	} else {
		opts.Runner = external.ExecRunner{Verbose: logging.IsDebugEnabled()}
	}

	var j *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		if j, err = journal.Open(ctx, cfg.JournalPath); err != nil {
			return err
		}
		defer j.Close()
		if opts.RunID, err = j.BeginRun(ctx, cfg.Operation, opts.Variant, opts.Target); err != nil {
			return err
		}
		opts.Journal = j
	}

	started := time.Now()
	updates := make(chan processor.ProgressUpdate, 64)
	uiDone := make(chan struct{})

	if cfg.Plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		go func() {
			report.Stream(os.Stdout, updates)
			close(uiDone)
		}()
	} else {
		model := tui.NewModel("squeeze "+cfg.Operation.String(), updates, report.Line).WithInterrupt(cancel)
		program := tea.NewProgram(model)
		go func() {
			if _, err := program.Run(); err != nil {
				logging.Warn("progress view: %v", err)
			}
			// Whatever the view did not consume is still reported.
			report.Stream(os.Stdout, updates)
			close(uiDone)
		}()
	}

	summary, _, err := processor.Run(ctx, opts, updates)
	close(updates)
	<-uiDone

	if j != nil && opts.RunID != "" {
		if ferr := j.FinishRun(context.Background(), opts.RunID, summary); ferr != nil {
			logging.Warn("journal: %v", ferr)
		}
	}
	if cfg.MetricsFile != "" {
		if merr := recorder.WriteTextfile(cfg.MetricsFile); merr != nil {
			logging.Warn("metrics: %v", merr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, tui.RenderSummary(report.SummaryRows(summary, time.Since(started))))
	outPath := cfg.OutputDir
	if abs, absErr := filepath.Abs(cfg.OutputDir); absErr == nil {
		outPath = abs
	}
	fmt.Fprintf(os.Stdout, "Output written to: %s\n", outPath)
	return nil
}

// newProber returns the encoder selected by --engine and a function that
// releases it.
func newProber(cfg config.Config, workers int) (codec.Prober, func()) {
	switch cfg.EngineKind() {
	case config.EngineVips:
		vips.Startup(workers)
		return vips.Prober{MinDimension: cfg.MinDimension}, vips.Shutdown
	default:
		return codec.ImagingProber{MinDimension: cfg.MinDimension}, func() {}
	}
}
