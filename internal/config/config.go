// Package config holds the values of one batch invocation and turns them
// into processor options once they validate.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"squeeze/internal/codec"
	"squeeze/internal/external"
	"squeeze/internal/processor"
	"squeeze/internal/search"
	"squeeze/internal/workers"
)

const (
	DefaultInputDir  = "input"
	DefaultOutputDir = "converted"
	bytesPerMB       = 1024 * 1024
)

// lookupBinaries is replaced in tests.
var lookupBinaries = external.LookupBinaries

// Error is a batch precondition failure. It matches processor.ErrConfig
// under errors.Is.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return processor.ErrConfig }

func invalid(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Engine selects the codec.Prober implementation.
type Engine int

const (
	EngineImaging Engine = iota
	EngineVips
)

func (e Engine) String() string {
	if e == EngineVips {
		return "vips"
	}
	return "imaging"
}

func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "imaging", "":
		return EngineImaging, nil
	case "vips", "libvips":
		return EngineVips, nil
	default:
		return EngineImaging, fmt.Errorf("unknown engine %q", name)
	}
}

type Config struct {
	Operation   processor.Operation
	InputDir    string
	OutputDir   string
	Workers     int
	Plain       bool
	JournalPath string
	MetricsFile string

	// Picture settings. TargetMB is converted with TargetBytes.
	TargetMB      float64
	Strategy      string
	Format        string
	Engine        string
	Ratio         float64
	MaxIterations int
	MinDimension  int
	BestEffort    bool
	Resume        bool

	// Cut settings, passed to ffmpeg as -ss and -t.
	CutStart string
	CutEnd   string

	FFmpeg    string
	HandBrake string
}

// Default returns the flag defaults for op.
func Default(op processor.Operation) Config {
	params := search.DefaultParams(search.StrategyQuality, codec.FormatJPEG)
	return Config{
		Operation:     op,
		InputDir:      DefaultInputDir,
		OutputDir:     DefaultOutputDir,
		Strategy:      search.StrategyQuality.String(),
		Format:        codec.FormatJPEG.String(),
		Engine:        EngineImaging.String(),
		Ratio:         params.Ratio,
		MaxIterations: params.MaxIterations,
		MinDimension:  1,
		FFmpeg:        external.DefaultFFmpeg,
		HandBrake:     external.DefaultHandBrake,
	}
}

// TargetBytes converts TargetMB to a byte budget.
func (c Config) TargetBytes() int64 {
	return int64(math.Round(c.TargetMB * bytesPerMB))
}

// Validate checks every precondition that must hold before a job is
// dispatched. The returned error, if any, is an *Error.
func (c Config) Validate() error {
	if c.InputDir == "" {
		return invalid("input", "directory is required")
	}
	info, err := os.Stat(c.InputDir)
	if err != nil {
		return invalid("input", "%s does not exist", c.InputDir)
	}
	if !info.IsDir() {
		return invalid("input", "%s is not a directory", c.InputDir)
	}
	if c.OutputDir == "" {
		return invalid("output", "directory is required")
	}
	if c.Workers < 0 {
		return invalid("workers", "must not be negative")
	}
	if c.Resume && c.JournalPath == "" {
		return invalid("resume", "needs --journal")
	}

	switch c.Operation {
	case processor.OpPicture:
		return c.validatePicture()
	case processor.OpCut:
		if c.CutStart == "" || c.CutEnd == "" {
			return invalid("cut", "both --start and --end are required")
		}
	}
	if bins := c.Binaries(); len(bins) > 0 {
		if err := lookupBinaries(bins...); err != nil {
			return invalid("binary", "%v", err)
		}
	}
	return nil
}

func (c Config) validatePicture() error {
	if math.IsNaN(c.TargetMB) || c.TargetBytes() <= 0 {
		return invalid("target", "must be a positive size in MB")
	}
	if _, err := search.ParseStrategy(c.Strategy); err != nil {
		return invalid("strategy", "%v", err)
	}
	format, err := codec.ParseFormat(c.Format)
	if err != nil {
		return invalid("format", "%v", err)
	}
	engine, err := ParseEngine(c.Engine)
	if err != nil {
		return invalid("engine", "%v", err)
	}
	if format == codec.FormatWebP && engine != EngineVips {
		return invalid("format", "webp output needs --engine vips")
	}
	if !(c.Ratio > 1) {
		return invalid("ratio", "must be greater than 1")
	}
	if c.MaxIterations < 1 {
		return invalid("max-iterations", "must be at least 1")
	}
	if c.MinDimension < 1 {
		return invalid("min-dimension", "must be at least 1")
	}
	return nil
}

// Binaries lists the external tools the operation invokes.
func (c Config) Binaries() []string {
	switch c.Operation {
	case processor.OpVideo:
		return []string{orDefault(c.HandBrake, external.DefaultHandBrake)}
	case processor.OpAudio, processor.OpCut, processor.OpMux:
		return []string{orDefault(c.FFmpeg, external.DefaultFFmpeg)}
	default:
		return nil
	}
}

// EngineKind parses Engine. Call Validate first.
func (c Config) EngineKind() Engine {
	engine, _ := ParseEngine(c.Engine)
	return engine
}

// SearchParams builds the search parameters. Call Validate first.
func (c Config) SearchParams() search.Params {
	strategy, _ := search.ParseStrategy(c.Strategy)
	format, _ := codec.ParseFormat(c.Format)
	params := search.DefaultParams(strategy, format)
	params.Ratio = c.Ratio
	params.MaxIterations = c.MaxIterations
	return params
}

// Variant names every setting that changes the bytes of a picture output,
// so journal entries from a different encoder setup are never reused.
func (c Config) Variant() string {
	p := c.SearchParams()
	return fmt.Sprintf("%s/%s/%s/r%g/i%d/m%d", p.Strategy, p.Format, c.EngineKind(), p.Ratio, p.MaxIterations, c.MinDimension)
}

// Options builds processor options. The caller attaches the Prober,
// Runner, Journal and Observer.
func (c Config) Options() processor.Options {
	opts := processor.Options{
		Operation: c.Operation,
		InputDir:  c.InputDir,
		OutputDir: c.OutputDir,
		FFmpeg:    orDefault(c.FFmpeg, external.DefaultFFmpeg),
		HandBrake: orDefault(c.HandBrake, external.DefaultHandBrake),
		Resume:    c.Resume,
	}

	if c.Operation == processor.OpPicture {
		opts.Workers = workers.ForEncode(c.Workers)
		opts.Target = c.TargetBytes()
		opts.Search = c.SearchParams()
		opts.Variant = c.Variant()
		if c.BestEffort {
			opts.Policy = processor.PolicyBestEffort
		}
		return opts
	}

	opts.Workers = workers.ForExternal(c.Workers)
	if c.Operation == processor.OpCut {
		opts.Cut = processor.CutRange{Start: c.CutStart, Length: c.CutEnd}
	}
	return opts
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
