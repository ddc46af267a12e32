// Package search finds an encoding of a picture that fits a byte budget
// using a bounded number of real trial encodes.
//
// Two strategies exist. Downscale keeps quality fixed and shrinks the
// resolution by a constant ratio until the output fits. Quality sweeps
// quality at full resolution first, then walks a (scale, quality)
// staircase scored by utilization times quality, and finally falls back to
// a fixed downscale so it always ends with an artifact. Scale and quality
// never increase from one trial to the next within a search.
//
// Run is a pure function of its inputs: every trial is encoded from the
// immutable source, never from the output of an earlier trial.
package search

import (
	"errors"
	"fmt"
	"strings"

	"squeeze/internal/codec"
	"squeeze/internal/logging"
)

// ErrBudgetUnreachable is reported when no trial fits the budget.
var ErrBudgetUnreachable = errors.New("budget unreachable")

// Strategy selects the search policy.
type Strategy int

const (
	StrategyDownscale Strategy = iota
	StrategyQuality
)

func (s Strategy) String() string {
	switch s {
	case StrategyDownscale:
		return "downscale"
	case StrategyQuality:
		return "quality"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "downscale", "a":
		return StrategyDownscale, nil
	case "quality", "b":
		return StrategyQuality, nil
	default:
		return StrategyQuality, fmt.Errorf("unknown strategy %q", name)
	}
}

// Pass names the phase of the search a trial belongs to.
type Pass int

const (
	PassDownscale Pass = iota
	PassSweep
	PassGrid
	PassFallback
)

func (p Pass) String() string {
	switch p {
	case PassDownscale:
		return "downscale"
	case PassSweep:
		return "sweep"
	case PassGrid:
		return "grid"
	case PassFallback:
		return "fallback"
	default:
		return fmt.Sprintf("pass(%d)", int(p))
	}
}

// Step is a (scale, quality) pair.
type Step struct {
	Scale   float64
	Quality int
}

// Probe describes one trial as it happens.
type Probe struct {
	Pass        Pass
	Index       int
	Trial       codec.Trial
	Fits        bool
	Utilization float64
}

type Params struct {
	Strategy Strategy
	Format   codec.Format

	// MaxIterations caps the number of trial encodes for either strategy.
	MaxIterations int

	// Downscale strategy.
	Ratio            float64
	DownscaleQuality int

	// Quality strategy. A sweep fit at or below SweepUtilization is only
	// accepted at the last sweep quality.
	SweepQualities   []int
	SweepUtilization float64
	GridTrigger      float64
	Grid             []Step
	ScoreMargin      float64
	StopUtilization  float64
	Fallback         Step

	// OnProbe, when set, observes every trial in order.
	OnProbe func(Probe)
}

// DefaultParams returns the tuned defaults for the given strategy.
func DefaultParams(strategy Strategy, format codec.Format) Params {
	return Params{
		Strategy:         strategy,
		Format:           format,
		MaxIterations:    20,
		Ratio:            1.1,
		DownscaleQuality: 95,
		SweepQualities:   QualityRange(95, 50, 5),
		SweepUtilization: 0.7,
		GridTrigger:      0.5,
		Grid:             Staircase([]float64{0.9, 0.8, 0.7, 0.6, 0.5}, []int{90, 85, 80, 75, 70}),
		ScoreMargin:      1.1,
		StopUtilization:  0.85,
		Fallback:         Step{Scale: 0.7, Quality: 70},
	}
}

// QualityRange lists from..to inclusive, descending by step.
func QualityRange(from, to, step int) []int {
	if step <= 0 || from < to {
		return nil
	}
	out := make([]int, 0, (from-to)/step+1)
	for q := from; q >= to; q -= step {
		out = append(out, q)
	}
	return out
}

// Staircase interleaves scales and qualities into a sequence that never
// increases in either coordinate: (s0,q0) (s0,q1) (s1,q1) (s1,q2) ...
func Staircase(scales []float64, qualities []int) []Step {
	var steps []Step
	for i, s := range scales {
		if i >= len(qualities) {
			break
		}
		steps = append(steps, Step{Scale: s, Quality: qualities[i]})
		if i+1 < len(qualities) && i+1 < len(scales) {
			steps = append(steps, Step{Scale: s, Quality: qualities[i+1]})
		}
	}
	return steps
}

func (p Params) Validate() error {
	if p.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", p.MaxIterations)
	}
	switch p.Strategy {
	case StrategyDownscale:
		if p.Ratio <= 1 {
			return fmt.Errorf("downscale ratio must be greater than 1, got %v", p.Ratio)
		}
		if p.DownscaleQuality < codec.MinQuality || p.DownscaleQuality > codec.MaxQuality {
			return fmt.Errorf("downscale quality %d out of range", p.DownscaleQuality)
		}
	case StrategyQuality:
		if len(p.SweepQualities) == 0 {
			return errors.New("quality sweep is empty")
		}
		for i := 1; i < len(p.SweepQualities); i++ {
			if p.SweepQualities[i] > p.SweepQualities[i-1] {
				return errors.New("quality sweep must be descending")
			}
		}
		if p.SweepUtilization < 0 || p.SweepUtilization > 1 {
			return fmt.Errorf("sweep utilization %v out of range [0, 1]", p.SweepUtilization)
		}
		for i := 1; i < len(p.Grid); i++ {
			if p.Grid[i].Scale > p.Grid[i-1].Scale || p.Grid[i].Quality > p.Grid[i-1].Quality {
				return errors.New("grid must not increase in scale or quality")
			}
		}
		if err := (codec.EncodeConfig{Scale: p.Fallback.Scale, Quality: p.Fallback.Quality}).Validate(); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	default:
		return fmt.Errorf("unknown strategy %d", int(p.Strategy))
	}
	return nil
}

// Status classifies an Outcome.
type Status int

const (
	// StatusFit means the trial is at or under the budget.
	StatusFit Status = iota
	// StatusFallback means the quality strategy found no fitting candidate
	// and took its fixed fallback step. The trial may exceed the budget.
	StatusFallback
	// StatusUnreachable means the iteration cap or the resolution floor was
	// hit first. Trial holds the smallest attempt, which exceeds the budget.
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusFit:
		return "fit"
	case StatusFallback:
		return "fallback"
	case StatusUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Outcome struct {
	Status     Status
	Trial      *codec.Trial
	Target     int64
	Iterations int
}

// OverBudget reports whether the chosen trial exceeds the target.
func (o Outcome) OverBudget() bool {
	return o.Trial == nil || o.Trial.Size > o.Target
}

// Err returns ErrBudgetUnreachable for over-budget outcomes.
func (o Outcome) Err() error {
	if !o.OverBudget() {
		return nil
	}
	return fmt.Errorf("%w after %d trials", ErrBudgetUnreachable, o.Iterations)
}

// Run searches for the best encoding of src under target bytes.
func Run(src *codec.SourceImage, target int64, prober codec.Prober, params Params) (Outcome, error) {
	if target <= 0 {
		return Outcome{}, fmt.Errorf("target must be positive, got %d", target)
	}
	if err := params.Validate(); err != nil {
		return Outcome{}, err
	}

	r := &runner{src: src, target: target, prober: prober, params: params}
	switch params.Strategy {
	case StrategyDownscale:
		return r.downscale()
	case StrategyQuality:
		return r.qualityFirst()
	default:
		return Outcome{}, fmt.Errorf("unknown strategy %d", int(params.Strategy))
	}
}

type runner struct {
	src    *codec.SourceImage
	target int64
	prober codec.Prober
	params Params
	probes int
	last   *probed
}

type probed struct {
	step  Step
	trial codec.Trial
}

func (r *runner) probe(pass Pass, step Step) (codec.Trial, bool, error) {
	cfg := codec.EncodeConfig{Scale: step.Scale, Quality: step.Quality, Format: r.params.Format}
	trial, err := r.prober.Probe(r.src, cfg)
	if err != nil {
		return codec.Trial{}, false, err
	}
	r.probes++
	r.last = &probed{step: step, trial: trial}

	fits := trial.Size <= r.target
	util := trial.Utilization(r.target)
	logging.Debug("%s %s #%d: %s %dx%d -> %d bytes (%.1f%%)",
		r.src.Name, pass, r.probes, cfg, trial.Width, trial.Height, trial.Size, util*100)
	if r.params.OnProbe != nil {
		r.params.OnProbe(Probe{Pass: pass, Index: r.probes, Trial: trial, Fits: fits, Utilization: util})
	}
	return trial, fits, nil
}

func (r *runner) outcome(status Status, trial *codec.Trial) Outcome {
	return Outcome{Status: status, Trial: trial, Target: r.target, Iterations: r.probes}
}
