package search

import "squeeze/internal/codec"

type candidate struct {
	trial codec.Trial
	score float64
}

// qualityFirst runs the full-resolution quality sweep, the scored
// (scale, quality) staircase when the sweep is missing or wasteful, and
// the fixed fallback when nothing fit. One probe is always held back for
// the fallback so the total never exceeds MaxIterations.
//
// Grid and fallback steps are capped at the lowest scale and quality
// already tried, so neither coordinate rises across passes.
func (r *runner) qualityFirst() (Outcome, error) {
	budget := r.params.MaxIterations - 1
	floor := r.params.SweepQualities[len(r.params.SweepQualities)-1]

	var best *candidate
	accepted := false
	for _, q := range r.params.SweepQualities {
		if r.probes >= budget {
			break
		}
		step := Step{Scale: 1, Quality: q}
		if r.repeats(step) {
			continue
		}
		trial, fits, err := r.probe(PassSweep, step)
		if err != nil {
			return Outcome{}, err
		}
		if !fits {
			continue
		}
		// Lowering quality at the same resolution only shrinks the output,
		// so the first fit is the best the sweep can do. A wasteful one is
		// kept as the incumbent for the grid instead of being accepted.
		best = &candidate{trial: trial, score: r.score(trial)}
		accepted = trial.Utilization(r.target) > r.params.SweepUtilization ||
			q == floor || !r.params.Format.HasQuality()
		break
	}

	if !accepted || best.trial.Utilization(r.target) < r.params.GridTrigger {
		for _, step := range r.params.Grid {
			if r.probes >= budget {
				break
			}
			step = r.capped(step)
			if r.repeats(step) {
				continue
			}
			trial, fits, err := r.probe(PassGrid, step)
			if err != nil {
				return Outcome{}, err
			}
			if !fits {
				continue
			}
			score := r.score(trial)
			if best == nil || score > best.score*r.params.ScoreMargin {
				best = &candidate{trial: trial, score: score}
			}
			if trial.Utilization(r.target) > r.params.StopUtilization {
				break
			}
		}
	}

	if best != nil {
		return r.outcome(StatusFit, &best.trial), nil
	}

	step := r.capped(r.params.Fallback)
	if r.repeats(step) {
		trial := r.last.trial
		return r.outcome(StatusFallback, &trial), nil
	}
	trial, _, err := r.probe(PassFallback, step)
	if err != nil {
		return Outcome{}, err
	}
	return r.outcome(StatusFallback, &trial), nil
}

func (r *runner) score(trial codec.Trial) float64 {
	return trial.Utilization(r.target) * float64(trial.Config.Quality)
}

// capped lowers step to the smallest scale and quality probed so far.
func (r *runner) capped(step Step) Step {
	if r.last == nil {
		return step
	}
	return Step{
		Scale:   min(step.Scale, r.last.step.Scale),
		Quality: min(step.Quality, r.last.step.Quality),
	}
}

// repeats reports whether step would encode the same output as the last
// probe. Quality is ignored for formats that have none. Steps never rise,
// so comparing with the last probe is enough.
func (r *runner) repeats(step Step) bool {
	if r.last == nil || step.Scale != r.last.step.Scale {
		return false
	}
	return step.Quality == r.last.step.Quality || !r.params.Format.HasQuality()
}
