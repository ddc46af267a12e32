package search

import (
	"math"

	"squeeze/internal/codec"
)

// downscale probes at scale ratio^-1, ratio^-2, ... at fixed quality and
// takes the first trial that fits. It gives up at the iteration cap or when
// the resolution floor stops the picture from getting any smaller.
func (r *runner) downscale() (Outcome, error) {
	var last *codec.Trial
	for i := 1; i <= r.params.MaxIterations; i++ {
		step := Step{
			Scale:   math.Pow(r.params.Ratio, -float64(i)),
			Quality: r.params.DownscaleQuality,
		}
		trial, fits, err := r.probe(PassDownscale, step)
		if err != nil {
			return Outcome{}, err
		}
		if fits {
			return r.outcome(StatusFit, &trial), nil
		}
		if last != nil && trial.Width == last.Width && trial.Height == last.Height {
			return r.outcome(StatusUnreachable, &trial), nil
		}
		last = &trial
	}
	return r.outcome(StatusUnreachable, last), nil
}
