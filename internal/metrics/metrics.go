// Package metrics counts batch outcomes and search trials in a Prometheus
// registry that is written to a node-exporter textfile when the batch ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"squeeze/internal/processor"
	"squeeze/internal/search"
)

// Recorder implements processor.Observer. It is safe for concurrent use.
type Recorder struct {
	registry  *prometheus.Registry
	operation string

	JobsTotal         *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	ProbesTotal       *prometheus.CounterVec
	SearchIterations  prometheus.Histogram
	BudgetUtilization prometheus.Histogram
	BytesRead         prometheus.Counter
	BytesWritten      prometheus.Counter
}

// New registers the batch metrics for op in a fresh registry.
func New(op processor.Operation) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry:  reg,
		operation: op.String(),

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squeeze_jobs_total",
				Help: "Finished jobs by operation and result status",
			},
			[]string{"operation", "status"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "squeeze_job_duration_seconds",
				Help:    "Wall time spent on one job",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"operation"},
		),

		ProbesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squeeze_search_probes_total",
				Help: "Trial encodes by search pass",
			},
			[]string{"pass", "fits"},
		),

		SearchIterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squeeze_search_iterations",
				Help:    "Trial encodes needed per searched picture",
				Buckets: prometheus.LinearBuckets(1, 2, 10),
			},
		),

		BudgetUtilization: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squeeze_budget_utilization_ratio",
				Help:    "Output size over target for converted pictures",
				Buckets: []float64{0.25, 0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
			},
		),

		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "squeeze_source_bytes_total",
				Help: "Bytes of source files processed",
			},
		),

		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "squeeze_output_bytes_total",
				Help: "Bytes written to the output directory",
			},
		),
	}
}

func (r *Recorder) ObserveResult(res processor.JobResult) {
	r.JobsTotal.WithLabelValues(r.operation, res.Status.String()).Inc()
	r.JobDuration.WithLabelValues(r.operation).Observe(res.Duration.Seconds())
	r.BytesRead.Add(float64(res.SourceSize))
	if res.Output != "" {
		r.BytesWritten.Add(float64(res.Size))
	}
	if res.Iterations > 0 {
		r.SearchIterations.Observe(float64(res.Iterations))
	}
	if res.Status == processor.StatusConverted && res.Encoded {
		r.BudgetUtilization.Observe(res.Utilization())
	}
}

// ObserveProbe counts one trial; use it as search.Params.OnProbe.
func (r *Recorder) ObserveProbe(p search.Probe) {
	fits := "false"
	if p.Fits {
		fits = "true"
	}
	r.ProbesTotal.WithLabelValues(p.Pass.String(), fits).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the registry atomically in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
