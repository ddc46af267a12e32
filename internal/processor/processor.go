// Package processor schedules one independent job per eligible input file
// across a bounded worker pool and collects exactly one JobResult per job.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"squeeze/internal/logging"
)

var (
	// ErrConfig marks batch preconditions that fail before any job starts.
	ErrConfig = errors.New("invalid batch configuration")
	// ErrWrite marks an output that could not be written.
	ErrWrite = errors.New("write failed")
	// ErrConflict marks a job whose output name an earlier job already owns.
	ErrConflict = errors.New("output name conflict")
)

// Run processes every eligible file of opts.InputDir. Per-file failures are
// returned as results, never as the error; the error is reserved for batch
// preconditions and cancellation. Results are sorted by job name, while
// updates (if non-nil) receive them in completion order.
func Run(ctx context.Context, opts Options, updates chan<- ProgressUpdate) (Summary, []JobResult, error) {
	summary := Summary{}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := checkOptions(opts); err != nil {
		return summary, nil, err
	}

	info, err := os.Stat(opts.InputDir)
	if err != nil {
		return summary, nil, fmt.Errorf("%w: input directory: %v", ErrConfig, err)
	}
	if !info.IsDir() {
		return summary, nil, fmt.Errorf("%w: input %s is not a directory", ErrConfig, opts.InputDir)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return summary, nil, fmt.Errorf("%w: output directory: %v", ErrConfig, err)
	}

	jobList, err := Discover(opts.Operation, opts.InputDir)
	if err != nil {
		return summary, nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	claimOutputs(jobList, opts)
	summary.Total = len(jobList)
	if updates != nil && len(jobList) > 0 {
		updates <- ProgressUpdate{TotalDelta: len(jobList)}
	}

	workers := opts.Workers
	if workers > len(jobList) {
		workers = len(jobList)
	}
	if workers < 1 {
		workers = 1
	}
	logging.Info("%s: %d jobs on %d workers", opts.Operation, len(jobList), workers)

	jobs := make(chan Job)
	results := make(chan JobResult)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts)
		}()
	}

	var collected []JobResult
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			summary.add(res)
			collected = append(collected, res)
			if opts.Journal != nil {
				if err := opts.Journal.Record(ctx, opts.RunID, opts.Variant, res); err != nil {
					logging.Warn("journal: %s: %v", res.Job.Name, err)
				}
			}
			if opts.Observer != nil {
				opts.Observer.ObserveResult(res)
			}
			if updates != nil {
				r := res
				updates <- ProgressUpdate{Result: &r}
			}
		}
	}()

	go func() {
		defer close(jobs)
		for _, job := range jobList {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Job.Name < collected[j].Job.Name
	})

	if err := ctx.Err(); err != nil {
		return summary, collected, err
	}
	return summary, collected, nil
}

func checkOptions(opts Options) error {
	if opts.InputDir == "" || opts.OutputDir == "" {
		return fmt.Errorf("%w: input and output directories are required", ErrConfig)
	}
	switch opts.Operation {
	case OpPicture:
		if opts.Target <= 0 {
			return fmt.Errorf("%w: target size must be positive", ErrConfig)
		}
		if opts.Prober == nil {
			return fmt.Errorf("%w: no encoder configured", ErrConfig)
		}
		if err := opts.Search.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	case OpVideo, OpAudio, OpCut, OpMux:
		if opts.Runner == nil {
			return fmt.Errorf("%w: no command runner configured", ErrConfig)
		}
		if opts.Operation == OpCut && (opts.Cut.Start == "" || opts.Cut.Length == "") {
			return fmt.Errorf("%w: cut needs a start and an end", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown operation %s", ErrConfig, opts.Operation)
	}
	return nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- JobResult, opts Options) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return
		}
		results <- process(ctx, job, opts)
	}
}

func process(ctx context.Context, job Job, opts Options) (res JobResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(job, fmt.Errorf("panic: %v", r))
		}
		res.Job = job
		res.Duration = time.Since(start)
	}()

	if job.Conflict != "" {
		return errorResult(job, fmt.Errorf("%w: output already claimed by %s", ErrConflict, job.Conflict))
	}

	switch opts.Operation {
	case OpPicture:
		return convertPicture(ctx, job, opts)
	case OpVideo, OpAudio, OpCut, OpMux:
		return runExternal(ctx, job, opts)
	default:
		return errorResult(job, fmt.Errorf("unknown operation %s", opts.Operation))
	}
}

func errorResult(job Job, err error) JobResult {
	return JobResult{Job: job, Status: StatusError, Err: err}
}
