package processor

import (
	"os"
	"path/filepath"
	"strings"

	"squeeze/internal/external"
)

// Discover lists the jobs for op in inputDir, in name order. Only regular
// files directly inside inputDir are considered.
func Discover(op Operation, inputDir string) ([]Job, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name() == Sentinel {
			continue
		}
		names = append(names, entry.Name())
	}

	var jobs []Job
	if op == OpMux {
		pairs, err := external.PairStems(names)
		if err != nil {
			return nil, err
		}
		for _, pair := range pairs {
			jobs = append(jobs, Job{
				Name:      pair.Stem,
				Path:      filepath.Join(inputDir, pair.Video),
				Companion: filepath.Join(inputDir, pair.Audio),
			})
		}
		return jobs, nil
	}

	for _, name := range names {
		if !op.Eligible(name) {
			continue
		}
		jobs = append(jobs, Job{Name: name, Path: filepath.Join(inputDir, name)})
	}
	return jobs, nil
}

// claimOutputs gives each output name to the first job in name order that
// writes it and marks later jobs with a Conflict. Names are compared
// lower-case so outputs stay distinct on case-insensitive filesystems too.
func claimOutputs(jobs []Job, opts Options) {
	claimed := make(map[string]string)
	for i := range jobs {
		size := int64(-1)
		if opts.Operation == OpPicture {
			if info, err := os.Stat(jobs[i].Path); err == nil {
				size = info.Size()
			}
		}
		key := strings.ToLower(outputName(jobs[i], opts, size))
		if owner, ok := claimed[key]; ok {
			jobs[i].Conflict = owner
			continue
		}
		claimed[key] = jobs[i].Name
	}
}

// outputName is the file a job writes under the output directory. A
// picture of known size within the budget is copied under its own name.
func outputName(job Job, opts Options, size int64) string {
	switch opts.Operation {
	case OpPicture:
		if size >= 0 && size <= opts.Target {
			return job.Name
		}
		return stemOf(job.Name) + opts.Search.Format.Extension()
	case OpVideo:
		return stemOf(job.Name) + ".mp4"
	case OpAudio:
		return stemOf(job.Name) + ".mp3"
	case OpMux:
		return job.Name + ".mkv"
	default:
		return job.Name
	}
}

func extOf(name string) string {
	return filepath.Ext(name)
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
