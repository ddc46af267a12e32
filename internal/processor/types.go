package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"squeeze/internal/codec"
	"squeeze/internal/external"
	"squeeze/internal/search"
)

// Sentinel is the placeholder entry kept in the input directory so it
// survives empty checkouts. It is never processed.
const Sentinel = "delete-me"

// Operation is the kind of batch being run.
type Operation int

const (
	OpPicture Operation = iota
	OpVideo
	OpAudio
	OpCut
	OpMux
)

func (o Operation) String() string {
	switch o {
	case OpPicture:
		return "picture"
	case OpVideo:
		return "video"
	case OpAudio:
		return "audio"
	case OpCut:
		return "cut"
	case OpMux:
		return "mux"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// ParseOperation accepts the operation names and their short codes
// (pp, vv, ava, ava_cut, ava_mux).
func ParseOperation(name string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "picture", "pp":
		return OpPicture, nil
	case "video", "vv":
		return OpVideo, nil
	case "audio", "ava":
		return OpAudio, nil
	case "cut", "ava_cut":
		return OpCut, nil
	case "mux", "ava_mux":
		return OpMux, nil
	default:
		return OpPicture, fmt.Errorf("unknown operation %q", name)
	}
}

var (
	pictureExts = extSet(".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tif", ".tiff", ".gif")
	videoExts   = extSet(".mp4", ".mkv", ".avi", ".mov", ".webm", ".m4v", ".wmv", ".flv", ".mpg", ".mpeg", ".ts")
	audioExts   = extSet(".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg", ".opus", ".wma")
	mediaExts   = union(videoExts, audioExts)
)

// Eligible reports whether a file name (extension compared
// case-insensitively) is processed by this operation. Mux pairs files by
// stem instead and reports false for every name.
func (o Operation) Eligible(name string) bool {
	if name == Sentinel {
		return false
	}
	ext := strings.ToLower(extOf(name))
	switch o {
	case OpPicture:
		return pictureExts[ext]
	case OpVideo:
		return videoExts[ext]
	case OpAudio, OpCut:
		return mediaExts[ext]
	case OpMux:
		return false
	default:
		return false
	}
}

// Policy decides what happens to a trial that exceeds the budget.
type Policy int

const (
	// PolicyReject writes nothing for an over-budget result.
	PolicyReject Policy = iota
	// PolicyBestEffort writes the over-budget trial and still warns.
	PolicyBestEffort
)

func (p Policy) String() string {
	if p == PolicyBestEffort {
		return "best-effort"
	}
	return "reject"
}

// CutRange is passed to ffmpeg as -ss Start and -t Length.
type CutRange struct {
	Start  string
	Length string
}

// JournalEntry is what a journal remembers about a previous conversion.
type JournalEntry struct {
	Output string
	Size   int64
}

// Journal persists results across runs.
type Journal interface {
	Lookup(ctx context.Context, fingerprint string, target int64, variant string) (JournalEntry, bool, error)
	Record(ctx context.Context, runID string, variant string, res JobResult) error
}

// Observer sees every result once, on the collector goroutine.
type Observer interface {
	ObserveResult(res JobResult)
}

type Options struct {
	Operation Operation
	InputDir  string
	OutputDir string
	Workers   int

	// Picture settings.
	Target  int64
	Search  search.Params
	Prober  codec.Prober
	Policy  Policy
	Variant string

	// External tool settings.
	Runner    external.Runner
	FFmpeg    string
	HandBrake string
	Cut       CutRange

	Journal  Journal
	Resume   bool
	RunID    string
	Observer Observer
}

type Job struct {
	Name string
	Path string
	// Companion is the audio half of a mux pair.
	Companion string
	// Conflict names an earlier job that already claimed this job's output.
	Conflict string
}

// Status is the tag of a JobResult.
type Status int

const (
	StatusConverted Status = iota
	StatusCopied
	StatusSkipped
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConverted:
		return "converted"
	case StatusCopied:
		return "copied"
	case StatusSkipped:
		return "skipped"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// JobResult is produced exactly once per job.
type JobResult struct {
	Job    Job
	Status Status
	// Output is the path written, empty when nothing was written.
	Output string

	SourceSize int64
	Size       int64
	Target     int64

	// Encoded is set when Config describes the written picture.
	Encoded      bool
	Config       codec.EncodeConfig
	Iterations   int
	SearchStatus search.Status

	Fingerprint string
	Err         error
	Duration    time.Duration
}

// Utilization is Size over Target, or zero without a target.
func (r JobResult) Utilization() float64 {
	if r.Target <= 0 {
		return 0
	}
	return float64(r.Size) / float64(r.Target)
}

type Summary struct {
	Total     int
	Converted int
	Copied    int
	Skipped   int
	Warnings  int
	Errors    int
	BytesIn   int64
	BytesOut  int64
}

func (s *Summary) add(res JobResult) {
	switch res.Status {
	case StatusConverted:
		s.Converted++
	case StatusCopied:
		s.Copied++
	case StatusSkipped:
		s.Skipped++
	case StatusWarning:
		s.Warnings++
	case StatusError:
		s.Errors++
	}
	s.BytesIn += res.SourceSize
	if res.Output != "" {
		s.BytesOut += res.Size
	}
}

// ProgressUpdate streams batch progress to a UI. TotalDelta announces
// discovered jobs; Result carries one finished job.
type ProgressUpdate struct {
	TotalDelta int
	Result     *JobResult
}

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

func union(sets ...map[string]bool) map[string]bool {
	m := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			m[k] = true
		}
	}
	return m
}
