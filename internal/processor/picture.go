package processor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"squeeze/internal/codec"
	"squeeze/internal/logging"
	"squeeze/internal/search"
)

func convertPicture(ctx context.Context, job Job, opts Options) JobResult {
	res := JobResult{Job: job, Target: opts.Target}

	info, err := os.Stat(job.Path)
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}
	res.SourceSize = info.Size()

	// Already within budget: hand the original over untouched.
	if info.Size() <= opts.Target {
		dest := filepath.Join(opts.OutputDir, outputName(job, opts, info.Size()))
		n, err := copyFile(job.Path, dest, info.Mode().Perm())
		if err != nil {
			res.Status, res.Err = StatusError, err
			return res
		}
		res.Status, res.Output, res.Size = StatusCopied, dest, n
		return res
	}

	data, err := os.ReadFile(job.Path)
	if err != nil {
		res.Status, res.Err = StatusError, fmt.Errorf("%w: %v", codec.ErrDecode, err)
		return res
	}

	if opts.Journal != nil {
		res.Fingerprint = Fingerprint(data)
	}
	if opts.Resume && opts.Journal != nil {
		if entry, ok := previousOutput(ctx, opts, res.Fingerprint); ok {
			res.Status, res.Size = StatusSkipped, entry.Size
			return res
		}
	}

	src, err := codec.Decode(job.Name, data)
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}

	outcome, err := search.Run(src, opts.Target, opts.Prober, opts.Search)
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}
	res.Iterations = outcome.Iterations
	res.SearchStatus = outcome.Status

	dest := filepath.Join(opts.OutputDir, outputName(job, opts, info.Size()))

	if outcome.OverBudget() {
		res.Status, res.Err = StatusWarning, outcome.Err()
		if opts.Policy != PolicyBestEffort || outcome.Trial == nil {
			if outcome.Trial != nil {
				res.Encoded, res.Config, res.Size = true, outcome.Trial.Config, outcome.Trial.Size
			}
			return res
		}
		if err := writeFile(dest, outcome.Trial.Data, 0o644); err != nil {
			res.Status, res.Err = StatusError, err
			return res
		}
		res.Output = dest
		res.Encoded, res.Config, res.Size = true, outcome.Trial.Config, outcome.Trial.Size
		return res
	}

	if err := writeFile(dest, outcome.Trial.Data, 0o644); err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}
	res.Status, res.Output = StatusConverted, dest
	res.Encoded, res.Config, res.Size = true, outcome.Trial.Config, outcome.Trial.Size
	return res
}

func previousOutput(ctx context.Context, opts Options, fingerprint string) (JournalEntry, bool) {
	entry, ok, err := opts.Journal.Lookup(ctx, fingerprint, opts.Target, opts.Variant)
	if err != nil {
		logging.Warn("journal lookup: %v", err)
		return JournalEntry{}, false
	}
	if !ok {
		return JournalEntry{}, false
	}
	info, err := os.Stat(entry.Output)
	if err != nil || info.Size() != entry.Size {
		return JournalEntry{}, false
	}
	return entry, true
}

// Fingerprint identifies source content independent of its file name.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsDecodeError reports whether a result failed because its source could
// not be read as an image.
func IsDecodeError(res JobResult) bool {
	return errors.Is(res.Err, codec.ErrDecode)
}
