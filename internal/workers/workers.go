package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "SQUEEZE_WORKERS"

// Count returns the number of workers for a batch.
//
// requested wins when positive. Otherwise SQUEEZE_WORKERS is honored, and
// failing that the pool is sized to GOMAXPROCS minus reserve, which keeps
// one core free during high-memory encodes. The result is never below 1.
func Count(requested, reserve int) int {
	if requested > 0 {
		return requested
	}

	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return count
		}
	}

	workers := runtime.GOMAXPROCS(0) - reserve
	if workers < 1 {
		workers = 1
	}
	return workers
}

// ForEncode sizes a pool for image encoding: all cores but one.
func ForEncode(requested int) int {
	return Count(requested, 1)
}

// ForExternal sizes a pool whose jobs shell out to a transcoder that is
// itself multi-threaded.
func ForExternal(requested int) int {
	if requested > 0 {
		return requested
	}
	n := Count(0, 0) / 2
	if n < 1 {
		n = 1
	}
	return n
}
