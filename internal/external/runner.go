// Package external drives the command-line transcoders used for video and
// audio work. Nothing here understands codecs; it only builds argument
// lists, runs them and reports failures.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const (
	DefaultFFmpeg    = "ffmpeg"
	DefaultHandBrake = "HandBrakeCLI"
)

// ErrBinaryNotFound is returned when a required tool is not on PATH.
var ErrBinaryNotFound = errors.New("binary not found on PATH")

// Runner executes one external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecError carries the tail of a failed command's stderr.
type ExecError struct {
	Name   string
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec. Stderr is captured for error
// reporting and, when Verbose is set, also streamed to os.Stderr.
type ExecRunner struct {
	Verbose bool
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderrBuf bytes.Buffer
	if r.Verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	if err := cmd.Run(); err != nil {
		return &ExecError{Name: name, Err: err, Stderr: lastLines(stderrBuf.String(), 3)}
	}
	return nil
}

// LookupBinaries checks that every named tool resolves on PATH.
func LookupBinaries(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, strings.Join(missing, ", "))
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
