package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"squeeze/internal/external"
)

func runExternal(ctx context.Context, job Job, opts Options) JobResult {
	res := JobResult{Job: job}
	if info, err := os.Stat(job.Path); err == nil {
		res.SourceSize = info.Size()
	}

	cmd, dest, err := externalCommand(job, opts)
	if err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}

	if err := opts.Runner.Run(ctx, cmd.Name, cmd.Args...); err != nil {
		_ = os.Remove(dest)
		res.Status, res.Err = StatusError, err
		return res
	}

	info, err := os.Stat(dest)
	if err != nil {
		res.Status, res.Err = StatusError, fmt.Errorf("%w: %s produced no output: %v", ErrWrite, cmd.Name, err)
		return res
	}
	res.Status, res.Output, res.Size = StatusConverted, dest, info.Size()
	return res
}

func externalCommand(job Job, opts Options) (external.Command, string, error) {
	ffmpeg := opts.FFmpeg
	if ffmpeg == "" {
		ffmpeg = external.DefaultFFmpeg
	}
	handbrake := opts.HandBrake
	if handbrake == "" {
		handbrake = external.DefaultHandBrake
	}

	dest := filepath.Join(opts.OutputDir, outputName(job, opts, -1))
	switch opts.Operation {
	case OpVideo:
		return external.VideoCommand(handbrake, job.Path, dest), dest, nil
	case OpAudio:
		return external.AudioCommand(ffmpeg, job.Path, dest), dest, nil
	case OpCut:
		return external.CutCommand(ffmpeg, job.Path, dest, opts.Cut.Start, opts.Cut.Length), dest, nil
	case OpMux:
		return external.MuxCommand(ffmpeg, job.Path, job.Companion, dest), dest, nil
	case OpPicture:
		return external.Command{}, "", fmt.Errorf("picture jobs do not use an external tool")
	default:
		return external.Command{}, "", fmt.Errorf("unknown operation %s", opts.Operation)
	}
}
