package external

import "strings"

// Command is a binary plus its arguments.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// VideoCommand re-encodes a video to 1280x720 at constant quality 23.
func VideoCommand(handbrake, in, out string) Command {
	return Command{
		Name: handbrake,
		Args: []string{"-i", in, "-o", out, "-w", "1280", "-l", "720", "-q", "23"},
	}
}

// AudioCommand extracts audio to VBR MP3.
func AudioCommand(ffmpeg, in, out string) Command {
	return Command{
		Name: ffmpeg,
		Args: []string{"-hide_banner", "-y", "-i", in, "-acodec", "libmp3lame", "-q:a", "3", "-vn", out},
	}
}

// CutCommand stream-copies the span that starts at start and lasts length.
func CutCommand(ffmpeg, in, out, start, length string) Command {
	return Command{
		Name: ffmpeg,
		Args: []string{"-hide_banner", "-y", "-ss", start, "-i", in, "-c", "copy", "-t", length, out},
	}
}

// MuxCommand combines a video and an audio stream without re-encoding.
func MuxCommand(ffmpeg, video, audio, out string) Command {
	return Command{
		Name: ffmpeg,
		Args: []string{"-hide_banner", "-y", "-i", video, "-i", audio, "-c", "copy", out},
	}
}
