package cmd

import (
	"github.com/spf13/cobra"

	"squeeze/internal/config"
	"squeeze/internal/processor"
)

var (
	mediaFFmpeg    string
	mediaHandBrake string
	cutStart       string
	cutEnd         string
)

var videoCmd = &cobra.Command{
	Use:     "video",
	Aliases: []string{"vv"},
	Short:   "Re-encode videos to 720p MP4 with HandBrakeCLI",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), mediaConfig(processor.OpVideo))
	},
}

var audioCmd = &cobra.Command{
	Use:     "audio",
	Aliases: []string{"ava"},
	Short:   "Extract the audio of media files to MP3 with ffmpeg",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), mediaConfig(processor.OpAudio))
	},
}

var cutCmd = &cobra.Command{
	Use:     "cut",
	Aliases: []string{"ava_cut"},
	Short:   "Trim every media file to the same span without re-encoding",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), mediaConfig(processor.OpCut))
	},
}

var muxCmd = &cobra.Command{
	Use:     "mux",
	Aliases: []string{"ava_mux", "join"},
	Short:   "Join video and audio files that share a name into MKV",
	Long: `Join each video (.webm, else .mp4) with the .m4a audio of the same name.

Every name must have both halves; otherwise nothing is run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), mediaConfig(processor.OpMux))
	},
}

func mediaConfig(op processor.Operation) config.Config {
	cfg := baseConfig(op)
	if mediaFFmpeg != "" {
		cfg.FFmpeg = mediaFFmpeg
	}
	if mediaHandBrake != "" {
		cfg.HandBrake = mediaHandBrake
	}
	cfg.CutStart = cutStart
	cfg.CutEnd = cutEnd
	return cfg
}

func init() {
	videoCmd.Flags().StringVar(&mediaHandBrake, "handbrake", "", "HandBrakeCLI binary (default: from PATH)")
	for _, c := range []*cobra.Command{audioCmd, cutCmd, muxCmd} {
		c.Flags().StringVar(&mediaFFmpeg, "ffmpeg", "", "ffmpeg binary (default: from PATH)")
	}
	cutCmd.Flags().StringVar(&cutStart, "start", "", "start position passed to ffmpeg -ss, e.g. 00:00:05")
	cutCmd.Flags().StringVar(&cutEnd, "end", "", "duration passed to ffmpeg -t, e.g. 00:01:00")
	_ = cutCmd.MarkFlagRequired("start")
	_ = cutCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(videoCmd, audioCmd, cutCmd, muxCmd)
}
