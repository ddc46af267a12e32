package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"squeeze/internal/config"
	"squeeze/internal/logging"
	"squeeze/internal/processor"
)

var (
	flagInput       string
	flagOutput      string
	flagWorkers     int
	flagPlain       bool
	flagJournal     string
	flagMetricsFile string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "squeeze",
	Short:         "squeeze - batch-convert the media in a folder",
	Long:          "squeeze converts every picture, video or audio file in an input folder, fitting pictures under a size budget with as few trial encodes as possible.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logging.SetLevel(logging.LevelDebug)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagInput, "input", "i", config.DefaultInputDir, "folder holding the files to convert")
	flags.StringVarP(&flagOutput, "output", "o", config.DefaultOutputDir, "folder receiving the converted files")
	flags.IntVarP(&flagWorkers, "workers", "w", 0, "parallel jobs (default: cores-1, or $SQUEEZE_WORKERS)")
	flags.BoolVar(&flagPlain, "plain", false, "print one line per file instead of the live progress view")
	flags.StringVar(&flagJournal, "journal", "", "SQLite file recording every run")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "log every trial encode to stderr")
	flags.StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when the batch ends")
}

// baseConfig applies the shared flags to the defaults for op.
func baseConfig(op processor.Operation) config.Config {
	cfg := config.Default(op)
	cfg.InputDir = flagInput
	cfg.OutputDir = flagOutput
	cfg.Workers = flagWorkers
	cfg.Plain = flagPlain
	cfg.JournalPath = flagJournal
	cfg.MetricsFile = flagMetricsFile
	return cfg
}
