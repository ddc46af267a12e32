package cmd

import (
	"github.com/spf13/cobra"

	"squeeze/internal/config"
	"squeeze/internal/processor"
)

var (
	pictureTarget        float64
	pictureStrategy      string
	pictureFormat        string
	pictureEngine        string
	pictureRatio         float64
	pictureMaxIterations int
	pictureMinDimension  int
	pictureBestEffort    bool
	pictureResume        bool
)

var pictureCmd = &cobra.Command{
	Use:     "picture",
	Aliases: []string{"pp"},
	Short:   "Re-encode pictures to fit under a size budget",
	Long: `Re-encode every picture in the input folder so it fits under --target MB.

Pictures already within the budget are copied unchanged. Others are searched
with real trial encodes: "downscale" shrinks the resolution at fixed quality,
"quality" lowers quality first and only then trades resolution.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), pictureConfig(processor.OpPicture))
	},
}

func pictureConfig(op processor.Operation) config.Config {
	cfg := baseConfig(op)
	cfg.TargetMB = pictureTarget
	cfg.Strategy = pictureStrategy
	cfg.Format = pictureFormat
	cfg.Engine = pictureEngine
	cfg.Ratio = pictureRatio
	cfg.MaxIterations = pictureMaxIterations
	cfg.MinDimension = pictureMinDimension
	cfg.BestEffort = pictureBestEffort
	cfg.Resume = pictureResume
	return cfg
}

// addSearchFlags registers the flags shared by picture and inspect.
func addSearchFlags(cmd *cobra.Command) {
	defaults := config.Default(processor.OpPicture)
	flags := cmd.Flags()
	flags.Float64VarP(&pictureTarget, "target", "t", 0, "size budget per picture in MB (required)")
	flags.StringVar(&pictureStrategy, "strategy", defaults.Strategy, "search strategy: downscale or quality")
	flags.StringVar(&pictureFormat, "format", defaults.Format, "output format: jpeg, png or webp")
	flags.StringVar(&pictureEngine, "engine", defaults.Engine, "encoder: imaging or vips (vips adds webp)")
	flags.Float64Var(&pictureRatio, "ratio", defaults.Ratio, "downscale divisor per step")
	flags.IntVar(&pictureMaxIterations, "max-iterations", defaults.MaxIterations, "trial encodes allowed per picture")
	flags.IntVar(&pictureMinDimension, "min-dimension", defaults.MinDimension, "never scale either side below this many pixels")
	_ = cmd.MarkFlagRequired("target")
}

func init() {
	addSearchFlags(pictureCmd)
	pictureCmd.Flags().BoolVar(&pictureBestEffort, "best-effort", false, "write the smallest trial even when it is over budget")
	pictureCmd.Flags().BoolVar(&pictureResume, "resume", false, "skip pictures the journal already converted with the same settings")

	rootCmd.AddCommand(pictureCmd)
}
