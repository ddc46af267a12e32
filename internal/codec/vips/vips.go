// Package vips is a libvips-backed codec.Prober. It decodes from the
// source's original bytes on every probe, so no probe sees the output of
// another, and it adds WebP output.
package vips

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"squeeze/internal/codec"
	"squeeze/internal/logging"
)

var (
	startOnce sync.Once
	stopOnce  sync.Once
)

// Startup initializes libvips once per process, routing its log output into
// the diagnostic logger. concurrency bounds libvips' own thread pool; the
// batch already runs one probe per worker.
func Startup(concurrency int) {
	startOnce.Do(func() {
		vips.LoggingSettings(logHandler, vipsLevel(logging.GetLevel()))
		vips.Startup(&vips.Config{
			ConcurrencyLevel: concurrency,
			MaxCacheMem:      50 * 1024 * 1024,
			MaxCacheSize:     100,
		})
		logging.Info("libvips initialized (version: %s)", vips.Version)
	})
}

// Shutdown releases libvips.
func Shutdown() {
	stopOnce.Do(vips.Shutdown)
}

func vipsLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	default:
		return vips.LogLevelError
	}
}

func logHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// Prober encodes with libvips. Call Startup before the first Probe.
type Prober struct {
	MinDimension int
}

func (p Prober) Probe(src *codec.SourceImage, cfg codec.EncodeConfig) (codec.Trial, error) {
	if err := cfg.Validate(); err != nil {
		return codec.Trial{}, err
	}

	ref, err := vips.NewImageFromBuffer(src.Data)
	if err != nil {
		return codec.Trial{}, fmt.Errorf("%w: %s: %v", codec.ErrDecode, src.Name, err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return codec.Trial{}, fmt.Errorf("vips rotate: %w", err)
	}

	w, h := codec.ScaledSize(ref.Width(), ref.Height(), cfg.Scale, p.MinDimension)
	if w != ref.Width() || h != ref.Height() {
		hScale := float64(w) / float64(ref.Width())
		vScale := float64(h) / float64(ref.Height())
		if err := ref.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
			return codec.Trial{}, fmt.Errorf("vips resize: %w", err)
		}
	}

	if ref.HasAlpha() && !cfg.Format.SupportsAlpha() {
		if err := ref.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return codec.Trial{}, fmt.Errorf("vips flatten: %w", err)
		}
	}

	var data []byte
	switch cfg.Format {
	case codec.FormatJPEG:
		data, _, err = ref.ExportJpeg(&vips.JpegExportParams{
			Quality:        cfg.Quality,
			StripMetadata:  true,
			OptimizeCoding: true,
		})
	case codec.FormatPNG:
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		data, _, err = ref.ExportPng(params)
	case codec.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = cfg.Quality
		params.StripMetadata = true
		data, _, err = ref.ExportWebp(params)
	default:
		return codec.Trial{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedFormat, cfg.Format)
	}
	if err != nil {
		return codec.Trial{}, fmt.Errorf("vips encode %s: %w", cfg, err)
	}

	return codec.Trial{
		Config: cfg,
		Width:  ref.Width(),
		Height: ref.Height(),
		Data:   data,
		Size:   int64(len(data)),
	}, nil
}
