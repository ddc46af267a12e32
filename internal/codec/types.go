// Package codec measures the real encoded size of an image under a given
// resolution scale, quality and output format. Every probe works from the
// immutable decoded source and encodes into memory only.
package codec

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"squeeze/pkg/imgutil"
)

const (
	MinQuality = 1
	MaxQuality = 100
)

var (
	// ErrDecode marks a source that could not be opened or decoded.
	ErrDecode = errors.New("decode failed")
	// ErrUnsupportedFormat is returned when a prober cannot produce the
	// requested output format.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Format is an output format tag.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatWebP
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the file extension written for this format, with the
// leading dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// SupportsAlpha reports whether the format can carry transparency.
func (f Format) SupportsAlpha() bool {
	return f == FormatPNG || f == FormatWebP
}

// HasQuality reports whether the encoder honours EncodeConfig.Quality.
// PNG is lossless, so only scale changes its size.
func (f Format) HasQuality() bool {
	return f == FormatJPEG || f == FormatWebP
}

// ParseFormat accepts the names used on the command line.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return FormatJPEG, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// EncodeConfig is one point in the search space.
type EncodeConfig struct {
	Scale   float64
	Quality int
	Format  Format
}

func (c EncodeConfig) Validate() error {
	if !(c.Scale > 0 && c.Scale <= 1) || math.IsNaN(c.Scale) {
		return fmt.Errorf("scale %v out of range (0, 1]", c.Scale)
	}
	if c.Quality < MinQuality || c.Quality > MaxQuality {
		return fmt.Errorf("quality %d out of range [%d, %d]", c.Quality, MinQuality, MaxQuality)
	}
	return nil
}

func (c EncodeConfig) String() string {
	return fmt.Sprintf("%s scale %.3f q%d", c.Format, c.Scale, c.Quality)
}

// SourceImage is a decoded picture plus the bytes it was decoded from.
// It is never modified after Decode returns.
type SourceImage struct {
	Name   string
	Kind   imgutil.Kind
	Data   []byte
	Pixels image.Image
	Width  int
	Height int
	Size   int64
	// Orientation is the EXIF orientation already applied to Pixels.
	Orientation int
}

// Trial is the outcome of probing one EncodeConfig.
type Trial struct {
	Config EncodeConfig
	Width  int
	Height int
	Data   []byte
	Size   int64
}

// Utilization is the share of the budget this trial consumes.
func (t Trial) Utilization(target int64) float64 {
	if target <= 0 {
		return 0
	}
	return float64(t.Size) / float64(target)
}

// Prober encodes a source under one configuration.
type Prober interface {
	Probe(src *SourceImage, cfg EncodeConfig) (Trial, error)
}

// ScaledSize returns the output dimensions for scale, never going below
// floor pixels on either axis unless the source itself is smaller.
func ScaledSize(width, height int, scale float64, floor int) (int, int) {
	if floor < 1 {
		floor = 1
	}
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return clampDim(w, width, floor), clampDim(h, height, floor)
}

func clampDim(v, orig, floor int) int {
	if floor > orig {
		floor = orig
	}
	if floor < 1 {
		floor = 1
	}
	if v < floor {
		return floor
	}
	if v > orig {
		return orig
	}
	return v
}
