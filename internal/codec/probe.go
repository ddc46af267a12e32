package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// ImagingProber is the pure-Go Prober. It writes JPEG and PNG.
type ImagingProber struct {
	// MinDimension floors the output width and height.
	MinDimension int
}

func (p ImagingProber) Probe(src *SourceImage, cfg EncodeConfig) (Trial, error) {
	if err := cfg.Validate(); err != nil {
		return Trial{}, err
	}

	var opts []imaging.EncodeOption
	var format imaging.Format
	switch cfg.Format {
	case FormatJPEG:
		format = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(cfg.Quality))
	case FormatPNG:
		format = imaging.PNG
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return Trial{}, fmt.Errorf("%w: %s needs the vips engine", ErrUnsupportedFormat, cfg.Format)
	}

	w, h := ScaledSize(src.Width, src.Height, cfg.Scale, p.MinDimension)
	img := src.Pixels
	if w != src.Width || h != src.Height {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	img = normalizeAlpha(img, cfg.Format)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return Trial{}, fmt.Errorf("encode %s: %w", cfg, err)
	}

	return Trial{
		Config: cfg,
		Width:  w,
		Height: h,
		Data:   buf.Bytes(),
		Size:   int64(buf.Len()),
	}, nil
}

// normalizeAlpha keeps transparency only for formats that can store it and
// flattens everything else onto white.
func normalizeAlpha(img image.Image, format Format) image.Image {
	if isOpaque(img) {
		return img
	}
	if format.SupportsAlpha() {
		return img
	}
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
