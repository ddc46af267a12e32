package codec

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"

	"squeeze/internal/logging"
)

// readOrientation returns the EXIF Orientation of IFD0, or 1 when the file
// has no usable EXIF block.
func readOrientation(data []byte) int {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if !errors.Is(err, exif.ErrNoExif) {
			logging.Debug("exif: %v", err)
		}
		return 1
	}

	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		logging.Debug("exif: %v", err)
		return 1
	}

	fallback := 1
	for _, tag := range tags {
		if tag.TagName != "Orientation" {
			continue
		}
		value, ok := orientationValue(tag.Value, tag.Formatted)
		if !ok {
			continue
		}
		if tag.IfdPath == "IFD" {
			return value
		}
		fallback = value
	}
	return fallback
}

func orientationValue(raw interface{}, formatted string) (int, bool) {
	switch v := raw.(type) {
	case []uint16:
		if len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0]), true
		}
	case uint16:
		if v >= 1 && v <= 8 {
			return int(v), true
		}
	}

	formatted = strings.Trim(strings.TrimSpace(formatted), "[]")
	if fields := strings.Fields(formatted); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n >= 1 && n <= 8 {
			return n, true
		}
	}
	return 0, false
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// OrientationName describes an EXIF orientation for display.
func OrientationName(orientation int) string {
	switch orientation {
	case 1:
		return "normal"
	case 2:
		return "mirrored"
	case 3:
		return "rotated 180"
	case 4:
		return "flipped"
	case 5:
		return "transposed"
	case 6:
		return "rotated 90 cw"
	case 7:
		return "transversed"
	case 8:
		return "rotated 90 ccw"
	default:
		return fmt.Sprintf("orientation %d", orientation)
	}
}
