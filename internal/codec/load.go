package codec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"squeeze/internal/logging"
	"squeeze/pkg/imgutil"
)

// Load reads and decodes the picture at path.
func Load(path string) (*SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Decode(filepath.Base(path), data)
}

// Decode builds a SourceImage from file bytes. EXIF orientation is applied
// so the search works on the picture as it is meant to be viewed.
func Decode(name string, data []byte) (*SourceImage, error) {
	kind, err := imgutil.SniffBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if kind == imgutil.KindUnknown {
		return nil, fmt.Errorf("%w: %s: not a recognized image", ErrDecode, name)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	orientation := 1
	if kind.CarriesExif() {
		orientation = readOrientation(data)
	}
	img = applyOrientation(img, orientation)

	bounds := img.Bounds()
	logging.Debug("decoded %s: %s %dx%d orientation=%d", name, kind, bounds.Dx(), bounds.Dy(), orientation)

	return &SourceImage{
		Name:        name,
		Kind:        kind,
		Data:        data,
		Pixels:      img,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Size:        int64(len(data)),
		Orientation: orientation,
	}, nil
}
