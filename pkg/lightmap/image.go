package lightmap

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/draw"

	"github.com/Faultbox/csbsp/pkg/formats"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format is an image export format.
type Format string

// Export formats.
const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatTGA  Format = "tga"
)

// FormatFromPath picks the export format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))); f {
	case FormatPNG, FormatWebP, FormatTGA:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ToImage converts a lightmap block to an opaque RGBA image.
func ToImage(lm *formats.BSPLightmap) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, formats.LightmapSize, formats.LightmapSize))
	for i := 0; i < formats.LightmapSize*formats.LightmapSize; i++ {
		img.Pix[i*4] = lm.Texels[i*3]
		img.Pix[i*4+1] = lm.Texels[i*3+1]
		img.Pix[i*4+2] = lm.Texels[i*3+2]
		img.Pix[i*4+3] = 255
	}
	return img
}

// Scale resizes img by an integer factor with Catmull-Rom filtering.
func Scale(img image.Image, factor int) *image.RGBA {
	if factor < 1 {
		factor = 1
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatWebP:
		return nativewebp.Encode(w, img, nil)
	case FormatTGA:
		return tga.Encode(w, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
