package lightmap

import (
	"errors"
	"fmt"
	"image"

	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

// MaxAtlasSize is the largest atlas edge in pixels.
const MaxAtlasSize = 4096

// ErrAtlasFull is returned when the lightmaps do not fit in MaxAtlasSize.
var ErrAtlasFull = errors.New("lightmap atlas full")

// Atlas packs every lightmap of a map into one square texture.
// The tile after the last lightmap is white and serves faces without a lightmap.
type Atlas struct {
	Image       *image.RGBA
	TilesPerRow int
	Count       int // lightmaps packed, not counting the white tile
}

// BuildAtlas packs lightmaps row by row after applying gamma.
// A gamma of 1 leaves texels unchanged.
func BuildAtlas(lightmaps []formats.BSPLightmap, gamma float64) (*Atlas, error) {
	tilesPerRow, size := layout(len(lightmaps))
	if size > MaxAtlasSize {
		return nil, fmt.Errorf("%w: %d lightmaps need %dpx", ErrAtlasFull, len(lightmaps), size)
	}

	a := &Atlas{
		Image:       image.NewRGBA(image.Rect(0, 0, size, size)),
		TilesPerRow: tilesPerRow,
		Count:       len(lightmaps),
	}
	for i := range a.Image.Pix {
		a.Image.Pix[i] = 255
	}

	table := GammaTable(gamma)
	for i := range lightmaps {
		baseX, baseY := a.tileOrigin(i)
		texels := &lightmaps[i].Texels
		for y := 0; y < formats.LightmapSize; y++ {
			for x := 0; x < formats.LightmapSize; x++ {
				src := (y*formats.LightmapSize + x) * 3
				dst := a.Image.PixOffset(baseX+x, baseY+y)
				a.Image.Pix[dst] = table[texels[src]]
				a.Image.Pix[dst+1] = table[texels[src+1]]
				a.Image.Pix[dst+2] = table[texels[src+2]]
			}
		}
	}
	return a, nil
}

// layout returns the tiles per row and edge size needed for n lightmaps plus the white tile.
func layout(n int) (int, int) {
	tilesPerRow := 1
	for tilesPerRow*tilesPerRow < n+1 {
		tilesPerRow *= 2
	}
	return tilesPerRow, tilesPerRow * formats.LightmapSize
}

func (a *Atlas) tileOrigin(i int) (int, int) {
	return i % a.TilesPerRow * formats.LightmapSize, i / a.TilesPerRow * formats.LightmapSize
}

// UV maps a face's lightmap coordinate into atlas space.
// Coordinates are clamped half a texel inside the tile to avoid bleeding.
// Negative ids sample the white tile.
func (a *Atlas) UV(id int32, uv math.Vec2) math.Vec2 {
	tile := int(id)
	if id < 0 || tile >= a.Count {
		tile = a.Count
		uv = math.Vec2{X: 0.5, Y: 0.5}
	}

	size := float32(a.Image.Bounds().Dx())
	baseX, baseY := a.tileOrigin(tile)
	half := 0.5 / size
	tileSpan := float32(formats.LightmapSize) / size

	u := float32(baseX)/size + clamp(uv.X, 0, 1)*tileSpan
	v := float32(baseY)/size + clamp(uv.Y, 0, 1)*tileSpan
	return math.Vec2{
		X: clamp(u, float32(baseX)/size+half, float32(baseX)/size+tileSpan-half),
		Y: clamp(v, float32(baseY)/size+half, float32(baseY)/size+tileSpan-half),
	}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
