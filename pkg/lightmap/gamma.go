// Package lightmap converts BSP lightmap blocks into images and atlases.
package lightmap

import (
	"math"

	"github.com/Faultbox/csbsp/pkg/formats"
)

// DefaultGamma brightens lightmaps the way the original hardware gamma ramp did.
const DefaultGamma = 1.2

// GammaTable returns the lookup table floor(255 * (i/255)^(1/factor) + 0.5).
func GammaTable(factor float64) [256]byte {
	var table [256]byte
	for i := range table {
		table[i] = byte(math.Floor(255*math.Pow(float64(i)/255, 1/factor) + 0.5))
	}
	return table
}

// ApplyGamma returns a gamma-corrected copy of lm.
func ApplyGamma(lm *formats.BSPLightmap, factor float64) formats.BSPLightmap {
	table := GammaTable(factor)
	var out formats.BSPLightmap
	for i, v := range lm.Texels {
		out.Texels[i] = table[v]
	}
	return out
}
