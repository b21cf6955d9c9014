// Package patch tessellates biquadratic bezier patches into triangle meshes.
package patch

import (
	"errors"
	"fmt"

	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

// ErrInvalidPatch is returned for control grids that cannot be tessellated.
var ErrInvalidPatch = errors.New("invalid patch")

// DefaultLevel is the subdivision level used when none is configured.
const DefaultLevel = 5

// Surface is a tessellated patch.
// Each 3x3 sub-patch owns (Level+1)^2 vertices laid out row by row.
type Surface struct {
	Vertices []formats.BSPVertex
	Indices  []uint32
	Width    int // control points per row
	Height   int // control point rows
	Level    int
}

// NumSubPatches returns the number of 3x3 sub-patches in the grid.
func (s *Surface) NumSubPatches() int {
	return (s.Width - 1) / 2 * ((s.Height - 1) / 2)
}

// NumTriangles returns the number of triangles in the surface.
func (s *Surface) NumTriangles() int {
	return len(s.Indices) / 3
}

// Tessellate evaluates a width x height control grid at the given level.
// Width and height must be odd and at least 3; control is row-major.
func Tessellate(control []formats.BSPVertex, width, height, level int) (*Surface, error) {
	if width < 3 || height < 3 || width%2 == 0 || height%2 == 0 {
		return nil, fmt.Errorf("%w: %dx%d control grid", ErrInvalidPatch, width, height)
	}
	if len(control) != width*height {
		return nil, fmt.Errorf("%w: %d control points for a %dx%d grid", ErrInvalidPatch, len(control), width, height)
	}
	if level < 1 {
		return nil, fmt.Errorf("%w: level %d", ErrInvalidPatch, level)
	}

	s := &Surface{Width: width, Height: height, Level: level}
	patchesX := (width - 1) / 2
	patchesY := (height - 1) / 2
	perPatch := (level + 1) * (level + 1)
	s.Vertices = make([]formats.BSPVertex, 0, patchesX*patchesY*perPatch)
	s.Indices = make([]uint32, 0, patchesX*patchesY*level*level*6)

	var grid [3][3]*formats.BSPVertex
	for py := 0; py < patchesY; py++ {
		for px := 0; px < patchesX; px++ {
			for r := 0; r < 3; r++ {
				for k := 0; k < 3; k++ {
					grid[r][k] = &control[(2*py+r)*width+2*px+k]
				}
			}
			s.appendSubPatch(&grid)
		}
	}
	return s, nil
}

// appendSubPatch evaluates one 3x3 sub-patch and appends its grid of triangles.
func (s *Surface) appendSubPatch(grid *[3][3]*formats.BSPVertex) {
	l := s.Level
	base := uint32(len(s.Vertices))

	for j := 0; j <= l; j++ {
		bv := bernstein(float32(j) / float32(l))
		for i := 0; i <= l; i++ {
			bu := bernstein(float32(i) / float32(l))

			var v formats.BSPVertex
			for r := 0; r < 3; r++ {
				for k := 0; k < 3; k++ {
					w := bv[r] * bu[k]
					c := grid[r][k]
					v.Position = v.Position.Add(c.Position.Scale(w))
					v.TexCoord = v.TexCoord.Add(c.TexCoord.Scale(w))
					v.LightmapCoord = v.LightmapCoord.Add(c.LightmapCoord.Scale(w))
					v.Normal = v.Normal.Add(c.Normal.Scale(w))
					v.Color = v.Color.Add(c.Color.Scale(w))
				}
			}
			v.Normal = v.Normal.Normalize()
			s.Vertices = append(s.Vertices, v)
		}
	}

	row := uint32(l + 1)
	for j := uint32(0); j < uint32(l); j++ {
		for i := uint32(0); i < uint32(l); i++ {
			a := base + j*row + i
			b := a + 1
			c := a + row
			d := c + 1
			s.Indices = append(s.Indices, a, b, c, b, d, c)
		}
	}
}

// bernstein returns the quadratic Bernstein weights at t.
func bernstein(t float32) [3]float32 {
	it := 1 - t
	return [3]float32{it * it, 2 * t * it, t * t}
}

// ControlPoints returns the control grid of a patch face.
func ControlPoints(b *formats.BSP, face int) ([]formats.BSPVertex, int, int) {
	f := &b.Faces[face]
	return b.FaceVertices(face), int(f.PatchSize[0]), int(f.PatchSize[1])
}

// TessellateFace tessellates patch face i of b.
func TessellateFace(b *formats.BSP, face, level int) (*Surface, error) {
	if t := b.Faces[face].Type; t != formats.FacePatch {
		return nil, fmt.Errorf("%w: face %d is a %s", ErrInvalidPatch, face, t)
	}
	control, w, h := ControlPoints(b, face)
	s, err := Tessellate(control, w, h, level)
	if err != nil {
		return nil, fmt.Errorf("face %d: %w", face, err)
	}
	return s, nil
}

// Corner returns the vertex at grid corner (u, v) of sub-patch p, with u and v in {0, 1}.
func (s *Surface) Corner(p, u, v int) math.Vec3 {
	l := s.Level
	perPatch := (l + 1) * (l + 1)
	return s.Vertices[p*perPatch+v*l*(l+1)+u*l].Position
}
