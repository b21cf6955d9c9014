package mesh

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/csbsp/pkg/bsp"
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/lightmap"
	"github.com/Faultbox/csbsp/pkg/math"
	"github.com/Faultbox/csbsp/pkg/patch"
)

// DefaultWorldScale converts map units to output units.
const DefaultWorldScale = 0.03

// Options controls conversion.
type Options struct {
	WorldScale      float32 // 0 means DefaultWorldScale
	KeepCoordinates bool    // keep Z-up map coordinates unscaled
	PatchLevel      int     // 0 means patch.DefaultLevel
	Atlas           *lightmap.Atlas
}

// DefaultOptions returns the standard conversion options.
func DefaultOptions() Options {
	return Options{WorldScale: DefaultWorldScale, PatchLevel: patch.DefaultLevel}
}

// Transform returns the matrix taking Z-up map coordinates to scaled Y-up
// output coordinates: (x, y, z) -> (x, z, -y) * scale.
func (o Options) Transform() mgl32.Mat4 {
	if o.KeepCoordinates {
		return mgl32.Ident4()
	}
	scale := o.WorldScale
	if scale == 0 {
		scale = DefaultWorldScale
	}
	swizzle := mgl32.Mat4{
		1, 0, 0, 0,
		0, 0, -1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}
	return mgl32.Scale3D(scale, scale, scale).Mul4(swizzle)
}

// ToMapSpace converts an output-space point back to map coordinates,
// for example a camera position to feed the culler.
func (o Options) ToMapSpace(p mgl32.Vec3) math.Vec3 {
	v := mgl32.TransformCoordinate(p, o.Transform().Inv())
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// Build converts every drawable face of b.
// Polygons and meshes use the mesh-vertex lists; patches are tessellated.
func Build(b *formats.BSP, opts Options) (*World, error) {
	level := opts.PatchLevel
	if level == 0 {
		level = patch.DefaultLevel
	}
	c := converter{
		bsp:       b,
		opts:      opts,
		transform: opts.Transform(),
	}

	w := &World{
		Faces: make([]*FaceMesh, len(b.Faces)),
		Bounds: Bounds{
			Min: [3]float32{1e10, 1e10, 1e10},
			Max: [3]float32{-1e10, -1e10, -1e10},
		},
	}
	groups := make(map[int32][]int)

	for i := range b.Faces {
		f := &b.Faces[i]
		if f.TextureID < 0 {
			w.Stats.Skipped++
			continue
		}

		var m *FaceMesh
		switch f.Type {
		case formats.FacePolygon, formats.FaceMesh:
			m = c.indexed(i)
		case formats.FacePatch:
			s, err := patch.TessellateFace(b, i, level)
			if err != nil {
				return nil, fmt.Errorf("converting face %d: %w", i, err)
			}
			m = c.surface(i, s)
			w.Stats.Patches++
		default:
			w.Stats.Skipped++
			continue
		}

		w.Faces[i] = m
		w.Stats.Triangles += m.NumTriangles()
		groups[f.TextureID] = append(groups[f.TextureID], i)
		for _, v := range m.Vertices {
			updateBounds(&w.Bounds, v.Position)
		}
	}

	if w.Stats.Triangles == 0 {
		w.Bounds = Bounds{}
	}

	ids := make([]int32, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		w.Groups = append(w.Groups, TextureGroup{
			TextureID: id,
			Texture:   b.TextureName(id),
			Faces:     groups[id],
		})
	}
	return w, nil
}

// Visible returns the meshes of the faces in set, in face order.
func (w *World) Visible(set *bsp.VisibleFaceSet) []*FaceMesh {
	var out []*FaceMesh
	for i, m := range w.Faces {
		if m != nil && set.Contains(i) {
			out = append(out, m)
		}
	}
	return out
}

type converter struct {
	bsp       *formats.BSP
	opts      Options
	transform mgl32.Mat4
}

func (c *converter) newFaceMesh(i int) *FaceMesh {
	f := &c.bsp.Faces[i]
	return &FaceMesh{
		Face:       i,
		Type:       f.Type,
		TextureID:  f.TextureID,
		LightmapID: f.LightmapID,
		Texture:    c.bsp.TextureName(f.TextureID),
	}
}

// indexed converts a polygon or mesh face; mesh-vertex offsets are already
// relative to the face's first vertex.
func (c *converter) indexed(i int) *FaceMesh {
	m := c.newFaceMesh(i)
	src := c.bsp.FaceVertices(i)
	m.Vertices = make([]Vertex, len(src))
	for j := range src {
		m.Vertices[j] = c.vertex(&src[j], m.LightmapID)
	}

	offsets := c.bsp.FaceMeshVertices(i)
	m.Indices = make([]uint32, len(offsets)/3*3)
	for j := range m.Indices {
		m.Indices[j] = uint32(offsets[j])
	}
	return m
}

func (c *converter) surface(i int, s *patch.Surface) *FaceMesh {
	m := c.newFaceMesh(i)
	m.Vertices = make([]Vertex, len(s.Vertices))
	for j := range s.Vertices {
		m.Vertices[j] = c.vertex(&s.Vertices[j], m.LightmapID)
	}
	m.Indices = s.Indices
	return m
}

func (c *converter) vertex(v *formats.BSPVertex, lightmapID int32) Vertex {
	p := mgl32.TransformCoordinate(mgl32.Vec3(v.Position.Array()), c.transform)
	n := mgl32.TransformNormal(mgl32.Vec3(v.Normal.Array()), c.transform)
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}

	lm := v.LightmapCoord
	if c.opts.Atlas != nil {
		lm = c.opts.Atlas.UV(lightmapID, lm)
	}

	return Vertex{
		Position:   p,
		Normal:     n,
		TexCoord:   [2]float32{v.TexCoord.X, v.TexCoord.Y},
		LightmapUV: [2]float32{lm.X, lm.Y},
		Color:      v.Color.Array(),
	}
}

func updateBounds(b *Bounds, p [3]float32) {
	for k := 0; k < 3; k++ {
		b.Min[k] = min(b.Min[k], p[k])
		b.Max[k] = max(b.Max[k], p[k])
	}
}
