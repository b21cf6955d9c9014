// Package mesh converts BSP faces into indexed triangle buffers for a renderer.
package mesh

import "github.com/Faultbox/csbsp/pkg/formats"

// Vertex is an output vertex with all attributes.
type Vertex struct {
	Position   [3]float32
	Normal     [3]float32
	TexCoord   [2]float32
	LightmapUV [2]float32
	Color      [4]float32
}

// FaceMesh is the triangle list of one BSP face.
// Indices are relative to Vertices.
type FaceMesh struct {
	Face       int
	Type       formats.BSPFaceType
	TextureID  int32
	LightmapID int32
	Texture    string
	Vertices   []Vertex
	Indices    []uint32
}

// NumTriangles returns the triangle count.
func (m *FaceMesh) NumTriangles() int {
	return len(m.Indices) / 3
}

// TextureGroup lists the faces sharing a texture, for batched rendering.
type TextureGroup struct {
	TextureID int32
	Texture   string
	Faces     []int
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Stats summarizes a conversion.
type Stats struct {
	Triangles int
	Patches   int
	Skipped   int // billboards, untextured and unknown faces
}

// World holds the converted faces of a map.
// Faces[i] is the mesh of BSP face i, or nil when the face is not drawable.
type World struct {
	Faces  []*FaceMesh
	Groups []TextureGroup
	Bounds Bounds
	Stats  Stats
}
