// Package bsptest builds synthetic BSP files for tests.
package bsptest

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

type rawNode struct {
	Plane, Front, Back int32
	Mins, Maxs         [3]int32
}

type rawLeaf struct {
	Cluster, Area                                     int32
	Mins, Maxs                                        [3]int32
	LeafFace, NumLeafFaces, LeafBrush, NumLeafBrushes int32
}

type rawModel struct {
	Min, Max                          [3]float32
	Face, NumFaces, Brush, NumBrushes int32
}

type rawFace struct {
	TextureID, Effect, Type      int32
	Vertex, NumVertices          int32
	MeshVertex, NumMeshVertices  int32
	LightmapID                   int32
	LightmapCorner, LightmapSize [2]int32
	LightmapOrigin               [3]float32
	LightmapVecs                 [2][3]float32
	Normal                       [3]float32
	PatchSize                    [2]int32
}

type rawVertex struct {
	Position      [3]float32
	TexCoord      [2]float32
	LightmapCoord [2]float32
	Normal        [3]float32
	Color         [4]int8
}

type rawTexture struct {
	Name            [64]byte
	Flags, Contents int32
}

// File assembles a BSP file from raw lump contents.
// Lumps missing from the map are written as empty directory entries.
func File(variant *formats.BSPVariant, lumps map[formats.BSPLumpKind][]byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(variant.Magic)
	binary.Write(buf, binary.LittleEndian, variant.Version)

	dir := make([]formats.BSPLump, variant.NumLumps)
	body := new(bytes.Buffer)
	offset := uint32(variant.HeaderSize())
	for kind := formats.LumpEntities; kind <= formats.LumpVisData; kind++ {
		data, ok := lumps[kind]
		if !ok {
			continue
		}
		dir[variant.Slot(kind)] = formats.BSPLump{
			Offset: offset + uint32(body.Len()),
			Length: uint32(len(data)),
		}
		body.Write(data)
	}

	binary.Write(buf, binary.LittleEndian, dir)
	buf.Write(body.Bytes())
	return buf.Bytes()
}

// Encode serializes a decoded map back into the binary layout of variant.
func Encode(variant *formats.BSPVariant, b *formats.BSP) []byte {
	return File(variant, Lumps(b))
}

// Lumps encodes every lump of b.
func Lumps(b *formats.BSP) map[formats.BSPLumpKind][]byte {
	return map[formats.BSPLumpKind][]byte{
		formats.LumpEntities:  EntityText(b.Entities),
		formats.LumpTextures:  Textures(b.Textures),
		formats.LumpPlanes:    Planes(b.Planes),
		formats.LumpNodes:     Nodes(b.Nodes),
		formats.LumpLeafs:     Leafs(b.Leafs),
		formats.LumpLeafFaces: Int32s(b.LeafFaces),
		formats.LumpModels:    Models(b.Models),
		formats.LumpVertices:  Vertices(b.Vertices),
		formats.LumpMeshVerts: Int32s(b.MeshVerts),
		formats.LumpFaces:     Faces(b.Faces),
		formats.LumpLightmaps: Lightmaps(b.Lightmaps),
		formats.LumpVisData:   VisData(b.VisData),
	}
}

func write(data any) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, data)
	return buf.Bytes()
}

// EncodeChild converts a child reference to the on-disk signed form.
func EncodeChild(c formats.BSPChild) int32 {
	if c.Leaf {
		return -(c.Index + 1)
	}
	return c.Index
}

// EncodeColorChannel is the inverse of formats.DecodeColorChannel for
// values that are multiples of 1/255.
func EncodeColorChannel(v float32) int8 {
	n := int32(v*255 + 0.5)
	if n <= 127 {
		return int8(n)
	}
	return int8(-(n - 127))
}

// Planes encodes the plane lump.
func Planes(planes []formats.BSPPlane) []byte {
	raw := make([][4]float32, len(planes))
	for i, p := range planes {
		raw[i] = [4]float32{p.Normal.X, p.Normal.Y, p.Normal.Z, p.Distance}
	}
	return write(raw)
}

// Nodes encodes the node lump.
func Nodes(nodes []formats.BSPNode) []byte {
	raw := make([]rawNode, len(nodes))
	for i, n := range nodes {
		raw[i] = rawNode{
			Plane: n.Plane,
			Front: EncodeChild(n.Front),
			Back:  EncodeChild(n.Back),
			Mins:  n.Mins,
			Maxs:  n.Maxs,
		}
	}
	return write(raw)
}

// Leafs encodes the leaf lump.
func Leafs(leafs []formats.BSPLeaf) []byte {
	raw := make([]rawLeaf, len(leafs))
	for i, l := range leafs {
		raw[i] = rawLeaf{
			Cluster:        l.Cluster,
			Area:           l.Area,
			Mins:           l.Mins,
			Maxs:           l.Maxs,
			LeafFace:       l.LeafFace,
			NumLeafFaces:   l.NumLeafFaces,
			LeafBrush:      l.LeafBrush,
			NumLeafBrushes: l.NumLeafBrushes,
		}
	}
	return write(raw)
}

// Int32s encodes a flat index lump.
func Int32s(v []int32) []byte {
	return write(v)
}

// Models encodes the model lump.
func Models(models []formats.BSPModel) []byte {
	raw := make([]rawModel, len(models))
	for i, m := range models {
		raw[i] = rawModel{
			Min:        m.Min.Array(),
			Max:        m.Max.Array(),
			Face:       m.Face,
			NumFaces:   m.NumFaces,
			Brush:      m.Brush,
			NumBrushes: m.NumBrushes,
		}
	}
	return write(raw)
}

// Vertices encodes the vertex lump.
func Vertices(vertices []formats.BSPVertex) []byte {
	raw := make([]rawVertex, len(vertices))
	for i, v := range vertices {
		raw[i] = rawVertex{
			Position:      v.Position.Array(),
			TexCoord:      [2]float32{v.TexCoord.X, v.TexCoord.Y},
			LightmapCoord: [2]float32{v.LightmapCoord.X, v.LightmapCoord.Y},
			Normal:        v.Normal.Array(),
			Color: [4]int8{
				EncodeColorChannel(v.Color.X),
				EncodeColorChannel(v.Color.Y),
				EncodeColorChannel(v.Color.Z),
				EncodeColorChannel(v.Color.W),
			},
		}
	}
	return write(raw)
}

// Faces encodes the face lump.
func Faces(faces []formats.BSPFace) []byte {
	raw := make([]rawFace, len(faces))
	for i, f := range faces {
		raw[i] = rawFace{
			TextureID:       f.TextureID,
			Effect:          f.Effect,
			Type:            int32(f.Type),
			Vertex:          f.Vertex,
			NumVertices:     f.NumVertices,
			MeshVertex:      f.MeshVertex,
			NumMeshVertices: f.NumMeshVertices,
			LightmapID:      f.LightmapID,
			LightmapCorner:  f.LightmapCorner,
			LightmapSize:    f.LightmapSize,
			LightmapOrigin:  f.LightmapOrigin.Array(),
			LightmapVecs:    [2][3]float32{f.LightmapVecs[0].Array(), f.LightmapVecs[1].Array()},
			Normal:          f.Normal.Array(),
			PatchSize:       f.PatchSize,
		}
	}
	return write(raw)
}

// Textures encodes the texture lump with NUL-padded 64-byte names.
func Textures(textures []formats.BSPTexture) []byte {
	raw := make([]rawTexture, len(textures))
	for i, t := range textures {
		copy(raw[i].Name[:], t.Name)
		raw[i].Flags = t.Flags
		raw[i].Contents = t.Contents
	}
	return write(raw)
}

// Lightmaps encodes the lightmap lump.
func Lightmaps(lightmaps []formats.BSPLightmap) []byte {
	buf := new(bytes.Buffer)
	for i := range lightmaps {
		buf.Write(lightmaps[i].Texels[:])
	}
	return buf.Bytes()
}

// VisData encodes the visibility lump; an absent PVS encodes as an empty lump.
func VisData(v formats.BSPVisData) []byte {
	if v.NumClusters == 0 && len(v.Bits) == 0 {
		return nil
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, v.NumClusters)
	binary.Write(buf, binary.LittleEndian, v.BytesPerCluster)
	buf.Write(v.Bits)
	return buf.Bytes()
}

// EntityText renders entities in the lump's text form, NUL terminated.
func EntityText(entities []formats.BSPEntity) []byte {
	if len(entities) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, e := range entities {
		sb.WriteString("{\n")
		for _, f := range e.Fields {
			sb.WriteString(`"` + f.Key + `" "` + f.Value + "\"\n")
		}
		sb.WriteString("}\n")
	}
	sb.WriteByte(0)
	return []byte(sb.String())
}

// Triangle returns three vertices forming a triangle in the plane z = 0,
// offset along x.
func Triangle(x float32) []formats.BSPVertex {
	white := math.Vec4{X: 1, Y: 1, Z: 1, W: 1}
	up := math.Vec3{Z: 1}
	return []formats.BSPVertex{
		{Position: math.Vec3{X: x, Y: 0}, TexCoord: math.Vec2{X: 0, Y: 0}, Normal: up, Color: white},
		{Position: math.Vec3{X: x + 64, Y: 0}, TexCoord: math.Vec2{X: 1, Y: 0}, Normal: up, Color: white},
		{Position: math.Vec3{X: x, Y: 64}, TexCoord: math.Vec2{X: 0, Y: 1}, Normal: up, Color: white},
	}
}
