// Package formats provides parsers for Quake3-family BSP map files.
package formats

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/csbsp/pkg/math"
)

// BSP format errors.
var (
	ErrUnsupportedBSPVersion = errors.New("unsupported BSP version")
	ErrTruncatedBSPData      = errors.New("truncated BSP data")
	ErrMalformedBSPLump      = errors.New("malformed BSP lump")
	ErrBSPIndexOutOfRange    = errors.New("BSP index out of range")
)

// BSPFaceType is the kind of surface a face describes.
type BSPFaceType int32

// Face type constants.
const (
	FacePolygon   BSPFaceType = 1
	FacePatch     BSPFaceType = 2
	FaceMesh      BSPFaceType = 3
	FaceBillboard BSPFaceType = 4
)

// String returns a human-readable face type name.
func (t BSPFaceType) String() string {
	switch t {
	case FacePolygon:
		return "Polygon"
	case FacePatch:
		return "Patch"
	case FaceMesh:
		return "Mesh"
	case FaceBillboard:
		return "Billboard"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// BSPPlane is a splitting plane: dot(Normal, p) = Distance.
type BSPPlane struct {
	Normal   math.Vec3
	Distance float32
}

// BSPChild references either another node or a leaf.
// The file stores leaves as negative values -(leaf+1); the parser decodes that once.
type BSPChild struct {
	Leaf  bool
	Index int32
}

// decodeChild converts the on-disk signed child reference.
func decodeChild(v int32) BSPChild {
	if v < 0 {
		return BSPChild{Leaf: true, Index: -(v + 1)}
	}
	return BSPChild{Index: v}
}

// BSPNode is an interior node of the BSP tree.
type BSPNode struct {
	Plane int32
	Front BSPChild
	Back  BSPChild
	Mins  [3]int32
	Maxs  [3]int32
}

// BSPLeaf is a convex region of space at the bottom of the tree.
type BSPLeaf struct {
	Cluster        int32 // -1 = no visibility data (outside the world)
	Area           int32
	Mins           [3]int32
	Maxs           [3]int32
	LeafFace       int32 // first index into the leaf-face array
	NumLeafFaces   int32
	LeafBrush      int32
	NumLeafBrushes int32
}

// Contains reports whether p lies inside the leaf's bounding box.
func (l *BSPLeaf) Contains(p math.Vec3) bool {
	return p.X >= float32(l.Mins[0]) && p.X <= float32(l.Maxs[0]) &&
		p.Y >= float32(l.Mins[1]) && p.Y <= float32(l.Maxs[1]) &&
		p.Z >= float32(l.Mins[2]) && p.Z <= float32(l.Maxs[2])
}

// BSPModel is a brush model; model 0 is the world.
type BSPModel struct {
	Min        math.Vec3
	Max        math.Vec3
	Face       int32
	NumFaces   int32
	Brush      int32
	NumBrushes int32
}

// BSPFace is a renderable surface.
type BSPFace struct {
	TextureID       int32 // -1 = no texture
	Effect          int32
	Type            BSPFaceType
	Vertex          int32
	NumVertices     int32
	MeshVertex      int32
	NumMeshVertices int32
	LightmapID      int32 // negative = no lightmap
	LightmapCorner  [2]int32
	LightmapSize    [2]int32
	LightmapOrigin  math.Vec3
	LightmapVecs    [2]math.Vec3
	Normal          math.Vec3
	PatchSize       [2]int32 // control grid width and height for patches
}

// BSPVertex is a vertex shared by faces.
type BSPVertex struct {
	Position      math.Vec3
	TexCoord      math.Vec2
	LightmapCoord math.Vec2
	Normal        math.Vec3
	Color         math.Vec4 // RGBA in 0..1
}

// BSPTexture is one record of the texture lump.
type BSPTexture struct {
	Name     string
	Flags    int32
	Contents int32
}

// BSPLightmap is one 128x128 RGB lightmap block.
type BSPLightmap struct {
	Texels [lightmapStride]byte
}

// BSPVisData is the potentially visible set bit matrix.
// Bit (from, to) lives in byte from*BytesPerCluster + to/8, mask 1<<(to%8).
type BSPVisData struct {
	NumClusters     int32
	BytesPerCluster int32
	Bits            []byte
}

// BSP represents a parsed map.
type BSP struct {
	Variant   *BSPVariant
	Lumps     []BSPLump
	Entities  []BSPEntity
	Textures  []BSPTexture
	Planes    []BSPPlane
	Nodes     []BSPNode
	Leafs     []BSPLeaf
	LeafFaces []int32
	Models    []BSPModel
	Vertices  []BSPVertex
	MeshVerts []int32
	Faces     []BSPFace
	Lightmaps []BSPLightmap
	VisData   BSPVisData
}

// ParseBSP parses a BSP file from raw bytes.
// On any error no partially decoded map is returned.
func ParseBSP(data []byte) (*BSP, error) {
	variant, err := detectVariant(data)
	if err != nil {
		return nil, err
	}

	r := newRecordReader(data)
	lumps, err := readDirectory(r, variant)
	if err != nil {
		return nil, fmt.Errorf("reading lump directory: %w", err)
	}

	bsp := &BSP{
		Variant: variant,
		Lumps:   lumps,
	}
	lump := func(kind BSPLumpKind) BSPLump {
		return lumps[variant.Slot(kind)]
	}

	steps := []struct {
		kind  BSPLumpKind
		parse func(*recordReader, BSPLump) error
	}{
		{LumpEntities, bsp.parseEntities},
		{LumpTextures, bsp.parseTextures},
		{LumpPlanes, bsp.parsePlanes},
		{LumpNodes, bsp.parseNodes},
		{LumpLeafs, bsp.parseLeafs},
		{LumpLeafFaces, bsp.parseLeafFaces},
		{LumpModels, bsp.parseModels},
		{LumpVertices, bsp.parseVertices},
		{LumpMeshVerts, bsp.parseMeshVerts},
		{LumpFaces, bsp.parseFaces},
		{LumpLightmaps, bsp.parseLightmaps},
		{LumpVisData, bsp.parseVisData},
	}
	for _, step := range steps {
		if err := step.parse(r, lump(step.kind)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", step.kind, err)
		}
	}

	if err := bsp.validate(); err != nil {
		return nil, err
	}

	return bsp, nil
}

// ParseBSPFile parses a BSP file from disk.
func ParseBSPFile(path string) (*BSP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BSP file: %w", err)
	}
	return ParseBSP(data)
}

func (b *BSP) parseEntities(r *recordReader, lump BSPLump) error {
	if err := r.Seek(int(lump.Offset)); err != nil {
		return err
	}
	text, err := r.ReadBytes(int(lump.Length))
	if err != nil {
		return err
	}
	b.Entities = ParseBSPEntities(text)
	return nil
}

func (b *BSP) parseTextures(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpTextures, lump, textureStride)
	if err != nil {
		return err
	}

	b.Textures = make([]BSPTexture, num)
	for i := range b.Textures {
		name, err := r.ReadBytes(textureNameSize)
		if err != nil {
			return fmt.Errorf("reading texture %d name: %w", i, err)
		}
		tex := &b.Textures[i]
		tex.Name = readNullTerminated(name)
		if tex.Flags, err = r.ReadI32(); err != nil {
			return fmt.Errorf("reading texture %d flags: %w", i, err)
		}
		if tex.Contents, err = r.ReadI32(); err != nil {
			return fmt.Errorf("reading texture %d contents: %w", i, err)
		}
	}
	return nil
}

func (b *BSP) parsePlanes(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpPlanes, lump, planeStride)
	if err != nil {
		return err
	}

	b.Planes = make([]BSPPlane, num)
	var f [4]float32
	for i := range b.Planes {
		if err := r.readF32s(f[:]); err != nil {
			return fmt.Errorf("reading plane %d: %w", i, err)
		}
		b.Planes[i] = BSPPlane{
			Normal:   math.Vec3{X: f[0], Y: f[1], Z: f[2]},
			Distance: f[3],
		}
	}
	return nil
}

func (b *BSP) parseNodes(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpNodes, lump, nodeStride)
	if err != nil {
		return err
	}

	b.Nodes = make([]BSPNode, num)
	var v [9]int32
	for i := range b.Nodes {
		if err := r.readI32s(v[:]); err != nil {
			return fmt.Errorf("reading node %d: %w", i, err)
		}
		b.Nodes[i] = BSPNode{
			Plane: v[0],
			Front: decodeChild(v[1]),
			Back:  decodeChild(v[2]),
			Mins:  [3]int32{v[3], v[4], v[5]},
			Maxs:  [3]int32{v[6], v[7], v[8]},
		}
	}
	return nil
}

func (b *BSP) parseLeafs(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpLeafs, lump, leafStride)
	if err != nil {
		return err
	}

	b.Leafs = make([]BSPLeaf, num)
	var v [12]int32
	for i := range b.Leafs {
		if err := r.readI32s(v[:]); err != nil {
			return fmt.Errorf("reading leaf %d: %w", i, err)
		}
		b.Leafs[i] = BSPLeaf{
			Cluster:        v[0],
			Area:           v[1],
			Mins:           [3]int32{v[2], v[3], v[4]},
			Maxs:           [3]int32{v[5], v[6], v[7]},
			LeafFace:       v[8],
			NumLeafFaces:   v[9],
			LeafBrush:      v[10],
			NumLeafBrushes: v[11],
		}
	}
	return nil
}

func (b *BSP) parseLeafFaces(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpLeafFaces, lump, leafFaceStride)
	if err != nil {
		return err
	}
	b.LeafFaces = make([]int32, num)
	return r.readI32s(b.LeafFaces)
}

func (b *BSP) parseModels(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpModels, lump, modelStride)
	if err != nil {
		return err
	}

	b.Models = make([]BSPModel, num)
	var f [6]float32
	var v [4]int32
	for i := range b.Models {
		if err := r.readF32s(f[:]); err != nil {
			return fmt.Errorf("reading model %d bounds: %w", i, err)
		}
		if err := r.readI32s(v[:]); err != nil {
			return fmt.Errorf("reading model %d ranges: %w", i, err)
		}
		b.Models[i] = BSPModel{
			Min:        math.Vec3{X: f[0], Y: f[1], Z: f[2]},
			Max:        math.Vec3{X: f[3], Y: f[4], Z: f[5]},
			Face:       v[0],
			NumFaces:   v[1],
			Brush:      v[2],
			NumBrushes: v[3],
		}
	}
	return nil
}

func (b *BSP) parseVertices(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpVertices, lump, vertexStride)
	if err != nil {
		return err
	}

	b.Vertices = make([]BSPVertex, num)
	var f [10]float32
	var c [4]float32
	for i := range b.Vertices {
		if err := r.readF32s(f[:]); err != nil {
			return fmt.Errorf("reading vertex %d: %w", i, err)
		}
		for j := range c {
			raw, err := r.ReadI8()
			if err != nil {
				return fmt.Errorf("reading vertex %d color: %w", i, err)
			}
			c[j] = DecodeColorChannel(raw)
		}
		b.Vertices[i] = BSPVertex{
			Position:      math.Vec3{X: f[0], Y: f[1], Z: f[2]},
			TexCoord:      math.Vec2{X: f[3], Y: f[4]},
			LightmapCoord: math.Vec2{X: f[5], Y: f[6]},
			Normal:        math.Vec3{X: f[7], Y: f[8], Z: f[9]},
			Color:         math.Vec4{X: c[0], Y: c[1], Z: c[2], W: c[3]},
		}
	}
	return nil
}

// DecodeColorChannel converts a stored vertex color byte to 0..1.
// The format stores channels as signed bytes and folds negative values
// as -raw+127, so -10 decodes to 137/255.
func DecodeColorChannel(raw int8) float32 {
	v := int32(raw)
	if v < 0 {
		v = -v + 127
	}
	return float32(v) / 255
}

func (b *BSP) parseMeshVerts(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpMeshVerts, lump, meshVertStride)
	if err != nil {
		return err
	}
	b.MeshVerts = make([]int32, num)
	return r.readI32s(b.MeshVerts)
}

func (b *BSP) parseFaces(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpFaces, lump, faceStride)
	if err != nil {
		return err
	}

	b.Faces = make([]BSPFace, num)
	var head [12]int32
	var f [12]float32
	var size [2]int32
	for i := range b.Faces {
		if err := r.readI32s(head[:]); err != nil {
			return fmt.Errorf("reading face %d: %w", i, err)
		}
		if err := r.readF32s(f[:]); err != nil {
			return fmt.Errorf("reading face %d lightmap vectors: %w", i, err)
		}
		if err := r.readI32s(size[:]); err != nil {
			return fmt.Errorf("reading face %d patch size: %w", i, err)
		}
		b.Faces[i] = BSPFace{
			TextureID:       head[0],
			Effect:          head[1],
			Type:            BSPFaceType(head[2]),
			Vertex:          head[3],
			NumVertices:     head[4],
			MeshVertex:      head[5],
			NumMeshVertices: head[6],
			LightmapID:      head[7],
			LightmapCorner:  [2]int32{head[8], head[9]},
			LightmapSize:    [2]int32{head[10], head[11]},
			LightmapOrigin:  math.Vec3{X: f[0], Y: f[1], Z: f[2]},
			LightmapVecs: [2]math.Vec3{
				{X: f[3], Y: f[4], Z: f[5]},
				{X: f[6], Y: f[7], Z: f[8]},
			},
			Normal:    math.Vec3{X: f[9], Y: f[10], Z: f[11]},
			PatchSize: size,
		}
	}
	return nil
}

func (b *BSP) parseLightmaps(r *recordReader, lump BSPLump) error {
	num, err := lumpRecords(r, LumpLightmaps, lump, lightmapStride)
	if err != nil {
		return err
	}

	b.Lightmaps = make([]BSPLightmap, num)
	for i := range b.Lightmaps {
		texels, err := r.ReadBytes(lightmapStride)
		if err != nil {
			return fmt.Errorf("reading lightmap %d: %w", i, err)
		}
		copy(b.Lightmaps[i].Texels[:], texels)
	}
	return nil
}

func (b *BSP) parseVisData(r *recordReader, lump BSPLump) error {
	if lump.Length == 0 {
		return nil
	}
	if lump.Length < visHeaderLength {
		return fmt.Errorf("%w: visdata length %d is shorter than its header", ErrMalformedBSPLump, lump.Length)
	}
	if err := r.Seek(int(lump.Offset)); err != nil {
		return err
	}

	numClusters, err := r.ReadI32()
	if err != nil {
		return fmt.Errorf("reading cluster count: %w", err)
	}
	bytesPerCluster, err := r.ReadI32()
	if err != nil {
		return fmt.Errorf("reading bytes per cluster: %w", err)
	}
	if numClusters < 0 || bytesPerCluster < 0 {
		return fmt.Errorf("%w: %d clusters with %d bytes each", ErrMalformedBSPLump, numClusters, bytesPerCluster)
	}
	if int64(bytesPerCluster)*8 < int64(numClusters) {
		return fmt.Errorf("%w: %d bytes per cluster cannot hold %d clusters",
			ErrMalformedBSPLump, bytesPerCluster, numClusters)
	}

	size := int64(numClusters) * int64(bytesPerCluster)
	if visHeaderLength+size != int64(lump.Length) {
		return fmt.Errorf("%w: visdata length %d, expected %d",
			ErrMalformedBSPLump, lump.Length, visHeaderLength+size)
	}

	bits, err := r.ReadBytes(int(size))
	if err != nil {
		return fmt.Errorf("reading visibility bits: %w", err)
	}
	b.VisData = BSPVisData{
		NumClusters:     numClusters,
		BytesPerCluster: bytesPerCluster,
		Bits:            bytes.Clone(bits),
	}
	return nil
}

// readNullTerminated reads a null-terminated string from a fixed-size field.
func readNullTerminated(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		return string(b[:idx])
	}
	return string(b)
}

// TextureName returns the texture name for a face's TextureID, or "" for -1.
func (b *BSP) TextureName(id int32) string {
	if id < 0 || int(id) >= len(b.Textures) {
		return ""
	}
	return b.Textures[id].Name
}

// FaceVertices returns the vertices owned by face i.
func (b *BSP) FaceVertices(i int) []BSPVertex {
	f := &b.Faces[i]
	if f.NumVertices == 0 {
		return nil
	}
	return b.Vertices[f.Vertex : f.Vertex+f.NumVertices]
}

// FaceMeshVertices returns the mesh-vertex offsets of face i.
// The offsets are relative to the face's first vertex.
func (b *BSP) FaceMeshVertices(i int) []int32 {
	f := &b.Faces[i]
	if f.NumMeshVertices == 0 {
		return nil
	}
	return b.MeshVerts[f.MeshVertex : f.MeshVertex+f.NumMeshVertices]
}

// LeafFaceIndices returns the face indices referenced by leaf i.
func (b *BSP) LeafFaceIndices(i int) []int32 {
	l := &b.Leafs[i]
	if l.NumLeafFaces == 0 {
		return nil
	}
	return b.LeafFaces[l.LeafFace : l.LeafFace+l.NumLeafFaces]
}

// CountFacesByType returns the count of faces for each type.
func (b *BSP) CountFacesByType() map[BSPFaceType]int {
	counts := make(map[BSPFaceType]int)
	for _, f := range b.Faces {
		counts[f.Type]++
	}
	return counts
}
