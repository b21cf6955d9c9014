package formats

import "fmt"

// BSPLump is one (offset, length) entry of the lump directory.
type BSPLump struct {
	Offset uint32
	Length uint32
}

// BSPLumpKind identifies a logical section of a BSP file.
type BSPLumpKind int

// Lump kinds decoded by the parser.
const (
	LumpEntities BSPLumpKind = iota
	LumpTextures
	LumpPlanes
	LumpNodes
	LumpLeafs
	LumpLeafFaces
	LumpModels
	LumpVertices
	LumpMeshVerts
	LumpFaces
	LumpLightmaps
	LumpVisData

	numLumpKinds
)

// NumBSPLumpKinds is the number of decoded lump kinds.
const NumBSPLumpKinds = numLumpKinds

var lumpKindNames = [numLumpKinds]string{
	"entities", "textures", "planes", "nodes", "leafs", "leaffaces",
	"models", "vertices", "meshverts", "faces", "lightmaps", "visdata",
}

// String returns the lump kind name.
func (k BSPLumpKind) String() string {
	if k < 0 || k >= numLumpKinds {
		return fmt.Sprintf("lump(%d)", int(k))
	}
	return lumpKindNames[k]
}

// Record strides in bytes. Entities and visdata have no fixed stride.
const (
	planeStride     = 16
	nodeStride      = 36
	leafStride      = 48
	modelStride     = 40
	faceStride      = 104
	vertexStride    = 44
	meshVertStride  = 4
	leafFaceStride  = 4
	textureStride   = 72
	textureNameSize = 64

	// LightmapSize is the width and height of one lightmap block.
	LightmapSize    = 128
	lightmapStride  = LightmapSize * LightmapSize * 3
	visHeaderLength = 8
)

// BSPVariant describes one header layout of the format family.
type BSPVariant struct {
	Name     string
	Magic    string // empty when the variant has no magic string
	Version  int32
	NumLumps int
	slots    [numLumpKinds]int
}

// HeaderSize returns the size of the fixed header including the lump directory.
func (v *BSPVariant) HeaderSize() int {
	return len(v.Magic) + 4 + v.NumLumps*8
}

// Slot returns the directory index of a lump kind.
func (v *BSPVariant) Slot(kind BSPLumpKind) int {
	return v.slots[kind]
}

// Known variants.
var (
	// VariantCounterStrike has no magic; the version is the first field.
	VariantCounterStrike = &BSPVariant{
		Name:     "counter-strike",
		Version:  0x1e,
		NumLumps: 15,
		slots: [numLumpKinds]int{
			LumpEntities:  0,
			LumpPlanes:    1,
			LumpTextures:  2,
			LumpVertices:  3,
			LumpVisData:   4,
			LumpNodes:     5,
			LumpFaces:     7,
			LumpLightmaps: 8,
			LumpLeafs:     10,
			LumpLeafFaces: 11,
			LumpMeshVerts: 13,
			LumpModels:    14,
		},
	}

	// VariantQuake3 is the stock "IBSP" version 46 layout.
	VariantQuake3 = &BSPVariant{
		Name:     "quake3",
		Magic:    "IBSP",
		Version:  0x2e,
		NumLumps: 17,
		slots: [numLumpKinds]int{
			LumpEntities:  0,
			LumpTextures:  1,
			LumpPlanes:    2,
			LumpNodes:     3,
			LumpLeafs:     4,
			LumpLeafFaces: 5,
			LumpModels:    7,
			LumpVertices:  10,
			LumpMeshVerts: 11,
			LumpFaces:     13,
			LumpLightmaps: 14,
			LumpVisData:   16,
		},
	}
)

// detectVariant inspects the leading bytes and returns the matching variant.
func detectVariant(data []byte) (*BSPVariant, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncatedBSPData, len(data))
	}

	r := newRecordReader(data)
	if string(data[0:4]) == VariantQuake3.Magic {
		_ = r.Seek(4)
		version, _ := r.ReadI32()
		if version != VariantQuake3.Version {
			return nil, fmt.Errorf("%w: %s version 0x%x", ErrUnsupportedBSPVersion, VariantQuake3.Name, version)
		}
		return VariantQuake3, nil
	}

	version, _ := r.ReadI32()
	if version != VariantCounterStrike.Version {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedBSPVersion, version)
	}
	return VariantCounterStrike, nil
}

// readDirectory decodes the lump directory following the magic/version fields.
// Every lump must lie within the file.
func readDirectory(r *recordReader, v *BSPVariant) ([]BSPLump, error) {
	if err := r.Seek(len(v.Magic) + 4); err != nil {
		return nil, err
	}

	lumps := make([]BSPLump, v.NumLumps)
	for i := range lumps {
		offset, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("reading lump %d offset: %w", i, err)
		}
		length, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("reading lump %d length: %w", i, err)
		}
		if uint64(offset)+uint64(length) > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: lump %d spans %d+%d of %d bytes",
				ErrTruncatedBSPData, i, offset, length, r.Len())
		}
		lumps[i] = BSPLump{Offset: offset, Length: length}
	}
	return lumps, nil
}

// lumpRecords positions r at the start of a lump and returns its record count.
func lumpRecords(r *recordReader, kind BSPLumpKind, lump BSPLump, stride int) (int, error) {
	if int(lump.Length)%stride != 0 {
		return 0, fmt.Errorf("%w: %s length %d is not a multiple of %d",
			ErrMalformedBSPLump, kind, lump.Length, stride)
	}
	if err := r.Seek(int(lump.Offset)); err != nil {
		return 0, err
	}
	return int(lump.Length) / stride, nil
}
