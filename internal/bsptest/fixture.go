package bsptest

import (
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

// Leaf indices of TwoClusterMap.
const (
	WestLeaf    = 0 // x < 0, cluster 0
	EastLeaf    = 1 // 0 <= x < 2048, cluster 1
	OutsideLeaf = 2 // x >= 2048, cluster -1
)

// TwoClusterMap returns a small map split by the planes x = 0 and x = 2048.
//
//	node 0 (x = 0):    back -> leaf 0, front -> node 1
//	node 1 (x = 2048): back -> leaf 1, front -> leaf 2
//
// Faces 0 and 1 belong to clusters 0 and 1; face 2 sits in the cluster -1
// leaf. Face 3 is a 3x3 patch in cluster 1. The PVS lets each cluster see
// only itself.
func TwoClusterMap() *formats.BSP {
	var vertices []formats.BSPVertex
	vertices = append(vertices, Triangle(-512)...)
	vertices = append(vertices, Triangle(512)...)
	vertices = append(vertices, Triangle(3000)...)
	vertices = append(vertices, PatchGrid(1024, 3, 3)...)

	polygon := func(vertex, texture, lightmap int32) formats.BSPFace {
		return formats.BSPFace{
			TextureID:       texture,
			Type:            formats.FacePolygon,
			Vertex:          vertex,
			NumVertices:     3,
			MeshVertex:      0,
			NumMeshVertices: 3,
			LightmapID:      lightmap,
			Normal:          math.Vec3{Z: 1},
		}
	}

	var lightmap formats.BSPLightmap
	for i := range lightmap.Texels {
		lightmap.Texels[i] = byte(i % 251)
	}

	world := [3]int32{4096, 4096, 4096}
	return &formats.BSP{
		Entities: []formats.BSPEntity{
			{Fields: []formats.BSPEntityField{
				{Key: "classname", Value: "worldspawn"},
				{Key: "message", Value: "two clusters"},
			}},
			{Fields: []formats.BSPEntityField{
				{Key: "classname", Value: "info_player_start"},
				{Key: "origin", Value: "-256 32 16"},
			}},
		},
		Textures: []formats.BSPTexture{
			{Name: "textures/base/wall", Contents: 1},
			{Name: "textures/base/floor", Contents: 1},
		},
		Planes: []formats.BSPPlane{
			{Normal: math.Vec3{X: 1}, Distance: 0},
			{Normal: math.Vec3{X: 1}, Distance: 2048},
		},
		Nodes: []formats.BSPNode{
			{
				Plane: 0,
				Front: formats.BSPChild{Index: 1},
				Back:  formats.BSPChild{Leaf: true, Index: WestLeaf},
				Mins:  [3]int32{-world[0], -world[1], -world[2]},
				Maxs:  world,
			},
			{
				Plane: 1,
				Front: formats.BSPChild{Leaf: true, Index: OutsideLeaf},
				Back:  formats.BSPChild{Leaf: true, Index: EastLeaf},
				Mins:  [3]int32{0, -world[1], -world[2]},
				Maxs:  world,
			},
		},
		Leafs: []formats.BSPLeaf{
			{
				Cluster: 0, LeafFace: 0, NumLeafFaces: 1,
				Mins: [3]int32{-world[0], -world[1], -world[2]},
				Maxs: [3]int32{0, world[1], world[2]},
			},
			{
				Cluster: 1, LeafFace: 1, NumLeafFaces: 2,
				Mins: [3]int32{0, -world[1], -world[2]},
				Maxs: [3]int32{2048, world[1], world[2]},
			},
			{
				Cluster: -1, LeafFace: 3, NumLeafFaces: 1,
				Mins: [3]int32{2048, -world[1], -world[2]},
				Maxs: world,
			},
		},
		LeafFaces: []int32{0, 1, 3, 2},
		Models: []formats.BSPModel{
			{
				Min:  math.Vec3{X: -4096, Y: -4096, Z: -4096},
				Max:  math.Vec3{X: 4096, Y: 4096, Z: 4096},
				Face: 0, NumFaces: 4,
			},
		},
		Vertices:  vertices,
		MeshVerts: []int32{0, 1, 2},
		Faces: []formats.BSPFace{
			polygon(0, 0, 0),
			polygon(3, 1, 0),
			polygon(6, 0, -1),
			{
				TextureID:   1,
				Type:        formats.FacePatch,
				Vertex:      9,
				NumVertices: 9,
				LightmapID:  -1,
				PatchSize:   [2]int32{3, 3},
			},
		},
		Lightmaps: []formats.BSPLightmap{lightmap},
		VisData: formats.BSPVisData{
			NumClusters:     2,
			BytesPerCluster: 1,
			Bits:            []byte{0x01, 0x02},
		},
	}
}

// PatchGrid returns a flat w x h control grid of 64-unit spacing at x.
func PatchGrid(x float32, w, h int) []formats.BSPVertex {
	grid := make([]formats.BSPVertex, 0, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			grid = append(grid, formats.BSPVertex{
				Position: math.Vec3{X: x + float32(i)*64, Y: float32(j) * 64},
				TexCoord: math.Vec2{X: float32(i) / float32(w-1), Y: float32(j) / float32(h-1)},
				Normal:   math.Vec3{Z: 1},
				Color:    math.Vec4{X: 1, Y: 1, Z: 1, W: 1},
			})
		}
	}
	return grid
}
