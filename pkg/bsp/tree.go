// Package bsp answers spatial and visibility queries over a parsed map.
package bsp

import (
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

// planeEpsilon is the distance a point must exceed to count as in front of a plane.
const planeEpsilon = 0.0001

// Index classifies points against the BSP tree.
// It is immutable and safe for concurrent use.
type Index struct {
	planes   []formats.BSPPlane
	nodes    []formats.BSPNode
	numLeafs int
}

// NewIndex creates an index over already validated tree arrays.
func NewIndex(planes []formats.BSPPlane, nodes []formats.BSPNode, leafs []formats.BSPLeaf) *Index {
	return &Index{
		planes:   planes,
		nodes:    nodes,
		numLeafs: len(leafs),
	}
}

// LeafContaining returns the index of the leaf containing p.
// A map without nodes is a single leaf 0; a map without leafs returns -1.
func (ix *Index) LeafContaining(p math.Vec3) int {
	if ix.numLeafs == 0 {
		return -1
	}
	if len(ix.nodes) == 0 {
		return 0
	}

	child := formats.BSPChild{Index: 0}
	for !child.Leaf {
		n := &ix.nodes[child.Index]
		plane := &ix.planes[n.Plane]
		if plane.Normal.Dot(p)-plane.Distance > planeEpsilon {
			child = n.Front
		} else {
			child = n.Back
		}
	}
	return int(child.Index)
}

// Depth returns the number of nodes visited to classify p.
func (ix *Index) Depth(p math.Vec3) int {
	if ix.numLeafs == 0 || len(ix.nodes) == 0 {
		return 0
	}

	depth := 0
	child := formats.BSPChild{Index: 0}
	for !child.Leaf {
		depth++
		n := &ix.nodes[child.Index]
		plane := &ix.planes[n.Plane]
		if plane.Normal.Dot(p)-plane.Distance > planeEpsilon {
			child = n.Front
		} else {
			child = n.Back
		}
	}
	return depth
}
