package bsp

import (
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

// Map bundles a parsed BSP with its spatial index and visibility set.
// It is immutable once built and safe for concurrent readers.
type Map struct {
	BSP *formats.BSP

	index *Index
	vis   *VisibilitySet

	// clusterLeaves lists, per cluster, the leaves that own at least one face.
	clusterLeaves [][]int32
}

// NewMap builds the query structures for b.
func NewMap(b *formats.BSP) *Map {
	m := &Map{
		BSP:   b,
		index: NewIndex(b.Planes, b.Nodes, b.Leafs),
		vis:   NewVisibilitySet(b.VisData),
	}

	numClusters := int(b.VisData.NumClusters)
	if !m.vis.Present() {
		for i := range b.Leafs {
			numClusters = max(numClusters, int(b.Leafs[i].Cluster)+1)
		}
	}

	m.clusterLeaves = make([][]int32, numClusters)
	for i := range b.Leafs {
		l := &b.Leafs[i]
		if l.Cluster < 0 || l.NumLeafFaces == 0 {
			continue
		}
		m.clusterLeaves[l.Cluster] = append(m.clusterLeaves[l.Cluster], int32(i))
	}
	return m
}

// Index returns the point classification index.
func (m *Map) Index() *Index {
	return m.index
}

// Visibility returns the map's PVS.
func (m *Map) Visibility() *VisibilitySet {
	return m.vis
}

// LeafContaining returns the leaf containing p, or -1 for a map without leafs.
func (m *Map) LeafContaining(p math.Vec3) int {
	return m.index.LeafContaining(p)
}

// ClusterAt returns the cluster of the leaf containing p.
// It returns -1 outside the world or for a map without leafs.
func (m *Map) ClusterAt(p math.Vec3) int32 {
	leaf := m.index.LeafContaining(p)
	if leaf < 0 {
		return -1
	}
	return m.BSP.Leafs[leaf].Cluster
}

// NumClusters returns the number of clusters leaves are grouped into.
func (m *Map) NumClusters() int {
	return len(m.clusterLeaves)
}

// ClusterLeaves returns the face-owning leaves of cluster c.
func (m *Map) ClusterLeaves(c int) []int32 {
	if c < 0 || c >= len(m.clusterLeaves) {
		return nil
	}
	return m.clusterLeaves[c]
}

// NumFaces returns the number of faces in the map.
func (m *Map) NumFaces() int {
	return len(m.BSP.Faces)
}
