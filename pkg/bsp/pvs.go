package bsp

import "github.com/Faultbox/csbsp/pkg/formats"

// VisibilitySet answers cluster-to-cluster visibility from the PVS bit matrix.
// It is immutable and safe for concurrent use.
type VisibilitySet struct {
	numClusters     int
	bytesPerCluster int
	bits            []byte
}

// NewVisibilitySet wraps decoded visibility data.
func NewVisibilitySet(v formats.BSPVisData) *VisibilitySet {
	return &VisibilitySet{
		numClusters:     int(v.NumClusters),
		bytesPerCluster: int(v.BytesPerCluster),
		bits:            v.Bits,
	}
}

// Present reports whether the map carries PVS data.
func (s *VisibilitySet) Present() bool {
	return len(s.bits) > 0
}

// NumClusters returns the number of clusters in the matrix.
func (s *VisibilitySet) NumClusters() int {
	return s.numClusters
}

// IsVisible reports whether cluster to is potentially visible from cluster from.
// Without PVS data, or from outside the world (from < 0), everything is visible.
// Otherwise clusters at or above NumClusters are never visible.
func (s *VisibilitySet) IsVisible(from, to int) bool {
	if len(s.bits) == 0 || from < 0 {
		return true
	}
	if from >= s.numClusters || to < 0 || to >= s.numClusters {
		return false
	}
	i := from*s.bytesPerCluster + to/8
	return s.bits[i]&(1<<(to%8)) != 0
}

// VisibleFrom lists the clusters visible from cluster from.
// It returns nil when from is not a cluster of the map.
func (s *VisibilitySet) VisibleFrom(from int) []int {
	if s.Present() && from >= s.numClusters {
		return nil
	}
	var visible []int
	for to := 0; to < s.numClusters; to++ {
		if s.IsVisible(from, to) {
			visible = append(visible, to)
		}
	}
	return visible
}
