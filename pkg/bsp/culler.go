package bsp

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"

	"github.com/Faultbox/csbsp/pkg/math"
)

// noCluster is the initial cluster so the first update always recomputes.
const noCluster = -2

// Stats summarizes one visibility computation.
type Stats struct {
	ClustersVisible    int // visible clusters that contributed faces
	LeavesVisible      int // face-owning leaves in visible clusters
	FacesVisible       int
	ClustersWithLeaves int // clusters owning at least one face-bearing leaf
	Batches            int // distinct (cluster, texture, lightmap) groups among visible faces
}

// VisibleFaceSet is an immutable snapshot of the faces visible from one cluster.
type VisibleFaceSet struct {
	Cluster int32 // viewpoint cluster, -1 outside the world
	All     bool  // every face is visible (PVS disabled or absent)
	Stats   Stats

	faces    *bitset.BitSet
	numFaces int
}

// Contains reports whether face i is visible.
func (s *VisibleFaceSet) Contains(i int) bool {
	if i < 0 || i >= s.numFaces {
		return false
	}
	if s.All {
		return true
	}
	return s.faces.Test(uint(i))
}

// Count returns the number of visible faces.
func (s *VisibleFaceSet) Count() int {
	if s.All {
		return s.numFaces
	}
	return int(s.faces.Count())
}

// Faces returns the visible face indices in ascending order.
func (s *VisibleFaceSet) Faces() []int {
	faces := make([]int, 0, s.Count())
	if s.All {
		for i := 0; i < s.numFaces; i++ {
			faces = append(faces, i)
		}
		return faces
	}
	for i, ok := s.faces.NextSet(0); ok; i, ok = s.faces.NextSet(i + 1) {
		faces = append(faces, int(i))
	}
	return faces
}

type batchKey struct {
	cluster, texture, lightmap int32
}

// Culler tracks the visible face set for a moving viewpoint.
// The set is recomputed only when the viewpoint changes cluster or the PVS
// mode is toggled. Update calls are serialized; Current may be called from
// any goroutine.
type Culler struct {
	m   *Map
	log *zap.Logger

	mu          sync.Mutex
	lastCluster int32
	lastUsePVS  bool
	current     atomic.Pointer[VisibleFaceSet]
}

// CullerOption configures a Culler.
type CullerOption func(*Culler)

// WithLogger sets the logger used for cluster change messages.
func WithLogger(log *zap.Logger) CullerOption {
	return func(c *Culler) {
		c.log = log
	}
}

// NewCuller creates a culler for m. No set is published until the first Update.
func NewCuller(m *Map, opts ...CullerOption) *Culler {
	c := &Culler{
		m:           m,
		log:         zap.NewNop(),
		lastCluster: noCluster,
		lastUsePVS:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the last published set, or nil before the first Update.
func (c *Culler) Current() *VisibleFaceSet {
	return c.current.Load()
}

// Update recomputes visibility for viewpoint if needed and returns the current set.
// With usePVS false every face is visible.
func (c *Culler) Update(viewpoint math.Vec3, usePVS bool) *VisibleFaceSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	toggled := usePVS != c.lastUsePVS
	c.lastUsePVS = usePVS
	cur := c.current.Load()

	if !usePVS {
		if toggled || cur == nil {
			c.log.Debug("PVS disabled, all faces visible")
			cur = c.allVisible(-1)
			c.current.Store(cur)
		}
		return cur
	}

	cluster := c.m.ClusterAt(viewpoint)
	if cluster == c.lastCluster && !toggled && cur != nil {
		return cur
	}
	c.lastCluster = cluster

	if c.m.Visibility().Present() {
		cur = c.compute(cluster)
	} else {
		cur = c.allVisible(cluster)
	}
	c.current.Store(cur)

	c.log.Debug("cluster changed",
		zap.Int32("cluster", cluster),
		zap.Int("faces", cur.Stats.FacesVisible),
		zap.Int("clusters", cur.Stats.ClustersVisible),
		zap.Int("leaves", cur.Stats.LeavesVisible),
		zap.Int("batches", cur.Stats.Batches))
	return cur
}

func (c *Culler) allVisible(cluster int32) *VisibleFaceSet {
	n := c.m.NumFaces()
	return &VisibleFaceSet{
		Cluster:  cluster,
		All:      true,
		Stats:    Stats{FacesVisible: n, ClustersWithLeaves: c.clustersWithLeaves()},
		numFaces: n,
	}
}

func (c *Culler) clustersWithLeaves() int {
	n := 0
	for i := 0; i < c.m.NumClusters(); i++ {
		if len(c.m.ClusterLeaves(i)) > 0 {
			n++
		}
	}
	return n
}

// compute builds a fresh set from the PVS row of cluster.
func (c *Culler) compute(cluster int32) *VisibleFaceSet {
	b := c.m.BSP
	vis := c.m.Visibility()
	set := &VisibleFaceSet{
		Cluster:  cluster,
		faces:    bitset.New(uint(len(b.Faces))),
		numFaces: len(b.Faces),
	}
	batches := make(map[batchKey]struct{})

	for i := 0; i < c.m.NumClusters(); i++ {
		leaves := c.m.ClusterLeaves(i)
		if len(leaves) == 0 {
			continue
		}
		set.Stats.ClustersWithLeaves++
		if !vis.IsVisible(int(cluster), i) {
			continue
		}

		contributed := false
		for _, leaf := range leaves {
			set.Stats.LeavesVisible++
			for _, face := range b.LeafFaceIndices(int(leaf)) {
				if set.faces.Test(uint(face)) {
					continue
				}
				set.faces.Set(uint(face))
				set.Stats.FacesVisible++
				contributed = true

				f := &b.Faces[face]
				batches[batchKey{int32(i), f.TextureID, f.LightmapID}] = struct{}{}
			}
		}
		if contributed {
			set.Stats.ClustersVisible++
		}
	}

	set.Stats.Batches = len(batches)
	return set
}
