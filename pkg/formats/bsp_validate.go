package formats

import "fmt"

// validate checks every decoded index against the array it points into.
func (b *BSP) validate() error {
	checks := []func() error{
		b.validateNodes,
		b.validateNodeGraph,
		b.validateLeafs,
		b.validateLeafFaces,
		b.validateFaces,
		b.validateModels,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// validRange reports whether [start, start+count) lies inside an array of size n.
// An empty range is always valid; its start is never dereferenced.
func validRange(start, count int32, n int) bool {
	if count == 0 {
		return true
	}
	return start >= 0 && count > 0 && int64(start)+int64(count) <= int64(n)
}

func (b *BSP) validateChild(i int, side string, c BSPChild) error {
	if c.Leaf {
		if c.Index < 0 || int(c.Index) >= len(b.Leafs) {
			return fmt.Errorf("%w: node %d %s leaf %d of %d", ErrBSPIndexOutOfRange, i, side, c.Index, len(b.Leafs))
		}
		return nil
	}
	if int(c.Index) >= len(b.Nodes) {
		return fmt.Errorf("%w: node %d %s node %d of %d", ErrBSPIndexOutOfRange, i, side, c.Index, len(b.Nodes))
	}
	return nil
}

func (b *BSP) validateNodes() error {
	for i := range b.Nodes {
		n := &b.Nodes[i]
		if n.Plane < 0 || int(n.Plane) >= len(b.Planes) {
			return fmt.Errorf("%w: node %d plane %d of %d", ErrBSPIndexOutOfRange, i, n.Plane, len(b.Planes))
		}
		if err := b.validateChild(i, "front", n.Front); err != nil {
			return err
		}
		if err := b.validateChild(i, "back", n.Back); err != nil {
			return err
		}
	}
	return nil
}

// validateNodeGraph rejects node graphs with cycles, which would make
// point classification loop forever.
func (b *BSP) validateNodeGraph() error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]uint8, len(b.Nodes))

	type frame struct {
		node  int32
		child int
	}
	var stack []frame

	for start := range b.Nodes {
		if state[start] != unvisited {
			continue
		}
		state[start] = onStack
		stack = append(stack[:0], frame{node: int32(start)})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.child == 2 {
				state[top.node] = done
				stack = stack[:len(stack)-1]
				continue
			}

			n := &b.Nodes[top.node]
			c := n.Front
			if top.child == 1 {
				c = n.Back
			}
			top.child++
			if c.Leaf {
				continue
			}

			switch state[c.Index] {
			case onStack:
				return fmt.Errorf("%w: node %d is its own ancestor", ErrMalformedBSPLump, c.Index)
			case unvisited:
				state[c.Index] = onStack
				stack = append(stack, frame{node: c.Index})
			}
		}
	}
	return nil
}

func (b *BSP) validateLeafs() error {
	hasVis := len(b.VisData.Bits) > 0
	for i := range b.Leafs {
		l := &b.Leafs[i]
		if l.Cluster < -1 || (hasVis && l.Cluster >= b.VisData.NumClusters) {
			return fmt.Errorf("%w: leaf %d cluster %d of %d", ErrBSPIndexOutOfRange, i, l.Cluster, b.VisData.NumClusters)
		}
		if !validRange(l.LeafFace, l.NumLeafFaces, len(b.LeafFaces)) {
			return fmt.Errorf("%w: leaf %d faces %d+%d of %d",
				ErrBSPIndexOutOfRange, i, l.LeafFace, l.NumLeafFaces, len(b.LeafFaces))
		}
	}
	return nil
}

func (b *BSP) validateLeafFaces() error {
	for i, f := range b.LeafFaces {
		if f < 0 || int(f) >= len(b.Faces) {
			return fmt.Errorf("%w: leaf face %d references face %d of %d", ErrBSPIndexOutOfRange, i, f, len(b.Faces))
		}
	}
	return nil
}

func (b *BSP) validateFaces() error {
	for i := range b.Faces {
		f := &b.Faces[i]
		if !validRange(f.Vertex, f.NumVertices, len(b.Vertices)) {
			return fmt.Errorf("%w: face %d vertices %d+%d of %d",
				ErrBSPIndexOutOfRange, i, f.Vertex, f.NumVertices, len(b.Vertices))
		}
		if !validRange(f.MeshVertex, f.NumMeshVertices, len(b.MeshVerts)) {
			return fmt.Errorf("%w: face %d mesh vertices %d+%d of %d",
				ErrBSPIndexOutOfRange, i, f.MeshVertex, f.NumMeshVertices, len(b.MeshVerts))
		}
		if f.TextureID < -1 || int(f.TextureID) >= len(b.Textures) {
			return fmt.Errorf("%w: face %d texture %d of %d", ErrBSPIndexOutOfRange, i, f.TextureID, len(b.Textures))
		}
		if f.LightmapID >= 0 && int(f.LightmapID) >= len(b.Lightmaps) {
			return fmt.Errorf("%w: face %d lightmap %d of %d", ErrBSPIndexOutOfRange, i, f.LightmapID, len(b.Lightmaps))
		}

		if f.Type != FacePolygon && f.Type != FaceMesh {
			continue
		}
		for _, mv := range b.FaceMeshVertices(i) {
			if mv < 0 || mv >= f.NumVertices {
				return fmt.Errorf("%w: face %d mesh vertex offset %d of %d",
					ErrBSPIndexOutOfRange, i, mv, f.NumVertices)
			}
		}
	}
	return nil
}

func (b *BSP) validateModels() error {
	for i := range b.Models {
		m := &b.Models[i]
		if !validRange(m.Face, m.NumFaces, len(b.Faces)) {
			return fmt.Errorf("%w: model %d faces %d+%d of %d",
				ErrBSPIndexOutOfRange, i, m.Face, m.NumFaces, len(b.Faces))
		}
	}
	return nil
}
