package patch

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/csbsp/internal/bsptest"
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/math"
)

func approx(a, b float32) bool {
	return math32.Abs(a-b) < 1e-3
}

func approxVec3(a, b math.Vec3) bool {
	return approx(a.X, b.X) && approx(a.Y, b.Y) && approx(a.Z, b.Z)
}

func TestTessellate_Counts(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		level         int
		wantVertices  int
		wantTriangles int
	}{
		{"3x3 level 1", 3, 3, 1, 4, 2},
		{"3x3 default", 3, 3, DefaultLevel, 36, 50},
		{"5x3 level 2", 5, 3, 2, 18, 16},
		{"5x5 level 3", 5, 5, 3, 64, 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Tessellate(bsptest.PatchGrid(0, tt.width, tt.height), tt.width, tt.height, tt.level)
			if err != nil {
				t.Fatalf("Tessellate failed: %v", err)
			}
			if len(s.Vertices) != tt.wantVertices {
				t.Errorf("expected %d vertices, got %d", tt.wantVertices, len(s.Vertices))
			}
			if s.NumTriangles() != tt.wantTriangles {
				t.Errorf("expected %d triangles, got %d", tt.wantTriangles, s.NumTriangles())
			}
			for _, idx := range s.Indices {
				if int(idx) >= len(s.Vertices) {
					t.Fatalf("index %d out of range", idx)
				}
			}
		})
	}
}

func TestTessellate_Interpolation(t *testing.T) {
	control := bsptest.PatchGrid(100, 3, 3)
	s, err := Tessellate(control, 3, 3, 2)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}

	corners := []struct {
		u, v    int
		control int
	}{
		{0, 0, 0},
		{1, 0, 2},
		{0, 1, 6},
		{1, 1, 8},
	}
	for _, c := range corners {
		if got := s.Corner(0, c.u, c.v); !approxVec3(got, control[c.control].Position) {
			t.Errorf("corner (%d,%d) = %+v, want %+v", c.u, c.v, got, control[c.control].Position)
		}
	}

	// Evenly spaced control points reproduce the middle point at (0.5, 0.5).
	mid := s.Vertices[4]
	if !approxVec3(mid.Position, control[4].Position) {
		t.Errorf("center = %+v, want %+v", mid.Position, control[4].Position)
	}
	if !approx(mid.TexCoord.X, 0.5) || !approx(mid.TexCoord.Y, 0.5) {
		t.Errorf("center texcoord = %+v", mid.TexCoord)
	}
	if !approxVec3(mid.Normal, math.Vec3{Z: 1}) {
		t.Errorf("center normal = %+v", mid.Normal)
	}
	if !approx(mid.Color.W, 1) {
		t.Errorf("center alpha = %v", mid.Color.W)
	}
}

func TestTessellate_CurvedNormalIsUnit(t *testing.T) {
	control := bsptest.PatchGrid(0, 3, 3)
	control[0].Normal = math.Vec3{X: 1}
	control[8].Normal = math.Vec3{Y: 1}

	s, err := Tessellate(control, 3, 3, 4)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	for i, v := range s.Vertices {
		if l := v.Normal.Length(); !approx(l, 1) {
			t.Fatalf("vertex %d normal length %v", i, l)
		}
	}
}

func TestTessellate_Winding(t *testing.T) {
	s, err := Tessellate(bsptest.PatchGrid(0, 3, 3), 3, 3, 3)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	for i := 0; i < len(s.Indices); i += 3 {
		a := s.Vertices[s.Indices[i]].Position
		b := s.Vertices[s.Indices[i+1]].Position
		c := s.Vertices[s.Indices[i+2]].Position
		// Z of (b-a) x (c-a); the grid lies in the XY plane.
		if z := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X); z <= 0 {
			t.Fatalf("triangle %d winds clockwise: cross z %v", i/3, z)
		}
	}
}

func TestTessellate_SubPatchesShareEdges(t *testing.T) {
	s, err := Tessellate(bsptest.PatchGrid(0, 5, 3), 5, 3, 2)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if s.NumSubPatches() != 2 {
		t.Fatalf("expected 2 sub-patches, got %d", s.NumSubPatches())
	}
	if a, b := s.Corner(0, 1, 0), s.Corner(1, 0, 0); !approxVec3(a, b) {
		t.Errorf("shared edge mismatch: %+v vs %+v", a, b)
	}
}

func TestTessellate_Deterministic(t *testing.T) {
	control := bsptest.PatchGrid(7, 3, 5)
	a, err := Tessellate(control, 3, 5, DefaultLevel)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	b, _ := Tessellate(control, 3, 5, DefaultLevel)
	for i := range a.Vertices {
		if a.Vertices[i] != b.Vertices[i] {
			t.Fatalf("vertex %d differs between runs", i)
		}
	}
}

func TestTessellate_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		points        int
		width, height int
		level         int
	}{
		{"even width", 12, 4, 3, 2},
		{"even height", 12, 3, 4, 2},
		{"too small", 3, 1, 3, 2},
		{"wrong point count", 8, 3, 3, 2},
		{"zero level", 9, 3, 3, 0},
		{"negative level", 9, 3, 3, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tessellate(make([]formats.BSPVertex, tt.points), tt.width, tt.height, tt.level)
			if !errors.Is(err, ErrInvalidPatch) {
				t.Errorf("expected ErrInvalidPatch, got %v", err)
			}
		})
	}
}

func TestTessellateFace(t *testing.T) {
	b := bsptest.TwoClusterMap()

	s, err := TessellateFace(b, 3, 2)
	if err != nil {
		t.Fatalf("TessellateFace failed: %v", err)
	}
	if len(s.Vertices) != 9 {
		t.Errorf("expected 9 vertices, got %d", len(s.Vertices))
	}

	if _, err := TessellateFace(b, 0, 2); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch for a polygon face, got %v", err)
	}
}
