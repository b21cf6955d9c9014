package mesh

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/csbsp/internal/bsptest"
	"github.com/Faultbox/csbsp/pkg/bsp"
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/lightmap"
	"github.com/Faultbox/csbsp/pkg/math"
	"github.com/Faultbox/csbsp/pkg/patch"
)

func approx3(a, b [3]float32) bool {
	for k := range a {
		if math32.Abs(a[k]-b[k]) > 1e-4 {
			return false
		}
	}
	return true
}

func TestBuild(t *testing.T) {
	w, err := Build(bsptest.TwoClusterMap(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(w.Faces) != 4 {
		t.Fatalf("expected 4 face slots, got %d", len(w.Faces))
	}
	for i, m := range w.Faces {
		if m == nil || m.Face != i {
			t.Fatalf("face %d not aligned: %+v", i, m)
		}
	}

	want := Stats{Triangles: 3 + 2*patch.DefaultLevel*patch.DefaultLevel, Patches: 1}
	if w.Stats != want {
		t.Errorf("stats = %+v, want %+v", w.Stats, want)
	}

	if w.Faces[1].Texture != "textures/base/floor" {
		t.Errorf("face 1 texture = %q", w.Faces[1].Texture)
	}
	if got := w.Faces[1].Indices; !reflect.DeepEqual(got, []uint32{0, 1, 2}) {
		t.Errorf("face 1 indices = %v, want rebased [0 1 2]", got)
	}
	if w.Faces[3].Type != formats.FacePatch || len(w.Faces[3].Vertices) != 36 {
		t.Errorf("patch face has %d vertices", len(w.Faces[3].Vertices))
	}
}

func TestBuild_CoordinateTransform(t *testing.T) {
	w, err := Build(bsptest.TwoClusterMap(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Triangle(512): (512,0,0), (576,0,0), (512,64,0).
	v := w.Faces[1].Vertices
	tests := []struct {
		got, want [3]float32
	}{
		{v[0].Position, [3]float32{512 * 0.03, 0, 0}},
		{v[2].Position, [3]float32{512 * 0.03, 0, -64 * 0.03}},
		{v[0].Normal, [3]float32{0, 1, 0}},
	}
	for i, tt := range tests {
		if !approx3(tt.got, tt.want) {
			t.Errorf("case %d: got %v, want %v", i, tt.got, tt.want)
		}
	}
}

func TestBuild_KeepCoordinates(t *testing.T) {
	w, err := Build(bsptest.TwoClusterMap(), Options{KeepCoordinates: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := w.Faces[1].Vertices[2].Position; !approx3(got, [3]float32{512, 64, 0}) {
		t.Errorf("position = %v, want map coordinates", got)
	}
	if w.Bounds.Min[0] != -512 {
		t.Errorf("bounds min x = %v, want -512", w.Bounds.Min[0])
	}
}

func TestToMapSpace(t *testing.T) {
	opts := DefaultOptions()
	p := math.Vec3{X: 100, Y: -200, Z: 50}
	out := mgl32.TransformCoordinate(mgl32.Vec3(p.Array()), opts.Transform())

	back := opts.ToMapSpace(out)
	if !approx3(back.Array(), p.Array()) {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}
}

func TestBuild_SkippedFaces(t *testing.T) {
	b := bsptest.TwoClusterMap()
	b.Faces[0].TextureID = -1
	b.Faces[2].Type = formats.FaceBillboard

	w, err := Build(b, DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if w.Faces[0] != nil || w.Faces[2] != nil {
		t.Error("expected untextured and billboard faces to be skipped")
	}
	if w.Stats.Skipped != 2 {
		t.Errorf("expected 2 skipped faces, got %d", w.Stats.Skipped)
	}
}

func TestBuild_Groups(t *testing.T) {
	w, err := Build(bsptest.TwoClusterMap(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := []TextureGroup{
		{TextureID: 0, Texture: "textures/base/wall", Faces: []int{0, 2}},
		{TextureID: 1, Texture: "textures/base/floor", Faces: []int{1, 3}},
	}
	if !reflect.DeepEqual(w.Groups, want) {
		t.Errorf("groups = %+v, want %+v", w.Groups, want)
	}
}

func TestBuild_InvalidPatch(t *testing.T) {
	b := bsptest.TwoClusterMap()
	b.Faces[3].PatchSize = [2]int32{2, 2}

	if _, err := Build(b, DefaultOptions()); !errors.Is(err, patch.ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestBuild_Atlas(t *testing.T) {
	b := bsptest.TwoClusterMap()
	atlas, err := lightmap.BuildAtlas(b.Lightmaps, lightmap.DefaultGamma)
	if err != nil {
		t.Fatalf("BuildAtlas failed: %v", err)
	}
	opts := DefaultOptions()
	opts.Atlas = atlas

	w, err := Build(b, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, v := range w.Faces[0].Vertices {
		if v.LightmapUV[0] <= 0 || v.LightmapUV[0] >= 0.5 || v.LightmapUV[1] <= 0 || v.LightmapUV[1] >= 0.5 {
			t.Errorf("lightmap uv %v outside tile 0", v.LightmapUV)
		}
	}
	// Face 2 has no lightmap and samples the white tile.
	if uv := w.Faces[2].Vertices[0].LightmapUV; uv != [2]float32{0.75, 0.25} {
		t.Errorf("unlit face uv = %v", uv)
	}
}

func TestWorld_Visible(t *testing.T) {
	b := bsptest.TwoClusterMap()
	w, err := Build(b, DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	culler := bsp.NewCuller(bsp.NewMap(b))
	set := culler.Update(math.Vec3{X: 256, Y: 10}, true)

	visible := w.Visible(set)
	if len(visible) != 2 || visible[0].Face != 1 || visible[1].Face != 3 {
		t.Errorf("unexpected visible meshes %v", visible)
	}
}
