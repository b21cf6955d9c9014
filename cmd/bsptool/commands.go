package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/csbsp/internal/assets"
	"github.com/Faultbox/csbsp/pkg/bsp"
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/lightmap"
	"github.com/Faultbox/csbsp/pkg/math"
	"github.com/Faultbox/csbsp/pkg/mesh"
)

// spawnClasses are tried in order for a default viewpoint.
var spawnClasses = []string{"info_player_start", "info_player_deathmatch", "info_player_terrorist"}

// mountData mounts the configured data paths. Missing paths are logged and skipped.
func (t *tool) mountData() {
	for _, p := range t.cfg.Data.Paths {
		if err := t.assets.Mount(p); err != nil {
			t.log.Warn("skipping data path", zap.String("path", p), zap.Error(err))
		}
	}
}

// loadMap resolves a map argument. A path to an existing file is loaded
// from its directory; anything else goes through the data paths.
func (t *tool) loadMap(arg string) (*assets.LoadedMap, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		if err := t.assets.Mount(filepath.Dir(arg)); err != nil {
			return nil, err
		}
		return t.assets.LoadMap(filepath.Base(arg))
	}
	t.mountData()
	return t.assets.LoadMap(arg)
}

func (t *tool) usage(line string) error {
	fmt.Fprintln(os.Stderr, "Usage: bsptool "+line)
	return errUsage
}

func (t *tool) cmdInfo(args []string) error {
	if len(args) < 1 {
		return t.usage("info <map>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	b := lm.BSP

	fmt.Fprintf(t.out, "Map:       %s\n", lm.Name)
	fmt.Fprintf(t.out, "Variant:   %s (version 0x%x, %d lumps)\n", b.Variant.Name, b.Variant.Version, b.Variant.NumLumps)
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, "Lumps:")
	for kind := formats.BSPLumpKind(0); kind < formats.NumBSPLumpKinds; kind++ {
		slot := b.Variant.Slot(kind)
		l := b.Lumps[slot]
		fmt.Fprintf(t.out, "  %-10s slot %2d  offset %8d  length %8d\n", kind, slot, l.Offset, l.Length)
	}
	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Entities:  %d\n", len(b.Entities))
	fmt.Fprintf(t.out, "Textures:  %d\n", len(b.Textures))
	fmt.Fprintf(t.out, "Planes:    %d\n", len(b.Planes))
	fmt.Fprintf(t.out, "Nodes:     %d\n", len(b.Nodes))
	fmt.Fprintf(t.out, "Leafs:     %d\n", len(b.Leafs))
	fmt.Fprintf(t.out, "Models:    %d\n", len(b.Models))
	fmt.Fprintf(t.out, "Vertices:  %d\n", len(b.Vertices))
	fmt.Fprintf(t.out, "MeshVerts: %d\n", len(b.MeshVerts))
	fmt.Fprintf(t.out, "Lightmaps: %d\n", len(b.Lightmaps))
	fmt.Fprintf(t.out, "Faces:     %d\n", len(b.Faces))

	byType := b.CountFacesByType()
	types := make([]formats.BSPFaceType, 0, len(byType))
	for ft := range byType {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, ft := range types {
		fmt.Fprintf(t.out, "  %-10s %d\n", ft, byType[ft])
	}

	if lm.Map.Visibility().Present() {
		fmt.Fprintf(t.out, "PVS:       %d clusters, %d bytes per cluster\n", b.VisData.NumClusters, b.VisData.BytesPerCluster)
	} else {
		fmt.Fprintf(t.out, "PVS:       none (%d clusters from leafs)\n", lm.Map.NumClusters())
	}
	return nil
}

func (t *tool) cmdMaps(args []string) error {
	t.mountData()
	for _, arg := range args {
		if err := t.assets.Mount(arg); err != nil {
			return err
		}
	}
	maps := t.assets.Maps()
	for _, m := range maps {
		fmt.Fprintln(t.out, m)
	}
	fmt.Fprintf(os.Stderr, "\n(%d maps)\n", len(maps))
	return nil
}

func (t *tool) cmdTextures(args []string) error {
	if len(args) < 1 {
		return t.usage("textures <map>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}

	uses := make(map[int32]int)
	for _, f := range lm.BSP.Faces {
		uses[f.TextureID]++
	}
	for i, tex := range lm.BSP.Textures {
		fmt.Fprintf(t.out, "%4d  %-48s faces %d\n", i, tex.Name, uses[int32(i)])
	}
	return nil
}

func (t *tool) cmdEntities(args []string) error {
	if len(args) < 1 {
		return t.usage("entities <map> [classname]")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}

	class := ""
	if len(args) > 1 {
		class = args[1]
	}
	count := 0
	for i := range lm.BSP.Entities {
		e := &lm.BSP.Entities[i]
		if class != "" && e.ClassName() != class {
			continue
		}
		fmt.Fprintln(t.out, "{")
		for _, f := range e.Fields {
			fmt.Fprintf(t.out, "  %q %q\n", f.Key, f.Value)
		}
		fmt.Fprintln(t.out, "}")
		count++
	}
	fmt.Fprintf(os.Stderr, "\n(%d entities)\n", count)
	return nil
}

func parsePoint(args []string) (math.Vec3, error) {
	var xyz [3]float32
	for i := range xyz {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("bad coordinate %q: %w", args[i], err)
		}
		xyz[i] = float32(f)
	}
	return math.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func (t *tool) cmdLeaf(args []string) error {
	if len(args) < 4 {
		return t.usage("leaf <map> <x> <y> <z>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	p, err := parsePoint(args[1:4])
	if err != nil {
		return err
	}

	leaf := lm.Map.LeafContaining(p)
	if leaf < 0 {
		fmt.Fprintln(t.out, "map has no leaves")
		return nil
	}
	l := &lm.BSP.Leafs[leaf]
	fmt.Fprintf(t.out, "Point:   (%g %g %g)\n", p.X, p.Y, p.Z)
	fmt.Fprintf(t.out, "Leaf:    %d (depth %d)\n", leaf, lm.Map.Index().Depth(p))
	fmt.Fprintf(t.out, "Cluster: %d\n", l.Cluster)
	fmt.Fprintf(t.out, "Area:    %d\n", l.Area)
	lo, hi := math.Vec3FromInts(l.Mins), math.Vec3FromInts(l.Maxs)
	fmt.Fprintf(t.out, "Bounds:  (%g %g %g) - (%g %g %g)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	fmt.Fprintf(t.out, "Faces:   %v\n", lm.BSP.LeafFaceIndices(leaf))
	return nil
}

func (t *tool) cmdPVS(args []string) error {
	if len(args) < 2 {
		return t.usage("pvs <map> <cluster>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	cluster, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad cluster %q: %w", args[1], err)
	}

	vis := lm.Map.Visibility()
	if !vis.Present() {
		fmt.Fprintln(t.out, "map has no PVS; every cluster is visible")
		return nil
	}
	if cluster >= vis.NumClusters() {
		return fmt.Errorf("cluster %d out of range (map has %d)", cluster, vis.NumClusters())
	}
	visible := vis.VisibleFrom(cluster)
	fmt.Fprintf(t.out, "Cluster %d sees %d of %d clusters:\n", cluster, len(visible), vis.NumClusters())
	fmt.Fprintln(t.out, strings.Trim(fmt.Sprint(visible), "[]"))
	return nil
}

// viewpoints returns the points given on the command line, or the first
// spawn point of the map.
func viewpoints(lm *assets.LoadedMap, args []string) ([]math.Vec3, error) {
	if len(args) == 0 {
		for _, class := range spawnClasses {
			for _, e := range lm.BSP.EntitiesByClass(class) {
				if p, ok := e.Origin(); ok {
					return []math.Vec3{p}, nil
				}
			}
		}
		return nil, fmt.Errorf("no spawn point in %s; give a viewpoint", lm.Name)
	}
	if len(args)%3 != 0 {
		return nil, fmt.Errorf("viewpoints need 3 coordinates each, got %d values", len(args))
	}
	var points []math.Vec3
	for i := 0; i < len(args); i += 3 {
		p, err := parsePoint(args[i : i+3])
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (t *tool) cmdCull(args []string) error {
	if len(args) < 1 {
		return t.usage("cull <map> [<x> <y> <z> ...]")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	points, err := viewpoints(lm, args[1:])
	if err != nil {
		return err
	}

	culler := bsp.NewCuller(lm.Map, bsp.WithLogger(t.log.Named("culler")))
	usePVS := t.cfg.Visibility.UsePVS
	for _, p := range points {
		prev := culler.Current()
		set := culler.Update(p, usePVS)

		fmt.Fprintf(t.out, "Viewpoint (%g %g %g): cluster %d", p.X, p.Y, p.Z, lm.Map.ClusterAt(p))
		if set == prev {
			fmt.Fprintln(t.out, " (unchanged)")
			continue
		}
		fmt.Fprintln(t.out)
		if set.All {
			fmt.Fprintf(t.out, "  all %d faces visible\n", set.Count())
			continue
		}
		s := set.Stats
		fmt.Fprintf(t.out, "  clusters visible: %d/%d\n", s.ClustersVisible, s.ClustersWithLeaves)
		fmt.Fprintf(t.out, "  leaves visible:   %d\n", s.LeavesVisible)
		fmt.Fprintf(t.out, "  faces visible:    %d/%d\n", s.FacesVisible, lm.Map.NumFaces())
		fmt.Fprintf(t.out, "  batches:          %d\n", s.Batches)
	}
	return nil
}

func (t *tool) meshOptions(b *formats.BSP) (mesh.Options, error) {
	opts := mesh.Options{
		WorldScale:      t.cfg.Mesh.WorldScale,
		KeepCoordinates: t.cfg.Mesh.KeepCoordinates,
		PatchLevel:      t.cfg.Mesh.PatchLevel,
	}
	if len(b.Lightmaps) > 0 {
		atlas, err := lightmap.BuildAtlas(b.Lightmaps, t.cfg.Lightmap.Gamma)
		if err != nil {
			return opts, err
		}
		opts.Atlas = atlas
	}
	return opts, nil
}

func (t *tool) cmdMesh(args []string) error {
	if len(args) < 1 {
		return t.usage("mesh <map>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	opts, err := t.meshOptions(lm.BSP)
	if err != nil {
		return err
	}
	world, err := mesh.Build(lm.BSP, opts)
	if err != nil {
		return err
	}

	vertices := 0
	for _, f := range world.Faces {
		if f != nil {
			vertices += len(f.Vertices)
		}
	}
	fmt.Fprintf(t.out, "Triangles: %d\n", world.Stats.Triangles)
	fmt.Fprintf(t.out, "Vertices:  %d\n", vertices)
	fmt.Fprintf(t.out, "Patches:   %d (level %d)\n", world.Stats.Patches, opts.PatchLevel)
	fmt.Fprintf(t.out, "Skipped:   %d\n", world.Stats.Skipped)
	fmt.Fprintf(t.out, "Bounds:    %v - %v\n", world.Bounds.Min, world.Bounds.Max)
	fmt.Fprintf(t.out, "Groups:    %d\n", len(world.Groups))
	for _, g := range world.Groups {
		fmt.Fprintf(t.out, "  %4d  %-48s faces %d\n", g.TextureID, g.Texture, len(g.Faces))
	}
	return nil
}

func (t *tool) writeImage(path string, write func(*os.File, lightmap.Format) error) error {
	format, err := lightmap.FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Wrote %s\n", path)
	return nil
}

func (t *tool) cmdLightmap(args []string) error {
	if len(args) < 3 {
		return t.usage("lightmap <map> <index> <out.png|out.webp|out.tga>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad lightmap index %q: %w", args[1], err)
	}
	if idx < 0 || idx >= len(lm.BSP.Lightmaps) {
		return fmt.Errorf("lightmap %d out of range (map has %d)", idx, len(lm.BSP.Lightmaps))
	}

	corrected := lightmap.ApplyGamma(&lm.BSP.Lightmaps[idx], t.cfg.Lightmap.Gamma)
	img := lightmap.Scale(lightmap.ToImage(&corrected), t.cfg.Lightmap.Scale)
	return t.writeImage(args[2], func(f *os.File, format lightmap.Format) error {
		return lightmap.Encode(f, img, format)
	})
}

func (t *tool) cmdAtlas(args []string) error {
	if len(args) < 2 {
		return t.usage("atlas <map> <out.png|out.webp|out.tga>")
	}
	lm, err := t.loadMap(args[0])
	if err != nil {
		return err
	}
	atlas, err := lightmap.BuildAtlas(lm.BSP.Lightmaps, t.cfg.Lightmap.Gamma)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Atlas: %d lightmaps, %d per row, %dpx\n", atlas.Count, atlas.TilesPerRow, atlas.Image.Bounds().Dx())
	return t.writeImage(args[1], func(f *os.File, format lightmap.Format) error {
		return lightmap.Encode(f, atlas.Image, format)
	})
}
