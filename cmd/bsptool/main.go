// bsptool is a CLI utility for inspecting Quake3 and Counter-Strike BSP maps.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/csbsp/internal/assets"
	"github.com/Faultbox/csbsp/internal/config"
	"github.com/Faultbox/csbsp/internal/logger"
)

var errUsage = errors.New("usage")

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			logger.Warn("saving config", zap.Error(err))
		} else {
			logger.Info("config saved", zap.String("path", config.DefaultPath()))
		}
	}

	t := newTool(cfg, logger.Named("bsptool"), os.Stdout)
	defer t.close()

	logger.Debug("running command", zap.Strings("args", config.Args()))
	if err := t.run(config.Args()); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}

// tool carries what every command needs.
type tool struct {
	cfg    *config.Config
	log    *zap.Logger
	assets *assets.Manager
	out    io.Writer
}

func newTool(cfg *config.Config, log *zap.Logger, out io.Writer) *tool {
	return &tool{
		cfg:    cfg,
		log:    log,
		assets: assets.NewManager(log.Named("assets")),
		out:    out,
	}
}

func (t *tool) close() {
	t.assets.Close()
}

func (t *tool) run(args []string) error {
	if len(args) < 1 {
		t.printUsage()
		return errUsage
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		return t.cmdInfo(args)
	case "maps", "ls":
		return t.cmdMaps(args)
	case "textures":
		return t.cmdTextures(args)
	case "entities", "ents":
		return t.cmdEntities(args)
	case "leaf":
		return t.cmdLeaf(args)
	case "pvs":
		return t.cmdPVS(args)
	case "cull":
		return t.cmdCull(args)
	case "mesh":
		return t.cmdMesh(args)
	case "lightmap", "lm":
		return t.cmdLightmap(args)
	case "atlas":
		return t.cmdAtlas(args)
	case "help", "-h", "--help":
		t.printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		t.printUsage()
		return errUsage
	}
}

func (t *tool) printUsage() {
	fmt.Fprintln(t.out, `bsptool - Quake3 / Counter-Strike BSP map utility

Usage:
  bsptool [flags] <command> [options]

A <map> is a .bsp path on disk or a map name looked up in the
configured data paths (directories and .pak/.pk3 archives).

Commands:
  info <map>                         Show header, lumps and counts
  maps                               List maps in the data paths
  textures <map>                     List texture names
  entities <map> [classname]         Dump entities
  leaf <map> <x> <y> <z>             Locate the leaf and cluster of a point
  pvs <map> <cluster>                List clusters visible from a cluster
  cull <map> [<x> <y> <z> ...]       Visible faces from each viewpoint
  mesh <map>                         Convert faces to triangles and summarize
  lightmap <map> <index> <out>       Export a lightmap (.png, .webp, .tga)
  atlas <map> <out>                  Export the lightmap atlas

Flags:
  -config <path>  -debug  -nopvs  -level <n>  -scale <f>  -gamma <f>  -data <path>
  -save-config    write the effective config to the user config directory

Examples:
  bsptool info maps/de_dust2.bsp
  bsptool -data pak0.pk3 cull q3dm17
  bsptool -gamma 1.5 lightmap de_aztec 3 lm3.png`)
}
